package delivery

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

const (
	MinRating = 1
	MaxRating = 5

	// ReasonResponseTimeout cancels an assignment the agent did not answer in time.
	ReasonResponseTimeout = "response_timeout"
	// ReasonOrderCancelled cancels an assignment because its order was cancelled.
	ReasonOrderCancelled = "order_cancelled"
	// ReasonOrderOverridden cancels an assignment because an admin moved its order
	// past the point the agent could still serve it.
	ReasonOrderOverridden = "order_overridden"
)

var ErrAssignmentIsNotConstructed = errors.New("Assignment must be created via NewAssignment or RestoreAssignment constructor")

// Estimate is the distance and travel time of an agent to the store.
type Estimate struct {
	DistanceKm float64
	EtaMinutes float64
}

func (e Estimate) Validate() error {
	if e.DistanceKm < 0 || math.IsNaN(e.DistanceKm) {
		return errs.NewValueIsOutOfRangeError("distance km", e.DistanceKm, 0, "unbounded")
	}
	if e.EtaMinutes < 0 || math.IsNaN(e.EtaMinutes) {
		return errs.NewValueIsOutOfRangeError("eta minutes", e.EtaMinutes, 0, "unbounded")
	}
	return nil
}

// Assignment binds one agent to one order. It is never reused: a cancelled or failed
// assignment stays as it is and a reassignment creates a new record.
type Assignment struct {
	id               kernel.UUID
	orderID          kernel.UUID
	storeID          kernel.UUID
	agentID          kernel.UUID
	status           AssignmentStatus
	estimate         Estimate
	assignedAt       time.Time
	responseDeadline time.Time
	acceptedAt       *time.Time
	pickedUpAt       *time.Time
	inTransitAt      *time.Time
	deliveredAt      *time.Time
	closedAt         *time.Time
	reason           string
	actualMinutes    *float64
	proof            *ProofOfDelivery
	rating           *int
	feedback         string

	version kernel.Version
	events  kernel.EventRecorder
	guard   guard.ConstructorGuard
}

// NewAssignment offers the order to agentID. The agent must accept before
// at + responseWindow.
func NewAssignment(
	id, orderID, storeID, agentID kernel.UUID,
	estimate Estimate,
	at time.Time,
	responseWindow time.Duration,
) (*Assignment, error) {
	if err := errors.Join(
		id.Validate(),
		orderID.Validate(),
		storeID.Validate(),
		agentID.Validate(),
		estimate.Validate(),
	); err != nil {
		return nil, err
	}
	if responseWindow <= 0 {
		return nil, errs.NewValueIsOutOfRangeError("response window", responseWindow, "1ns", "unbounded")
	}

	a := &Assignment{
		id:               id,
		orderID:          orderID,
		storeID:          storeID,
		agentID:          agentID,
		status:           AssignmentAssigned,
		estimate:         estimate,
		assignedAt:       at.UTC(),
		responseDeadline: at.UTC().Add(responseWindow),
		guard:            guard.NewConstructorGuard(),
	}
	a.record(AssignmentUnknown, AssignmentAssigned, "", a.assignedAt)
	return a, nil
}

// AssignmentRestoreParams carries the persisted state of an assignment.
type AssignmentRestoreParams struct {
	ID               kernel.UUID
	OrderID          kernel.UUID
	StoreID          kernel.UUID
	AgentID          kernel.UUID
	Status           AssignmentStatus
	Estimate         Estimate
	AssignedAt       time.Time
	ResponseDeadline time.Time
	AcceptedAt       *time.Time
	PickedUpAt       *time.Time
	InTransitAt      *time.Time
	DeliveredAt      *time.Time
	ClosedAt         *time.Time
	Reason           string
	ActualMinutes    *float64
	Proof            *ProofOfDelivery
	Rating           *int
	Feedback         string
	Version          int
}

func RestoreAssignment(p AssignmentRestoreParams) (*Assignment, error) {
	if err := errors.Join(
		p.ID.Validate(),
		p.OrderID.Validate(),
		p.StoreID.Validate(),
		p.AgentID.Validate(),
		p.Status.Validate(),
	); err != nil {
		return nil, err
	}
	return &Assignment{
		id:               p.ID,
		orderID:          p.OrderID,
		storeID:          p.StoreID,
		agentID:          p.AgentID,
		status:           p.Status,
		estimate:         p.Estimate,
		assignedAt:       p.AssignedAt.UTC(),
		responseDeadline: p.ResponseDeadline.UTC(),
		acceptedAt:       p.AcceptedAt,
		pickedUpAt:       p.PickedUpAt,
		inTransitAt:      p.InTransitAt,
		deliveredAt:      p.DeliveredAt,
		closedAt:         p.ClosedAt,
		reason:           p.Reason,
		actualMinutes:    p.ActualMinutes,
		proof:            p.Proof,
		rating:           p.Rating,
		feedback:         p.Feedback,
		version:          kernel.RestoreVersion(p.Version),
		guard:            guard.NewConstructorGuard(),
	}, nil
}

func (a *Assignment) Validate() error {
	if a == nil {
		return ErrAssignmentIsNotConstructed
	}
	return a.guard.Validate(ErrAssignmentIsNotConstructed)
}

func (a *Assignment) ID() kernel.UUID             { return a.id }
func (a *Assignment) OrderID() kernel.UUID        { return a.orderID }
func (a *Assignment) StoreID() kernel.UUID        { return a.storeID }
func (a *Assignment) AgentID() kernel.UUID        { return a.agentID }
func (a *Assignment) Status() AssignmentStatus    { return a.status }
func (a *Assignment) Estimate() Estimate          { return a.estimate }
func (a *Assignment) AssignedAt() time.Time       { return a.assignedAt }
func (a *Assignment) ResponseDeadline() time.Time { return a.responseDeadline }
func (a *Assignment) AcceptedAt() *time.Time      { return a.acceptedAt }
func (a *Assignment) PickedUpAt() *time.Time      { return a.pickedUpAt }
func (a *Assignment) InTransitAt() *time.Time     { return a.inTransitAt }
func (a *Assignment) DeliveredAt() *time.Time     { return a.deliveredAt }
func (a *Assignment) ClosedAt() *time.Time        { return a.closedAt }
func (a *Assignment) Reason() string              { return a.reason }
func (a *Assignment) ActualMinutes() *float64     { return a.actualMinutes }
func (a *Assignment) Proof() *ProofOfDelivery     { return a.proof }
func (a *Assignment) Rating() *int                { return a.rating }
func (a *Assignment) Feedback() string            { return a.feedback }
func (a *Assignment) Version() int                { return a.version.Current() }

func (a *Assignment) AdvanceVersion() (int, int) {
	return a.version.Advance()
}

func (a *Assignment) DomainEvents() []kernel.DomainEvent {
	return a.events.Events()
}

func (a *Assignment) ClearDomainEvents() {
	a.events.Clear()
}

func (a *Assignment) IsTerminal() bool {
	return a.status.IsTerminal()
}

// IsResponseOverdue reports whether the agent let the response window lapse.
func (a *Assignment) IsResponseOverdue(now time.Time) bool {
	return a.status == AssignmentAssigned && now.After(a.responseDeadline)
}

// Accept records the agent taking the order. Accepting after the response deadline
// fails even if the timeout sweep has not run yet.
func (a *Assignment) Accept(agentID kernel.UUID, at time.Time) error {
	if err := a.checkAgent(agentID); err != nil {
		return err
	}
	if a.status != AssignmentAssigned {
		return errs.NewInvalidTransitionError("assignment", a.status, AssignmentAccepted)
	}
	if at.After(a.responseDeadline) {
		return fmt.Errorf("%w: response window closed at %s",
			errs.NewInvalidTransitionError("assignment", a.status, AssignmentAccepted),
			a.responseDeadline.Format(time.RFC3339))
	}
	ts := at.UTC()
	a.acceptedAt = &ts
	a.moveTo(AssignmentAccepted, "", ts)
	return nil
}

// Reject records the agent declining. The assignment is cancelled.
func (a *Assignment) Reject(agentID kernel.UUID, reason string, at time.Time) error {
	if err := a.checkAgent(agentID); err != nil {
		return err
	}
	if a.status != AssignmentAssigned {
		return errs.NewInvalidTransitionError("assignment", a.status, AssignmentCancelled)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "rejected by agent"
	}
	a.close(AssignmentCancelled, reason, at)
	return nil
}

// Timeout cancels an assignment whose response window has lapsed.
func (a *Assignment) Timeout(now time.Time) error {
	if !a.IsResponseOverdue(now) {
		return errs.NewInvalidTransitionError("assignment", a.status, AssignmentCancelled)
	}
	a.close(AssignmentCancelled, ReasonResponseTimeout, now)
	return nil
}

// CompleteLeg moves the assignment one step along Accepted -> PickedUp -> InTransit ->
// Delivered. Only the assigned agent may report a leg. Delivered requires proof,
// validated and attached in the same step.
func (a *Assignment) CompleteLeg(agentID kernel.UUID, target AssignmentStatus, proof *ProofOfDelivery, at time.Time) error {
	if err := a.checkAgent(agentID); err != nil {
		return err
	}
	next, ok := a.status.nextLeg()
	if !ok || next != target {
		return errs.NewInvalidTransitionError("assignment", a.status, target)
	}

	ts := at.UTC()
	switch target {
	case AssignmentPickedUp:
		a.pickedUpAt = &ts
	case AssignmentInTransit:
		a.inTransitAt = &ts
	case AssignmentDelivered:
		if err := proof.Validate(); err != nil {
			return err
		}
		attached := *proof
		if attached.CollectedAt.IsZero() {
			attached.CollectedAt = ts
		}
		a.proof = &attached
		a.deliveredAt = &ts
		a.closedAt = &ts
		minutes := 0.0
		if a.pickedUpAt != nil {
			minutes = ts.Sub(*a.pickedUpAt).Minutes()
		}
		a.actualMinutes = &minutes
	}
	a.moveTo(target, "", ts)
	return nil
}

// Fail closes a non-terminal assignment as failed.
func (a *Assignment) Fail(reason string, at time.Time) error {
	if a.IsTerminal() {
		return errs.NewInvalidTransitionError("assignment", a.status, AssignmentFailed)
	}
	if strings.TrimSpace(reason) == "" {
		return errs.NewValueIsRequiredError("failure reason")
	}
	a.close(AssignmentFailed, reason, at)
	return nil
}

// Cancel closes a non-terminal assignment, for example because the order was cancelled.
func (a *Assignment) Cancel(reason string, at time.Time) error {
	if a.IsTerminal() {
		return errs.NewInvalidTransitionError("assignment", a.status, AssignmentCancelled)
	}
	a.close(AssignmentCancelled, reason, at)
	return nil
}

// Rate stores the customer's rating of a delivered assignment. An assignment is rated once.
func (a *Assignment) Rate(rating int, feedback string) error {
	if a.status != AssignmentDelivered {
		return fmt.Errorf("%w: only delivered assignments can be rated, %s is %s",
			errs.ErrInvalidTransition, a.id, a.status)
	}
	if a.rating != nil {
		return fmt.Errorf("%w: assignment %s is already rated", errs.ErrAlreadyExists, a.id)
	}
	if err := validateRating(rating); err != nil {
		return err
	}
	a.rating = &rating
	a.feedback = feedback
	return nil
}

func (a *Assignment) checkAgent(agentID kernel.UUID) error {
	if !a.agentID.IsEqual(agentID) {
		return fmt.Errorf("%w: agent %s does not hold assignment %s", errs.ErrNotPermitted, agentID, a.id)
	}
	return nil
}

func (a *Assignment) close(status AssignmentStatus, reason string, at time.Time) {
	ts := at.UTC()
	a.closedAt = &ts
	a.reason = reason
	a.moveTo(status, reason, ts)
}

func (a *Assignment) moveTo(next AssignmentStatus, reason string, at time.Time) {
	prev := a.status
	a.status = next
	a.record(prev, next, reason, at)
}

func (a *Assignment) record(from, to AssignmentStatus, reason string, at time.Time) {
	a.events.Record(AssignmentChangedEvent{
		AssignmentID: a.id,
		OrderID:      a.orderID,
		AgentID:      a.agentID,
		From:         from,
		To:           to,
		Reason:       reason,
		At:           at,
	})
}

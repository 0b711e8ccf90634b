package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

// Domain errors for agent operations.
var (
	// ErrAgentNameIsRequired is returned when attempting to register an agent without a name.
	ErrAgentNameIsRequired = errs.NewValueIsRequiredError("name")
	// ErrAgentCodeIsRequired is returned when attempting to register an agent without a code.
	ErrAgentCodeIsRequired = errs.NewValueIsRequiredError("agent code")
	// ErrAgentIsNotConstructed is returned when using an improperly initialized Agent.
	ErrAgentIsNotConstructed = errors.New("Agent must be created via NewAgent constructor")
	// ErrAgentIsBusy is returned when an agent that already serves an assignment is engaged again.
	ErrAgentIsBusy = errors.New("agent already serves an assignment")
)

// AgentStatus is the working state declared by the agent.
type AgentStatus int

const (
	AgentUnknown AgentStatus = iota
	AgentActive
	AgentInactive
	AgentOnBreak
	AgentOffDuty
)

var agentStatusNames = map[AgentStatus]string{
	AgentActive:   "active",
	AgentInactive: "inactive",
	AgentOnBreak:  "on_break",
	AgentOffDuty:  "off_duty",
}

func (s AgentStatus) String() string {
	if name, ok := agentStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s AgentStatus) Validate() error {
	if _, ok := agentStatusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("agent status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

func ParseAgentStatus(s string) (AgentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for status, name := range agentStatusNames {
		if name == normalized {
			return status, nil
		}
	}
	return AgentUnknown, errs.NewValueIsInvalidErrorWithCause("agent status", fmt.Errorf("%q is not a valid status", s))
}

// Agent represents a delivery agent working for one store.
// It is an aggregate root that manages agent identity, availability and the
// performance figures used by dispatching and reporting.
//
// Key responsibilities:
//   - Managing agent identity (ID, store, code, name)
//   - Tracking the declared working status and the last known location
//   - Holding the weak reference to the assignment the agent currently serves
//   - Maintaining rolling delivery and rating averages
//
// Business rules:
//   - An agent is online when Active and its location was updated within the freshness window
//   - An agent can be dispatched when Active or OnBreak, its location is fresh and it is free
//   - An agent serves at most one assignment at a time
//   - An agent cannot go Inactive or OffDuty while serving an assignment
//   - Averages are updated incrementally: avg += (x - avg) / n
//
// Example usage:
//
//	agent, err := delivery.NewAgent(kernel.NewUUID(), storeID, "AG-001", "Ravi")
//	if err != nil {
//	    // Handle construction error
//	}
//	point, _ := kernel.NewGeoPoint(12.97, 77.59)
//	_ = agent.UpdateLocation(point, time.Now())
type Agent struct {
	// id uniquely identifies the agent
	id kernel.UUID
	// storeID is the store the agent delivers for
	storeID kernel.UUID
	// code is the human-readable agent code
	code string
	// name is the display name of the agent
	name string
	// status is the working state declared by the agent
	status AgentStatus
	// location is the last reported position, unset until the first report
	location kernel.GeoPoint
	// lastLocationUpdate is when location was reported, nil before the first report
	lastLocationUpdate *time.Time
	// activeAssignmentID is the assignment the agent currently serves
	activeAssignmentID *kernel.UUID

	totalDeliveries        int
	successfulDeliveries   int
	averageDeliveryMinutes float64
	averageRating          float64
	ratingCount            int

	version kernel.Version
	events  kernel.EventRecorder
	// guard ensures the agent was properly constructed
	guard guard.ConstructorGuard
}

// NewAgent registers a new agent for a store. A new agent starts Inactive with no
// known location, so it cannot be dispatched before it goes Active and reports a position.
//
// Parameters:
//   - id: Unique identifier for the agent (must be valid UUID)
//   - storeID: The store the agent delivers for (must be valid UUID)
//   - code: Human-readable agent code (must be non-empty)
//   - name: Display name (must be non-empty)
//
// Returns:
//   - *Agent: A registered agent
//   - error: Validation error if any parameter is invalid (aggregated errors for multiple issues)
func NewAgent(id, storeID kernel.UUID, code, name string) (*Agent, error) {
	agent := &Agent{
		status: AgentInactive,
		guard:  guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		agent.setID(id),
		agent.setStoreID(storeID),
		agent.setCode(code),
		agent.setName(name),
	); err != nil {
		return nil, err
	}

	return agent, nil
}

// AgentRestoreParams carries the persisted state of an agent.
type AgentRestoreParams struct {
	ID                     kernel.UUID
	StoreID                kernel.UUID
	Code                   string
	Name                   string
	Status                 AgentStatus
	Location               kernel.GeoPoint
	LastLocationUpdate     *time.Time
	ActiveAssignmentID     *kernel.UUID
	TotalDeliveries        int
	SuccessfulDeliveries   int
	AverageDeliveryMinutes float64
	AverageRating          float64
	RatingCount            int
	Version                int
}

// RestoreAgent reconstructs an Agent aggregate from persistent storage. Unlike NewAgent
// it keeps the stored status, location, assignment reference and metrics.
//
// Business Rules:
//   - Agent ID and store ID must be valid
//   - Code and name cannot be empty
//   - Status must be a defined AgentStatus
func RestoreAgent(p AgentRestoreParams) (*Agent, error) {
	agent := &Agent{
		location:               p.Location,
		lastLocationUpdate:     p.LastLocationUpdate,
		activeAssignmentID:     p.ActiveAssignmentID,
		totalDeliveries:        p.TotalDeliveries,
		successfulDeliveries:   p.SuccessfulDeliveries,
		averageDeliveryMinutes: p.AverageDeliveryMinutes,
		averageRating:          p.AverageRating,
		ratingCount:            p.RatingCount,
		version:                kernel.RestoreVersion(p.Version),
		guard:                  guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		agent.setID(p.ID),
		agent.setStoreID(p.StoreID),
		agent.setCode(p.Code),
		agent.setName(p.Name),
		agent.setStatus(p.Status),
	); err != nil {
		return nil, err
	}

	return agent, nil
}

// IsEqual compares two agents by identity.
func (a *Agent) IsEqual(other *Agent) bool {
	if other == nil {
		return false
	}
	return a.id.IsEqual(other.id)
}

// Validate checks if the Agent was properly constructed using NewAgent or RestoreAgent.
// The zero value of Agent is invalid and will fail this validation.
func (a *Agent) Validate() error {
	if a == nil {
		return ErrAgentIsNotConstructed
	}
	return a.guard.Validate(ErrAgentIsNotConstructed)
}

// ID returns the unique identifier of the agent.
func (a *Agent) ID() kernel.UUID {
	return a.id
}

// StoreID returns the store the agent delivers for.
func (a *Agent) StoreID() kernel.UUID {
	return a.storeID
}

// Code returns the human-readable agent code.
func (a *Agent) Code() string {
	return a.code
}

// Name returns the display name of the agent.
func (a *Agent) Name() string {
	return a.name
}

// Status returns the declared working state.
func (a *Agent) Status() AgentStatus {
	return a.status
}

// Location returns the last reported position. Check HasLocation before relying on it.
func (a *Agent) Location() kernel.GeoPoint {
	return a.location
}

// HasLocation reports whether the agent has ever reported a position.
func (a *Agent) HasLocation() bool {
	return a.lastLocationUpdate != nil && a.location.IsSet()
}

// LastLocationUpdate returns when the position was last reported.
func (a *Agent) LastLocationUpdate() *time.Time {
	return a.lastLocationUpdate
}

// ActiveAssignmentID returns the assignment the agent currently serves, nil when free.
func (a *Agent) ActiveAssignmentID() *kernel.UUID {
	return a.activeAssignmentID
}

func (a *Agent) TotalDeliveries() int            { return a.totalDeliveries }
func (a *Agent) SuccessfulDeliveries() int       { return a.successfulDeliveries }
func (a *Agent) AverageDeliveryMinutes() float64 { return a.averageDeliveryMinutes }
func (a *Agent) AverageRating() float64          { return a.averageRating }
func (a *Agent) RatingCount() int                { return a.ratingCount }
func (a *Agent) Version() int                    { return a.version.Current() }

func (a *Agent) AdvanceVersion() (int, int) {
	return a.version.Advance()
}

func (a *Agent) DomainEvents() []kernel.DomainEvent {
	return a.events.Events()
}

func (a *Agent) ClearDomainEvents() {
	a.events.Clear()
}

// SuccessRate returns successful / total deliveries, 0 when the agent has none.
func (a *Agent) SuccessRate() float64 {
	if a.totalDeliveries == 0 {
		return 0
	}
	return float64(a.successfulDeliveries) / float64(a.totalDeliveries)
}

// IsFree reports whether the agent serves no assignment.
func (a *Agent) IsFree() bool {
	return a.activeAssignmentID == nil
}

// HasFreshLocation reports whether the last position is no older than window at now.
func (a *Agent) HasFreshLocation(now time.Time, window time.Duration) bool {
	if !a.HasLocation() {
		return false
	}
	return now.Sub(*a.lastLocationUpdate) <= window
}

// IsOnline reports whether the agent is Active and its location is fresh.
//
// Example:
//
//	if agent.IsOnline(time.Now(), 5*time.Minute) {
//	    // show the agent on the store's live map
//	}
func (a *Agent) IsOnline(now time.Time, window time.Duration) bool {
	return a.status == AgentActive && a.HasFreshLocation(now, window)
}

// IsDispatchable reports whether the agent may receive a new assignment at now.
//
// Business rules:
//   - Status must be Active or OnBreak
//   - The location must be fresh within window
//   - The agent must not serve another assignment
func (a *Agent) IsDispatchable(now time.Time, window time.Duration) bool {
	if a.status != AgentActive && a.status != AgentOnBreak {
		return false
	}
	return a.IsFree() && a.HasFreshLocation(now, window)
}

// ChangeStatus sets the declared working state.
//
// Returns:
//   - error: validation error for an undefined status, or ErrInvalidTransition when the
//     agent tries to go Inactive or OffDuty while serving an assignment
func (a *Agent) ChangeStatus(status AgentStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	if !a.IsFree() && (status == AgentInactive || status == AgentOffDuty) {
		return errs.NewInvalidTransitionError("agent", a.status, status)
	}
	a.status = status
	return nil
}

// UpdateLocation records a reported position. The location stream itself is stored
// as tracking points by the dispatcher.
func (a *Agent) UpdateLocation(point kernel.GeoPoint, at time.Time) error {
	if err := point.Validate(); err != nil {
		return err
	}
	ts := at.UTC()
	a.location = point
	a.lastLocationUpdate = &ts
	a.events.Record(LocationUpdatedEvent{
		AgentID:      a.id,
		AssignmentID: a.activeAssignmentID,
		Location:     point,
		At:           ts,
	})
	return nil
}

// Engage binds the agent to an assignment.
//
// Returns:
//   - error: ErrAgentIsBusy when the agent already serves another assignment
func (a *Agent) Engage(assignmentID kernel.UUID) error {
	if err := assignmentID.Validate(); err != nil {
		return err
	}
	if !a.IsFree() {
		if a.activeAssignmentID.IsEqual(assignmentID) {
			return nil
		}
		return fmt.Errorf("%w: agent %s serves %s", ErrAgentIsBusy, a.code, a.activeAssignmentID)
	}
	a.activeAssignmentID = &assignmentID
	return nil
}

// Release frees the agent from assignmentID. Releasing an assignment the agent does
// not serve is a no-op.
func (a *Agent) Release(assignmentID kernel.UUID) {
	if a.activeAssignmentID != nil && a.activeAssignmentID.IsEqual(assignmentID) {
		a.activeAssignmentID = nil
	}
}

// RecordDeliveryOutcome counts a finished assignment. The average delivery time only
// includes successful deliveries.
func (a *Agent) RecordDeliveryOutcome(successful bool, minutes float64) {
	a.totalDeliveries++
	if !successful {
		return
	}
	a.successfulDeliveries++
	a.averageDeliveryMinutes += (minutes - a.averageDeliveryMinutes) / float64(a.successfulDeliveries)
}

// Rate folds a customer rating of 1..5 into the running average.
func (a *Agent) Rate(rating int) error {
	if err := validateRating(rating); err != nil {
		return err
	}
	a.ratingCount++
	a.averageRating += (float64(rating) - a.averageRating) / float64(a.ratingCount)
	return nil
}

func (a *Agent) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	a.id = id
	return nil
}

func (a *Agent) setStoreID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	a.storeID = id
	return nil
}

func (a *Agent) setCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrAgentCodeIsRequired
	}
	a.code = code
	return nil
}

func (a *Agent) setName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrAgentNameIsRequired
	}
	a.name = name
	return nil
}

func (a *Agent) setStatus(status AgentStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	a.status = status
	return nil
}

func validateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return errs.NewValueIsOutOfRangeError("rating", rating, MinRating, MaxRating)
	}
	return nil
}

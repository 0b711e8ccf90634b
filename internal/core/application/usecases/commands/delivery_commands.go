package commands

import (
	"errors"
	"strings"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var (
	ErrRegisterAgentCommandIsNotConstructed     = errors.New("RegisterAgentCommand must be created via NewRegisterAgentCommand constructor")
	ErrChangeAgentStatusCommandIsNotConstructed = errors.New("ChangeAgentStatusCommand must be created via NewChangeAgentStatusCommand constructor")
	ErrAssignAgentCommandIsNotConstructed       = errors.New("AssignAgentCommand must be created via NewAssignAgentCommand constructor")
	ErrRespondAssignmentCommandIsNotConstructed = errors.New("RespondAssignmentCommand must be created via NewRespondAssignmentCommand constructor")
	ErrRecordLocationCommandIsNotConstructed    = errors.New("RecordLocationCommand must be created via NewRecordLocationCommand constructor")
	ErrCompleteLegCommandIsNotConstructed       = errors.New("CompleteLegCommand must be created via NewCompleteLegCommand constructor")
	ErrFailAssignmentCommandIsNotConstructed    = errors.New("FailAssignmentCommand must be created via NewFailAssignmentCommand constructor")
	ErrRateAssignmentCommandIsNotConstructed    = errors.New("RateAssignmentCommand must be created via NewRateAssignmentCommand constructor")
	ErrCancelAssignmentCommandIsNotConstructed  = errors.New("CancelAssignmentCommand must be created via NewCancelAssignmentCommand constructor")
)

// RegisterAgentCommand adds a delivery agent to a store. New agents start inactive.
type RegisterAgentCommand struct {
	storeID kernel.UUID
	code    string
	name    string

	guard guard.ConstructorGuard
}

func NewRegisterAgentCommand(storeID kernel.UUID, code, name string) (RegisterAgentCommand, error) {
	if err := storeID.Validate(); err != nil {
		return RegisterAgentCommand{}, err
	}
	if strings.TrimSpace(code) == "" {
		return RegisterAgentCommand{}, errs.NewValueIsRequiredError("code")
	}
	if strings.TrimSpace(name) == "" {
		return RegisterAgentCommand{}, errs.NewValueIsRequiredError("name")
	}
	return RegisterAgentCommand{
		storeID: storeID,
		code:    strings.TrimSpace(code),
		name:    strings.TrimSpace(name),
		guard:   guard.NewConstructorGuard(),
	}, nil
}

func (c RegisterAgentCommand) Validate() error {
	return c.guard.Validate(ErrRegisterAgentCommandIsNotConstructed)
}

func (c RegisterAgentCommand) StoreID() kernel.UUID { return c.storeID }
func (c RegisterAgentCommand) Code() string         { return c.code }
func (c RegisterAgentCommand) Name() string         { return c.name }

type ChangeAgentStatusCommand struct {
	agentID kernel.UUID
	status  delivery.AgentStatus

	guard guard.ConstructorGuard
}

func NewChangeAgentStatusCommand(agentID kernel.UUID, status delivery.AgentStatus) (ChangeAgentStatusCommand, error) {
	if err := errors.Join(agentID.Validate(), status.Validate()); err != nil {
		return ChangeAgentStatusCommand{}, err
	}
	return ChangeAgentStatusCommand{agentID: agentID, status: status, guard: guard.NewConstructorGuard()}, nil
}

func (c ChangeAgentStatusCommand) Validate() error {
	return c.guard.Validate(ErrChangeAgentStatusCommandIsNotConstructed)
}

func (c ChangeAgentStatusCommand) AgentID() kernel.UUID         { return c.agentID }
func (c ChangeAgentStatusCommand) Status() delivery.AgentStatus { return c.status }

// AssignAgentCommand offers an order to the nearest free agent of its store. Agents
// listed in exclude, and agents whose earlier assignment for the order was cancelled
// or failed, are skipped.
type AssignAgentCommand struct {
	orderID kernel.UUID
	exclude []kernel.UUID

	guard guard.ConstructorGuard
}

func NewAssignAgentCommand(orderID kernel.UUID, exclude ...kernel.UUID) (AssignAgentCommand, error) {
	if err := orderID.Validate(); err != nil {
		return AssignAgentCommand{}, err
	}
	return AssignAgentCommand{
		orderID: orderID,
		exclude: append([]kernel.UUID(nil), exclude...),
		guard:   guard.NewConstructorGuard(),
	}, nil
}

func (c AssignAgentCommand) Validate() error {
	return c.guard.Validate(ErrAssignAgentCommandIsNotConstructed)
}

func (c AssignAgentCommand) OrderID() kernel.UUID   { return c.orderID }
func (c AssignAgentCommand) Exclude() []kernel.UUID { return append([]kernel.UUID(nil), c.exclude...) }

// RespondAssignmentCommand is the agent accepting or rejecting an offered order.
type RespondAssignmentCommand struct {
	assignmentID kernel.UUID
	agentID      kernel.UUID
	accept       bool
	reason       string

	guard guard.ConstructorGuard
}

func NewRespondAssignmentCommand(assignmentID, agentID kernel.UUID, accept bool, reason string) (RespondAssignmentCommand, error) {
	if err := errors.Join(assignmentID.Validate(), agentID.Validate()); err != nil {
		return RespondAssignmentCommand{}, err
	}
	return RespondAssignmentCommand{
		assignmentID: assignmentID,
		agentID:      agentID,
		accept:       accept,
		reason:       strings.TrimSpace(reason),
		guard:        guard.NewConstructorGuard(),
	}, nil
}

func (c RespondAssignmentCommand) Validate() error {
	return c.guard.Validate(ErrRespondAssignmentCommandIsNotConstructed)
}

func (c RespondAssignmentCommand) AssignmentID() kernel.UUID { return c.assignmentID }
func (c RespondAssignmentCommand) AgentID() kernel.UUID      { return c.agentID }
func (c RespondAssignmentCommand) Accept() bool              { return c.accept }
func (c RespondAssignmentCommand) Reason() string            { return c.reason }

// RecordLocationCommand is one position report of the agent serving an assignment.
type RecordLocationCommand struct {
	assignmentID kernel.UUID
	location     kernel.GeoPoint
	accuracy     *float64
	speed        *float64
	bearing      *float64

	guard guard.ConstructorGuard
}

func NewRecordLocationCommand(
	assignmentID kernel.UUID,
	location kernel.GeoPoint,
	accuracy, speed, bearing *float64,
) (RecordLocationCommand, error) {
	if err := errors.Join(assignmentID.Validate(), location.Validate()); err != nil {
		return RecordLocationCommand{}, err
	}
	return RecordLocationCommand{
		assignmentID: assignmentID,
		location:     location,
		accuracy:     accuracy,
		speed:        speed,
		bearing:      bearing,
		guard:        guard.NewConstructorGuard(),
	}, nil
}

func (c RecordLocationCommand) Validate() error {
	return c.guard.Validate(ErrRecordLocationCommandIsNotConstructed)
}

func (c RecordLocationCommand) AssignmentID() kernel.UUID { return c.assignmentID }
func (c RecordLocationCommand) Location() kernel.GeoPoint { return c.location }
func (c RecordLocationCommand) Accuracy() *float64        { return c.accuracy }
func (c RecordLocationCommand) Speed() *float64           { return c.speed }
func (c RecordLocationCommand) Bearing() *float64         { return c.bearing }

// CompleteLegCommand moves an assignment to its next leg. Proof is required for
// Delivered and ignored otherwise.
type CompleteLegCommand struct {
	assignmentID kernel.UUID
	agentID      kernel.UUID
	target       delivery.AssignmentStatus
	proof        *delivery.ProofOfDelivery

	guard guard.ConstructorGuard
}

func NewCompleteLegCommand(
	assignmentID, agentID kernel.UUID,
	target delivery.AssignmentStatus,
	proof *delivery.ProofOfDelivery,
) (CompleteLegCommand, error) {
	if err := errors.Join(assignmentID.Validate(), agentID.Validate(), target.Validate()); err != nil {
		return CompleteLegCommand{}, err
	}
	if target != delivery.AssignmentPickedUp &&
		target != delivery.AssignmentInTransit &&
		target != delivery.AssignmentDelivered {
		return CompleteLegCommand{}, errs.NewValueIsInvalidError("leg")
	}
	return CompleteLegCommand{
		assignmentID: assignmentID,
		agentID:      agentID,
		target:       target,
		proof:        proof,
		guard:        guard.NewConstructorGuard(),
	}, nil
}

func (c CompleteLegCommand) Validate() error {
	return c.guard.Validate(ErrCompleteLegCommandIsNotConstructed)
}

func (c CompleteLegCommand) AssignmentID() kernel.UUID         { return c.assignmentID }
func (c CompleteLegCommand) AgentID() kernel.UUID              { return c.agentID }
func (c CompleteLegCommand) Target() delivery.AssignmentStatus { return c.target }
func (c CompleteLegCommand) Proof() *delivery.ProofOfDelivery  { return c.proof }

type FailAssignmentCommand struct {
	assignmentID kernel.UUID
	reason       string

	guard guard.ConstructorGuard
}

func NewFailAssignmentCommand(assignmentID kernel.UUID, reason string) (FailAssignmentCommand, error) {
	if err := assignmentID.Validate(); err != nil {
		return FailAssignmentCommand{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return FailAssignmentCommand{}, errs.NewValueIsRequiredError("reason")
	}
	return FailAssignmentCommand{assignmentID: assignmentID, reason: strings.TrimSpace(reason), guard: guard.NewConstructorGuard()}, nil
}

func (c FailAssignmentCommand) Validate() error {
	return c.guard.Validate(ErrFailAssignmentCommandIsNotConstructed)
}

func (c FailAssignmentCommand) AssignmentID() kernel.UUID { return c.assignmentID }
func (c FailAssignmentCommand) Reason() string            { return c.reason }

type RateAssignmentCommand struct {
	assignmentID kernel.UUID
	rating       int
	feedback     string

	guard guard.ConstructorGuard
}

func NewRateAssignmentCommand(assignmentID kernel.UUID, rating int, feedback string) (RateAssignmentCommand, error) {
	if err := assignmentID.Validate(); err != nil {
		return RateAssignmentCommand{}, err
	}
	if rating < delivery.MinRating || rating > delivery.MaxRating {
		return RateAssignmentCommand{}, errs.NewValueIsOutOfRangeError("rating", rating, delivery.MinRating, delivery.MaxRating)
	}
	return RateAssignmentCommand{
		assignmentID: assignmentID,
		rating:       rating,
		feedback:     strings.TrimSpace(feedback),
		guard:        guard.NewConstructorGuard(),
	}, nil
}

func (c RateAssignmentCommand) Validate() error {
	return c.guard.Validate(ErrRateAssignmentCommandIsNotConstructed)
}

func (c RateAssignmentCommand) AssignmentID() kernel.UUID { return c.assignmentID }
func (c RateAssignmentCommand) Rating() int               { return c.rating }
func (c RateAssignmentCommand) Feedback() string          { return c.feedback }

// CancelAssignmentCommand cancels the open assignment of an order, if any.
type CancelAssignmentCommand struct {
	orderID kernel.UUID
	reason  string

	guard guard.ConstructorGuard
}

func NewCancelAssignmentCommand(orderID kernel.UUID, reason string) (CancelAssignmentCommand, error) {
	if err := orderID.Validate(); err != nil {
		return CancelAssignmentCommand{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return CancelAssignmentCommand{}, errs.NewValueIsRequiredError("reason")
	}
	return CancelAssignmentCommand{orderID: orderID, reason: reason, guard: guard.NewConstructorGuard()}, nil
}

func (c CancelAssignmentCommand) Validate() error {
	return c.guard.Validate(ErrCancelAssignmentCommandIsNotConstructed)
}

func (c CancelAssignmentCommand) OrderID() kernel.UUID { return c.orderID }
func (c CancelAssignmentCommand) Reason() string       { return c.reason }

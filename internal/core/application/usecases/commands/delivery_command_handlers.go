package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"
)

// RegisterAgentCommandHandler creates a delivery agent.
type RegisterAgentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	catalog    ports.Catalog
}

func NewRegisterAgentCommandHandler(uowFactory ports.UnitOfWorkFactory, catalog ports.Catalog) RegisterAgentCommandHandler {
	return RegisterAgentCommandHandler{uowFactory: uowFactory, catalog: catalog}
}

func (h RegisterAgentCommandHandler) Handle(ctx context.Context, cmd RegisterAgentCommand) (*delivery.Agent, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, err := h.catalog.GetStore(ctx, cmd.StoreID()); err != nil {
		return nil, err
	}

	var agent *delivery.Agent
	err := inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		var err error
		agent, err = delivery.NewAgent(kernel.NewUUID(), cmd.StoreID(), cmd.Code(), cmd.Name())
		if err != nil {
			return err
		}
		return uow.AgentRepository().Add(ctx, agent)
	})
	return agent, err
}

// ChangeAgentStatusCommandHandler sets an agent's declared working state.
type ChangeAgentStatusCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewChangeAgentStatusCommandHandler(uowFactory ports.UnitOfWorkFactory) ChangeAgentStatusCommandHandler {
	return ChangeAgentStatusCommandHandler{uowFactory: uowFactory}
}

func (h ChangeAgentStatusCommandHandler) Handle(ctx context.Context, cmd ChangeAgentStatusCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		agent, err := uow.AgentRepository().Get(ctx, cmd.AgentID())
		if err != nil {
			return err
		}
		if err = agent.ChangeStatus(cmd.Status()); err != nil {
			return err
		}
		return uow.AgentRepository().Update(ctx, agent)
	})
}

// AssignAgentCommandHandler offers an order to the nearest dispatchable agent of its
// store. Agent, assignment and order are written in one transaction, each with its
// version check, so two dispatchers racing for the same agent or order cannot both win.
//
// When no agent qualifies the order keeps waiting: a dispatch request is stored with
// the time of the next attempt, and NoAgentAvailableError is returned. Once the
// policy's attempts are used up the error also wraps errs.ErrAttemptsExhausted.
//
// Example:
//
//	assignment, err := handler.Handle(ctx, cmd)
//	switch {
//	case errors.Is(err, errs.ErrAttemptsExhausted):
//	    // give up on delivery
//	case errors.Is(err, errs.ErrNoAgentAvailable):
//	    // the dispatch retry job will try again
//	}
type AssignAgentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	catalog    ports.Catalog
	estimator  ports.DistanceEstimator
	dispatcher services.AgentDispatcher
	policy     DispatchPolicy
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewAssignAgentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	catalog ports.Catalog,
	estimator ports.DistanceEstimator,
	dispatcher services.AgentDispatcher,
	policy DispatchPolicy,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) AssignAgentCommandHandler {
	return AssignAgentCommandHandler{
		uowFactory: uowFactory,
		catalog:    catalog,
		estimator:  estimator,
		dispatcher: dispatcher,
		policy:     policy,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "assign_agent"),
		metrics:    m,
	}
}

func (h AssignAgentCommandHandler) Handle(ctx context.Context, cmd AssignAgentCommand) (assignment *delivery.Assignment, err error) {
	defer h.metrics.ObserveCommand("assign_agent", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return nil, err
	}

	var noAgent error
	err = inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if !o.IsDispatchable() {
			if o.ActiveAssignmentID() != nil {
				return fmt.Errorf("%w: order %s already has assignment %s",
					errs.ErrAlreadyExists, o.Number(), o.ActiveAssignmentID())
			}
			return fmt.Errorf("%w: order %s is %s and cannot be dispatched",
				errs.ErrInvalidTransition, o.Number(), o.Status())
		}

		excluded, err := h.excludedAgents(ctx, uow, o, cmd.Exclude())
		if err != nil {
			return err
		}
		candidates, err := h.candidates(ctx, uow, o, excluded, now)
		if err != nil {
			return err
		}

		chosen, err := h.dispatcher.Choose(o.ID(), candidates)
		if errors.Is(err, errs.ErrNoAgentAvailable) {
			noAgent = err
			exhausted, err := h.scheduleRetry(ctx, uow, o, noAgent, now)
			if exhausted {
				noAgent = fmt.Errorf("%w: %w", noAgent, errs.ErrAttemptsExhausted)
			}
			return err
		}
		if err != nil {
			return err
		}

		assignment, err = delivery.NewAssignment(
			kernel.NewUUID(), o.ID(), o.StoreID(), chosen.Agent.ID(), chosen.Estimate, now, h.policy.ResponseWindow)
		if err != nil {
			return err
		}
		if err = chosen.Agent.Engage(assignment.ID()); err != nil {
			return err
		}
		if err = o.AttachAssignment(assignment.ID()); err != nil {
			return err
		}

		if err = uow.AssignmentRepository().Add(ctx, assignment); err != nil {
			return err
		}
		if err = uow.AgentRepository().Update(ctx, chosen.Agent); err != nil {
			return err
		}
		if err = uow.OrderRepository().Update(ctx, o); err != nil {
			return err
		}
		return h.clearRetry(ctx, uow, o.ID())
	})
	if err != nil {
		return nil, err
	}

	if noAgent != nil {
		if errors.Is(noAgent, errs.ErrAttemptsExhausted) {
			h.metrics.DispatchAttempt("exhausted")
		} else {
			h.metrics.DispatchAttempt("no_agent")
		}
		return nil, noAgent
	}

	h.metrics.DispatchAttempt("assigned")
	h.logger.InfoContext(ctx, "agent assigned",
		"order_id", assignment.OrderID().String(),
		"assignment_id", assignment.ID().String(),
		"agent_id", assignment.AgentID().String(),
		"eta_minutes", assignment.Estimate().EtaMinutes)
	return assignment, nil
}

// excludedAgents collects the agents that must not be offered the order again.
func (h AssignAgentCommandHandler) excludedAgents(
	ctx context.Context,
	uow ports.UnitOfWork,
	o *order.Order,
	explicit []kernel.UUID,
) (map[kernel.UUID]struct{}, error) {
	excluded := make(map[kernel.UUID]struct{}, len(explicit))
	for _, id := range explicit {
		excluded[id] = struct{}{}
	}

	previous, err := uow.AssignmentRepository().ListByOrder(ctx, o.ID())
	if err != nil {
		return nil, err
	}
	for _, a := range previous {
		switch a.Status() {
		case delivery.AssignmentCancelled, delivery.AssignmentFailed:
			excluded[a.AgentID()] = struct{}{}
		case delivery.AssignmentDelivered:
		default:
			return nil, fmt.Errorf("%w: order %s already has open assignment %s",
				errs.ErrAlreadyExists, o.Number(), a.ID())
		}
	}
	return excluded, nil
}

func (h AssignAgentCommandHandler) candidates(
	ctx context.Context,
	uow ports.UnitOfWork,
	o *order.Order,
	excluded map[kernel.UUID]struct{},
	now time.Time,
) ([]services.Candidate, error) {
	store, err := h.catalog.GetStore(ctx, o.StoreID())
	if err != nil {
		return nil, err
	}
	agents, err := uow.AgentRepository().ListByStore(ctx, o.StoreID())
	if err != nil {
		return nil, err
	}

	candidates := make([]services.Candidate, 0, len(agents))
	for _, agent := range agents {
		if _, skip := excluded[agent.ID()]; skip {
			continue
		}
		if !agent.IsDispatchable(now, h.policy.FreshnessWindow) {
			continue
		}
		estimate, err := h.estimator.Estimate(ctx, agent.Location(), store.Location)
		if err != nil {
			h.logger.WarnContext(ctx, "distance estimate failed, agent skipped",
				"agent_id", agent.ID().String(),
				"error", err)
			continue
		}
		candidates = append(candidates, services.Candidate{Agent: agent, Estimate: estimate})
	}
	return candidates, nil
}

// scheduleRetry records the failed attempt and reports whether dispatching gave up.
func (h AssignAgentCommandHandler) scheduleRetry(
	ctx context.Context,
	uow ports.UnitOfWork,
	o *order.Order,
	cause error,
	now time.Time,
) (bool, error) {
	repo := uow.DispatchRequestRepository()
	request, err := repo.Get(ctx, o.ID())
	if errors.Is(err, errs.ErrObjectNotFound) {
		request, err = delivery.NewDispatchRequest(o.ID(), o.StoreID(), now)
	}
	if err != nil {
		return false, err
	}

	request.RecordFailure(cause, h.policy.RetryDelay(request.Attempts()+1), h.policy.MaxAttempts, now)
	if err = repo.Save(ctx, request); err != nil {
		return false, err
	}

	if request.Exhausted() {
		h.logger.WarnContext(ctx, "dispatch attempts exhausted",
			"order_id", o.ID().String(),
			"attempts", request.Attempts())
		return true, nil
	}
	h.logger.InfoContext(ctx, "no agent available, dispatch retry scheduled",
		"order_id", o.ID().String(),
		"attempts", request.Attempts(),
		"next_attempt_at", request.NextAttemptAt())
	return false, nil
}

func (h AssignAgentCommandHandler) clearRetry(ctx context.Context, uow ports.UnitOfWork, orderID kernel.UUID) error {
	_, err := uow.DispatchRequestRepository().Get(ctx, orderID)
	if errors.Is(err, errs.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return uow.DispatchRequestRepository().Delete(ctx, orderID)
}

// RespondAssignmentCommandHandler records the agent's answer to an offer. A rejection
// frees the agent and the order; the coordinator then offers the order to someone else.
type RespondAssignmentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
}

func NewRespondAssignmentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
) RespondAssignmentCommandHandler {
	return RespondAssignmentCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock}
}

func (h RespondAssignmentCommandHandler) Handle(ctx context.Context, cmd RespondAssignmentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		a, err := uow.AssignmentRepository().Get(ctx, cmd.AssignmentID())
		if err != nil {
			return err
		}
		if cmd.Accept() {
			if err = a.Accept(cmd.AgentID(), now); err != nil {
				return err
			}
			return uow.AssignmentRepository().Update(ctx, a)
		}

		if err = a.Reject(cmd.AgentID(), cmd.Reason(), now); err != nil {
			return err
		}
		return closeAssignment(ctx, uow, a)
	})
}

// RecordLocationCommandHandler stores a tracking point and moves the agent.
type RecordLocationCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
}

func NewRecordLocationCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
) RecordLocationCommandHandler {
	return RecordLocationCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock}
}

func (h RecordLocationCommandHandler) Handle(ctx context.Context, cmd RecordLocationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		a, err := uow.AssignmentRepository().Get(ctx, cmd.AssignmentID())
		if err != nil {
			return err
		}
		if a.IsTerminal() {
			return fmt.Errorf("%w: assignment %s is %s", errs.ErrInvalidTransition, a.ID(), a.Status())
		}
		agent, err := uow.AgentRepository().Get(ctx, a.AgentID())
		if err != nil {
			return err
		}

		point, err := delivery.NewTrackingPoint(
			a.ID(), agent.ID(), cmd.Location(), cmd.Accuracy(), cmd.Speed(), cmd.Bearing(), now)
		if err != nil {
			return err
		}
		if err = agent.UpdateLocation(cmd.Location(), now); err != nil {
			return err
		}
		if err = uow.AssignmentRepository().AppendTracking(ctx, point); err != nil {
			return err
		}
		return uow.AgentRepository().Update(ctx, agent)
	})
}

// CompleteLegCommandHandler moves an assignment to its next leg on behalf of the agent
// holding it. Picking up requires the order to be packed; delivering requires proof
// and frees the agent.
type CompleteLegCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
}

func NewCompleteLegCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
) CompleteLegCommandHandler {
	return CompleteLegCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock}
}

func (h CompleteLegCommandHandler) Handle(ctx context.Context, cmd CompleteLegCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		a, err := uow.AssignmentRepository().Get(ctx, cmd.AssignmentID())
		if err != nil {
			return err
		}

		if cmd.Target() == delivery.AssignmentPickedUp {
			o, err := uow.OrderRepository().Get(ctx, a.OrderID())
			if err != nil {
				return err
			}
			if o.Status() != order.ReadyForPickup {
				return fmt.Errorf("%w: order %s is %s, not ready for pickup",
					errs.NewInvalidTransitionError("assignment", a.Status(), cmd.Target()), o.Number(), o.Status())
			}
		}

		if err = a.CompleteLeg(cmd.AgentID(), cmd.Target(), cmd.Proof(), h.clock.Now()); err != nil {
			return err
		}
		if err = uow.AssignmentRepository().Update(ctx, a); err != nil {
			return err
		}
		if a.Status() != delivery.AssignmentDelivered {
			return nil
		}

		agent, err := uow.AgentRepository().Get(ctx, a.AgentID())
		if err != nil {
			return err
		}
		agent.Release(a.ID())
		minutes := 0.0
		if a.ActualMinutes() != nil {
			minutes = *a.ActualMinutes()
		}
		agent.RecordDeliveryOutcome(true, minutes)
		return uow.AgentRepository().Update(ctx, agent)
	})
}

// FailAssignmentCommandHandler closes an assignment as failed and frees the agent.
// What happens to the order is decided by the coordinator's failure policy.
type FailAssignmentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
}

func NewFailAssignmentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
) FailAssignmentCommandHandler {
	return FailAssignmentCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock}
}

func (h FailAssignmentCommandHandler) Handle(ctx context.Context, cmd FailAssignmentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		a, err := uow.AssignmentRepository().Get(ctx, cmd.AssignmentID())
		if err != nil {
			return err
		}
		engaged := a.AcceptedAt() != nil
		if err = a.Fail(cmd.Reason(), h.clock.Now()); err != nil {
			return err
		}
		if engaged {
			agent, err := uow.AgentRepository().Get(ctx, a.AgentID())
			if err != nil {
				return err
			}
			agent.RecordDeliveryOutcome(false, 0)
			if err = uow.AgentRepository().Update(ctx, agent); err != nil {
				return err
			}
		}
		return closeAssignment(ctx, uow, a)
	})
}

// RateAssignmentCommandHandler stores the customer's rating of a delivery.
type RateAssignmentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewRateAssignmentCommandHandler(uowFactory ports.UnitOfWorkFactory) RateAssignmentCommandHandler {
	return RateAssignmentCommandHandler{uowFactory: uowFactory}
}

func (h RateAssignmentCommandHandler) Handle(ctx context.Context, cmd RateAssignmentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		a, err := uow.AssignmentRepository().Get(ctx, cmd.AssignmentID())
		if err != nil {
			return err
		}
		if err = a.Rate(cmd.Rating(), cmd.Feedback()); err != nil {
			return err
		}
		agent, err := uow.AgentRepository().Get(ctx, a.AgentID())
		if err != nil {
			return err
		}
		if err = agent.Rate(cmd.Rating()); err != nil {
			return err
		}
		if err = uow.AssignmentRepository().Update(ctx, a); err != nil {
			return err
		}
		return uow.AgentRepository().Update(ctx, agent)
	})
}

// CancelAssignmentCommandHandler cancels whatever assignment is still open for an
// order, and drops a pending dispatch retry.
type CancelAssignmentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
}

func NewCancelAssignmentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
) CancelAssignmentCommandHandler {
	return CancelAssignmentCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock}
}

func (h CancelAssignmentCommandHandler) Handle(ctx context.Context, cmd CancelAssignmentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		assignments, err := uow.AssignmentRepository().ListByOrder(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.IsTerminal() {
				continue
			}
			if err = a.Cancel(cmd.Reason(), h.clock.Now()); err != nil {
				return err
			}
			if err = closeAssignment(ctx, uow, a); err != nil {
				return err
			}
		}

		_, err = uow.DispatchRequestRepository().Get(ctx, cmd.OrderID())
		switch {
		case errors.Is(err, errs.ErrObjectNotFound):
			return nil
		case err != nil:
			return err
		}
		return uow.DispatchRequestRepository().Delete(ctx, cmd.OrderID())
	})
}

// closeAssignment saves an assignment that just became terminal and releases the
// agent and the order it held.
func closeAssignment(ctx context.Context, uow ports.UnitOfWork, a *delivery.Assignment) error {
	if err := uow.AssignmentRepository().Update(ctx, a); err != nil {
		return err
	}

	agent, err := uow.AgentRepository().Get(ctx, a.AgentID())
	if err != nil {
		return err
	}
	agent.Release(a.ID())
	if err = uow.AgentRepository().Update(ctx, agent); err != nil {
		return err
	}

	o, err := uow.OrderRepository().Get(ctx, a.OrderID())
	if err != nil {
		return err
	}
	o.DetachAssignment(a.ID())
	return uow.OrderRepository().Update(ctx, o)
}

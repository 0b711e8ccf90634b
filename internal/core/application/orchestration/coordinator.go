// Package orchestration reacts to committed domain events and drives the follow-up
// commands that tie orders, payments and deliveries together. Each reaction runs
// its command in a transaction of its own and relies on the command to re-check the
// order's state, so a stale or duplicated event cannot cause a wrong transition.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const (
	ReasonStockUnavailable  = "stock_unavailable"
	ReasonDeliveryFailed    = "delivery_failed"
	ReasonDispatchExhausted = "no_agent_available"
)

// Handlers are the commands the coordinator issues.
type Handlers struct {
	Confirm          commands.ConfirmOrderCommandHandler
	Advance          commands.AdvanceOrderCommandHandler
	Cancel           commands.CancelOrderCommandHandler
	RefundOrder      commands.RefundOrderCommandHandler
	RefundPayment    commands.RefundPaymentCommandHandler
	CancelPayment    commands.CancelPendingPaymentCommandHandler
	CollectCash      commands.CollectCashPaymentCommandHandler
	Assign           commands.AssignAgentCommandHandler
	CancelAssignment commands.CancelAssignmentCommandHandler
}

// Coordinator subscribes to the event bus. Every event is forwarded to the notifier;
// the events below also trigger commands:
//
//	payment.captured                  confirm a pending order, refund a cancelled one
//	payment.initiated (cash)          confirm
//	order.status_changed confirmed    assign an agent
//	order.status_changed cancelled    cancel pending payment, refund, cancel assignment
//	order.status_changed refunded     same as cancelled
//	delivery.assignment_changed       reassign, apply the failure policy, advance the order
type Coordinator struct {
	uowFactory ports.UnitOfWorkFactory
	handlers   Handlers
	notifier   ports.Notifier
	policy     FailurePolicy
	actor      kernel.Actor
	tracer     tracing.Tracer
	logger     *slog.Logger
}

func NewCoordinator(
	uowFactory ports.UnitOfWorkFactory,
	handlers Handlers,
	notifier ports.Notifier,
	policy FailurePolicy,
	logger *slog.Logger,
) (*Coordinator, error) {
	if uowFactory == nil {
		return nil, errs.NewValueIsRequiredError("unit of work factory")
	}
	if logger == nil {
		return nil, errs.NewValueIsRequiredError("logger")
	}
	if _, err := ParseFailurePolicy(policy.String()); err != nil {
		return nil, err
	}
	return &Coordinator{
		uowFactory: uowFactory,
		handlers:   handlers,
		notifier:   notifier,
		policy:     policy,
		actor:      kernel.SystemActor("coordinator"),
		tracer:     tracing.New("fulfillment/orchestration"),
		logger:     logger.With("component", "coordinator"),
	}, nil
}

// Register subscribes the coordinator's reactions.
func (c *Coordinator) Register(bus ports.EventSubscriber) {
	if c.notifier != nil {
		bus.SubscribeAll(c.notify)
	}
	bus.Subscribe(payment.CapturedEventName, c.onPaymentCaptured)
	bus.Subscribe(payment.InitiatedEventName, c.onPaymentInitiated)
	bus.Subscribe(order.StatusChangedEventName, c.onOrderStatusChanged)
	bus.Subscribe(delivery.AssignmentChangedEventName, c.onAssignmentChanged)
}

func (c *Coordinator) notify(ctx context.Context, event kernel.DomainEvent) error {
	return c.notifier.Notify(ctx, event)
}

func (c *Coordinator) onPaymentCaptured(ctx context.Context, event kernel.DomainEvent) (err error) {
	e, ok := event.(payment.CapturedEvent)
	if !ok {
		return unexpected(event)
	}
	ctx, span := c.tracer.Start(ctx, "coordinator.payment_captured",
		attribute.String("order_id", e.OrderID.String()),
		attribute.String("payment_id", e.PaymentID.String()))
	defer func() { tracing.End(span, err) }()

	o, err := c.loadOrder(ctx, e.OrderID)
	if err != nil {
		return err
	}
	switch o.Status() {
	case order.Pending:
		return c.confirm(ctx, o.ID())
	case order.Cancelled, order.Refunded:
		c.logger.InfoContext(ctx, "payment captured for closed order, refunding",
			"order_id", o.ID().String(),
			"status", o.Status().String())
		return c.refundRemainder(ctx, o.ID(), "order "+o.Status().String())
	default:
		return nil
	}
}

func (c *Coordinator) onPaymentInitiated(ctx context.Context, event kernel.DomainEvent) (err error) {
	e, ok := event.(payment.InitiatedEvent)
	if !ok {
		return unexpected(event)
	}
	if e.Method != payment.MethodCashOnDelivery {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "coordinator.cash_payment_initiated",
		attribute.String("order_id", e.OrderID.String()))
	defer func() { tracing.End(span, err) }()

	return c.confirm(ctx, e.OrderID)
}

func (c *Coordinator) onOrderStatusChanged(ctx context.Context, event kernel.DomainEvent) (err error) {
	e, ok := event.(order.StatusChangedEvent)
	if !ok {
		return unexpected(event)
	}
	switch e.To {
	case order.Confirmed, order.Cancelled, order.Refunded:
	default:
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "coordinator.order_"+e.To.String(),
		attribute.String("order_id", e.OrderID.String()),
		attribute.String("from", e.From.String()))
	defer func() { tracing.End(span, err) }()

	if e.To == order.Confirmed {
		return c.assign(ctx, e.OrderID)
	}
	return c.unwind(ctx, e.OrderID, e.Note)
}

func (c *Coordinator) onAssignmentChanged(ctx context.Context, event kernel.DomainEvent) (err error) {
	e, ok := event.(delivery.AssignmentChangedEvent)
	if !ok {
		return unexpected(event)
	}
	switch e.To {
	case delivery.AssignmentCancelled, delivery.AssignmentFailed, delivery.AssignmentPickedUp, delivery.AssignmentDelivered:
	default:
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "coordinator.assignment_"+e.To.String(),
		attribute.String("order_id", e.OrderID.String()),
		attribute.String("assignment_id", e.AssignmentID.String()),
		attribute.String("agent_id", e.AgentID.String()))
	defer func() { tracing.End(span, err) }()

	switch e.To {
	case delivery.AssignmentCancelled:
		if e.Reason == delivery.ReasonOrderCancelled || e.Reason == delivery.ReasonOrderOverridden {
			return nil
		}
		return c.assign(ctx, e.OrderID, e.AgentID)
	case delivery.AssignmentFailed:
		return c.applyFailurePolicy(ctx, e.OrderID, e.AgentID, e.Reason)
	case delivery.AssignmentPickedUp:
		return c.advance(ctx, e.OrderID, e.AgentID, order.OutForDelivery)
	default:
		if err = c.advance(ctx, e.OrderID, e.AgentID, order.Delivered); err != nil {
			return err
		}
		cmd, err := commands.NewCollectCashPaymentCommand(e.OrderID)
		if err != nil {
			return err
		}
		return c.handlers.CollectCash.Handle(ctx, cmd)
	}
}

// confirm confirms a pending order. Stock that vanished while the payment was in
// flight cancels the order; the cancellation then refunds the payment.
func (c *Coordinator) confirm(ctx context.Context, orderID kernel.UUID) error {
	cmd, err := commands.NewConfirmOrderCommand(orderID, c.actor)
	if err != nil {
		return err
	}
	err = c.handlers.Confirm.Handle(ctx, cmd)
	if !errors.Is(err, errs.ErrOutOfStock) {
		return err
	}

	c.logger.WarnContext(ctx, "stock gone at confirmation, cancelling order",
		"order_id", orderID.String(),
		"error", err)
	return c.cancelOrRefund(ctx, orderID, ReasonStockUnavailable)
}

// Dispatch retries the assignment of a confirmed order. Exhausted retries close the
// order the same way a failed delivery does.
func (c *Coordinator) Dispatch(ctx context.Context, orderID kernel.UUID) (err error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.dispatch",
		attribute.String("order_id", orderID.String()))
	defer func() { tracing.End(span, err) }()

	return c.assign(ctx, orderID)
}

func (c *Coordinator) assign(ctx context.Context, orderID kernel.UUID, exclude ...kernel.UUID) error {
	cmd, err := commands.NewAssignAgentCommand(orderID, exclude...)
	if err != nil {
		return err
	}
	_, err = c.handlers.Assign.Handle(ctx, cmd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrAttemptsExhausted):
		c.logger.WarnContext(ctx, "dispatch attempts exhausted, giving up on delivery",
			"order_id", orderID.String())
		return c.cancelOrRefund(ctx, orderID, ReasonDispatchExhausted)
	case errors.Is(err, errs.ErrNoAgentAvailable):
		return nil
	case errors.Is(err, errs.ErrAlreadyExists):
		// Another reaction assigned the order first.
		return nil
	default:
		return err
	}
}

func (c *Coordinator) advance(ctx context.Context, orderID, agentID kernel.UUID, target order.Status) error {
	actor, err := kernel.NewActor(agentID.String(), kernel.RoleAgent)
	if err != nil {
		return err
	}
	cmd, err := commands.NewAdvanceOrderCommand(orderID, target, actor, "", false)
	if err != nil {
		return err
	}
	return c.handlers.Advance.Handle(ctx, cmd)
}

func (c *Coordinator) applyFailurePolicy(ctx context.Context, orderID, agentID kernel.UUID, reason string) error {
	o, err := c.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status().IsTerminal() {
		return nil
	}

	if c.policy == PolicyRedispatch && o.IsDispatchable() {
		c.logger.InfoContext(ctx, "delivery failed, redispatching",
			"order_id", orderID.String(),
			"failed_agent_id", agentID.String(),
			"reason", reason)
		return c.assign(ctx, orderID, agentID)
	}
	return c.cancelOrRefund(ctx, orderID, ReasonDeliveryFailed+": "+reason)
}

// cancelOrRefund closes an order on the failure path: cancelled while it is still
// cancellable, refunded afterwards. Money and assignments follow from the resulting
// status change.
func (c *Coordinator) cancelOrRefund(ctx context.Context, orderID kernel.UUID, reason string) error {
	o, err := c.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status().IsTerminal() {
		return nil
	}

	if o.Status().CanCancel() {
		cmd, err := commands.NewCancelOrderCommand(orderID, c.actor, reason)
		if err != nil {
			return err
		}
		return c.handlers.Cancel.Handle(ctx, cmd)
	}
	cmd, err := commands.NewRefundOrderCommand(orderID, c.actor, reason)
	if err != nil {
		return err
	}
	return c.handlers.RefundOrder.Handle(ctx, cmd)
}

// unwind releases everything still attached to a closed order.
func (c *Coordinator) unwind(ctx context.Context, orderID kernel.UUID, reason string) error {
	if reason == "" {
		reason = "order closed"
	}

	cancelPayment, err := commands.NewCancelPendingPaymentCommand(orderID, reason)
	if err != nil {
		return err
	}
	cancelAssignment, err := commands.NewCancelAssignmentCommand(orderID, delivery.ReasonOrderCancelled)
	if err != nil {
		return err
	}

	return errors.Join(
		c.handlers.CancelPayment.Handle(ctx, cancelPayment),
		c.refundRemainder(ctx, orderID, reason),
		c.handlers.CancelAssignment.Handle(ctx, cancelAssignment),
	)
}

// refundRemainder refunds whatever is still refundable on every captured payment of
// the order.
func (c *Coordinator) refundRemainder(ctx context.Context, orderID kernel.UUID, reason string) error {
	var payments []*payment.Payment
	err := c.read(ctx, func(uow ports.UnitOfWork) error {
		var err error
		payments, err = uow.PaymentRepository().ListByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return err
	}

	var refundErrs []error
	for _, p := range payments {
		if !p.Status().IsCaptured() || !p.RefundableAmount().IsPositive() {
			continue
		}
		cmd, err := commands.NewRefundPaymentCommand(p.ID(), p.RefundableAmount(), reason, c.actor)
		if err != nil {
			return err
		}
		if _, err = c.handlers.RefundPayment.Handle(ctx, cmd); err != nil {
			refundErrs = append(refundErrs, fmt.Errorf("refund of payment %s: %w", p.Number(), err))
		}
	}
	return errors.Join(refundErrs...)
}

func (c *Coordinator) loadOrder(ctx context.Context, orderID kernel.UUID) (*order.Order, error) {
	var o *order.Order
	err := c.read(ctx, func(uow ports.UnitOfWork) error {
		var err error
		o, err = uow.OrderRepository().Get(ctx, orderID)
		return err
	})
	return o, err
}

func (c *Coordinator) read(ctx context.Context, fn func(uow ports.UnitOfWork) error) error {
	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()
	return fn(uow)
}

func unexpected(event kernel.DomainEvent) error {
	return fmt.Errorf("unexpected event payload %T for %s", event, event.EventName())
}

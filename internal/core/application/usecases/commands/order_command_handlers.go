package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fulfillment/internal/core/application/ledger"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"
)

// ConfirmOrderCommandHandler confirms a pending order and turns its reservations into
// a permanent stock decrement in the same transaction.
//
// Fails with OutOfStockError when a reservation expired and the stock is gone, and with
// InvalidTransitionError when the order is not pending or its payment is not settled.
type ConfirmOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	inventory  *ledger.Inventory
	publisher  ports.EventPublisher
	clock      ports.Clock
	metrics    *metrics.Metrics
}

func NewConfirmOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	inventory *ledger.Inventory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	m *metrics.Metrics,
) ConfirmOrderCommandHandler {
	return ConfirmOrderCommandHandler{
		uowFactory: uowFactory,
		inventory:  inventory,
		publisher:  publisher,
		clock:      clock,
		metrics:    m,
	}
}

func (h ConfirmOrderCommandHandler) Handle(ctx context.Context, cmd ConfirmOrderCommand) (err error) {
	defer h.metrics.ObserveCommand("confirm_order", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = o.Confirm(cmd.Actor(), now); err != nil {
			return err
		}
		if err = h.inventory.Commit(ctx, uow, o.ID(), now); err != nil {
			return err
		}
		if err = uow.OrderRepository().Update(ctx, o); err != nil {
			return err
		}
		h.metrics.OrderTransition(order.Pending.String(), order.Confirmed.String())
		return nil
	})
}

// AdvanceOrderCommandHandler moves an order forward along its fulfillment path.
type AdvanceOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewAdvanceOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) AdvanceOrderCommandHandler {
	return AdvanceOrderCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "advance_order"),
		metrics:    m,
	}
}

func (h AdvanceOrderCommandHandler) Handle(ctx context.Context, cmd AdvanceOrderCommand) (err error) {
	defer h.metrics.ObserveCommand("advance_order", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		now := h.clock.Now()
		from := o.Status()
		if err = o.Advance(cmd.Target(), cmd.Actor(), cmd.Note(), cmd.Override(), now); err != nil {
			return err
		}
		if cmd.Override() && (o.Status() == order.OutForDelivery || o.Status() == order.Delivered) {
			if err = h.abandonDelivery(ctx, uow, o, now); err != nil {
				return err
			}
		}
		if err = uow.OrderRepository().Update(ctx, o); err != nil {
			return err
		}

		if cmd.Override() {
			h.logger.WarnContext(ctx, "order advanced by override",
				"order_id", o.ID().String(),
				"from", from.String(),
				"to", o.Status().String(),
				"actor", cmd.Actor().String(),
				"note", cmd.Note())
		}
		h.metrics.OrderTransition(from.String(), o.Status().String())
		return nil
	})
}

// abandonDelivery closes the open assignment and the pending dispatch retry of an
// order that an override moved past pickup. The agent is freed without a delivery
// outcome.
func (h AdvanceOrderCommandHandler) abandonDelivery(
	ctx context.Context,
	uow ports.UnitOfWork,
	o *order.Order,
	now time.Time,
) error {
	assignments, err := uow.AssignmentRepository().ListByOrder(ctx, o.ID())
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if a.IsTerminal() {
			continue
		}
		if err = a.Cancel(delivery.ReasonOrderOverridden, now); err != nil {
			return err
		}
		if err = uow.AssignmentRepository().Update(ctx, a); err != nil {
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
		o.DetachAssignment(a.ID())
		h.logger.WarnContext(ctx, "assignment closed by order override",
			"order_id", o.ID().String(),
			"assignment_id", a.ID().String(),
			"agent_id", a.AgentID().String())
	}

	_, err = uow.DispatchRequestRepository().Get(ctx, o.ID())
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		return nil
	case err != nil:
		return err
	}
	return uow.DispatchRequestRepository().Delete(ctx, o.ID())
}

// CancelOrderCommandHandler cancels an order and gives its stock back in the same
// transaction. Refunds and assignment cancellation follow from the published event.
type CancelOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	inventory  *ledger.Inventory
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewCancelOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	inventory *ledger.Inventory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) CancelOrderCommandHandler {
	return CancelOrderCommandHandler{
		uowFactory: uowFactory,
		inventory:  inventory,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "cancel_order"),
		metrics:    m,
	}
}

func (h CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (err error) {
	defer h.metrics.ObserveCommand("cancel_order", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if cmd.OnlyIfUnpaid() && (o.Status() != order.Pending || o.PaymentStatus() == order.PaymentPaid) {
			h.logger.InfoContext(ctx, "order no longer awaiting payment, not cancelled",
				"order_id", o.ID().String(),
				"status", o.Status().String(),
				"payment_status", o.PaymentStatus().String())
			return nil
		}

		from := o.Status()
		if err = o.Cancel(cmd.Actor(), cmd.Reason(), h.clock.Now()); err != nil {
			return err
		}
		if err = h.inventory.Release(ctx, uow, o.ID()); err != nil {
			return err
		}
		if err = uow.OrderRepository().Update(ctx, o); err != nil {
			return err
		}
		h.metrics.OrderTransition(from.String(), order.Cancelled.String())
		return nil
	})
}

// RefundOrderCommandHandler closes an order as refunded when fulfillment failed.
// Stock is given back only if the goods never left the store.
type RefundOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	inventory  *ledger.Inventory
	publisher  ports.EventPublisher
	clock      ports.Clock
	metrics    *metrics.Metrics
}

func NewRefundOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	inventory *ledger.Inventory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	m *metrics.Metrics,
) RefundOrderCommandHandler {
	return RefundOrderCommandHandler{
		uowFactory: uowFactory,
		inventory:  inventory,
		publisher:  publisher,
		clock:      clock,
		metrics:    m,
	}
}

func (h RefundOrderCommandHandler) Handle(ctx context.Context, cmd RefundOrderCommand) (err error) {
	defer h.metrics.ObserveCommand("refund_order", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		from := o.Status()
		if err = o.Refund(cmd.Actor(), cmd.Reason(), h.clock.Now()); err != nil {
			return err
		}
		if from < order.OutForDelivery {
			if err = h.inventory.Release(ctx, uow, o.ID()); err != nil {
				return err
			}
		}
		if err = uow.OrderRepository().Update(ctx, o); err != nil {
			return err
		}
		h.metrics.OrderTransition(from.String(), order.Refunded.String())
		return nil
	})
}

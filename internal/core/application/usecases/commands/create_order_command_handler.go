package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fulfillment/internal/core/application/cart"
	"fulfillment/internal/core/application/ledger"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"
)

// OrderNumberAttempts bounds how often a colliding order number is regenerated.
const OrderNumberAttempts = 3

// CreateOrderCommandHandler snapshots the cart, creates the order in Pending and
// reserves its stock in one transaction.
//
// Example:
//
//	handler := NewCreateOrderCommandHandler(uowFactory, aggregator, inventory, carts, bus, clock, logger, m)
//	created, err := handler.Handle(ctx, cmd)
//	switch {
//	case errors.Is(err, errs.ErrOutOfStock):
//	    // nothing was reserved and no order exists
//	case err != nil:
//	    return err
//	}
type CreateOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	aggregator *cart.Aggregator
	inventory  *ledger.Inventory
	carts      ports.CartSource
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewCreateOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	aggregator *cart.Aggregator,
	inventory *ledger.Inventory,
	carts ports.CartSource,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) CreateOrderCommandHandler {
	return CreateOrderCommandHandler{
		uowFactory: uowFactory,
		aggregator: aggregator,
		inventory:  inventory,
		carts:      carts,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "create_order"),
		metrics:    m,
	}
}

// Handle creates the order. A number collision rolls the transaction back and the
// whole attempt is repeated with a fresh number, at most OrderNumberAttempts times.
// The cart is cleared after the commit; failing to clear it is only logged.
func (h CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (created *order.Order, err error) {
	defer h.metrics.ObserveCommand("create_order", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= OrderNumberAttempts; attempt++ {
		created, err = h.create(ctx, cmd)
		if !errors.Is(err, errs.ErrAlreadyExists) {
			break
		}
		h.logger.WarnContext(ctx, "order number collision, retrying",
			"attempt", attempt,
			"customer_id", cmd.CustomerID().String())
	}
	if err != nil {
		return nil, err
	}

	h.metrics.OrderCreated()
	if clearErr := h.carts.Clear(ctx, cmd.CustomerID(), cmd.StoreID()); clearErr != nil {
		h.logger.WarnContext(ctx, "failed to clear cart",
			"order_id", created.ID().String(),
			"error", clearErr)
	}
	return created, nil
}

func (h CreateOrderCommandHandler) create(ctx context.Context, cmd CreateOrderCommand) (*order.Order, error) {
	var created *order.Order
	err := inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		snapshot, err := h.aggregator.BuildSnapshot(ctx, uow, cmd.CustomerID(), cmd.StoreID(), now)
		if err != nil {
			return err
		}

		number := kernel.NewReference(order.NumberPrefix, now, order.NumberSuffixLength)
		o, err := order.NewOrder(kernel.NewUUID(), number, snapshot, cmd.Actor(), now)
		if err != nil {
			return err
		}

		if err = uow.OrderRepository().Add(ctx, o); err != nil {
			return err
		}

		lines := make([]ledger.Line, 0, len(o.Lines()))
		for _, l := range o.Lines() {
			lines = append(lines, ledger.Line{StoreProductID: l.StoreProductID(), Quantity: l.Quantity()})
		}
		if _, err = h.inventory.Reserve(ctx, uow, o.ID(), lines, now); err != nil {
			return err
		}
		created = o
		return nil
	})
	return created, err
}

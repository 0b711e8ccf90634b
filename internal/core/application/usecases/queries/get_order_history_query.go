package queries

import (
	"context"
	"errors"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/guard"
)

var ErrGetOrderHistoryQueryIsNotConstructed = errors.New(
	"GetOrderHistoryQuery must be created via NewGetOrderHistoryQuery constructor",
)

// GetOrderHistoryQuery returns the audit trail of an order, including admin overrides.
type GetOrderHistoryQuery struct {
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetOrderHistoryQuery(orderID kernel.UUID) (GetOrderHistoryQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetOrderHistoryQuery{}, err
	}
	return GetOrderHistoryQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetOrderHistoryQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderHistoryQueryIsNotConstructed)
}

func (q GetOrderHistoryQuery) OrderID() kernel.UUID { return q.orderID }

type GetOrderHistoryQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewGetOrderHistoryQueryHandler(uowFactory ports.UnitOfWorkFactory) GetOrderHistoryQueryHandler {
	return GetOrderHistoryQueryHandler{uowFactory: uowFactory}
}

// Handle fails with ObjectNotFoundError for an unknown order rather than returning
// an empty trail.
func (h GetOrderHistoryQueryHandler) Handle(ctx context.Context, query GetOrderHistoryQuery) ([]order.HistoryEntry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var history []order.HistoryEntry
	err := read(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		if _, err := uow.OrderRepository().Get(ctx, query.OrderID()); err != nil {
			return err
		}
		var err error
		history, err = uow.OrderRepository().History(ctx, query.OrderID())
		return err
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

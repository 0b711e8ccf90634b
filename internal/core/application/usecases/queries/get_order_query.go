package queries

import (
	"context"
	"errors"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/guard"
)

var ErrGetOrderQueryIsNotConstructed = errors.New("GetOrderQuery must be created via NewGetOrderQuery constructor")

type GetOrderQuery struct {
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetOrderQuery(orderID kernel.UUID) (GetOrderQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetOrderQuery{}, err
	}
	return GetOrderQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetOrderQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderQueryIsNotConstructed)
}

func (q GetOrderQuery) OrderID() kernel.UUID { return q.orderID }

// GetOrderQueryResponse is the order read model: the order with every payment and
// assignment it ever had, oldest first.
type GetOrderQueryResponse struct {
	Order       *order.Order
	Payments    []*payment.Payment
	Assignments []*delivery.Assignment
}

type GetOrderQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewGetOrderQueryHandler(uowFactory ports.UnitOfWorkFactory) GetOrderQueryHandler {
	return GetOrderQueryHandler{uowFactory: uowFactory}
}

func (h GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (GetOrderQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetOrderQueryResponse{}, err
	}

	var resp GetOrderQueryResponse
	err := read(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		var err error
		if resp.Order, err = uow.OrderRepository().Get(ctx, query.OrderID()); err != nil {
			return err
		}
		if resp.Payments, err = uow.PaymentRepository().ListByOrder(ctx, query.OrderID()); err != nil {
			return err
		}
		resp.Assignments, err = uow.AssignmentRepository().ListByOrder(ctx, query.OrderID())
		return err
	})
	if err != nil {
		return GetOrderQueryResponse{}, err
	}
	return resp, nil
}

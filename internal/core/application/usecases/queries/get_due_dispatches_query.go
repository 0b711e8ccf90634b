package queries

import (
	"context"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/ports"
)

// GetDueDispatchesQueryHandler lists orders whose dispatch retry is due.
type GetDueDispatchesQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
	clock      ports.Clock
}

func NewGetDueDispatchesQueryHandler(uowFactory ports.UnitOfWorkFactory, clock ports.Clock) GetDueDispatchesQueryHandler {
	return GetDueDispatchesQueryHandler{uowFactory: uowFactory, clock: clock}
}

func (h GetDueDispatchesQueryHandler) Handle(ctx context.Context, limit int) ([]*delivery.DispatchRequest, error) {
	var due []*delivery.DispatchRequest
	err := read(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		var err error
		due, err = uow.DispatchRequestRepository().ListDue(ctx, h.clock.Now(), limit)
		return err
	})
	return due, err
}

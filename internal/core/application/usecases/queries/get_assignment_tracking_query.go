package queries

import (
	"context"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
)

// GetAssignmentQueryResponse is an assignment with its tracking stream.
type GetAssignmentQueryResponse struct {
	Assignment *delivery.Assignment
	Tracking   []delivery.TrackingPoint
}

type GetAssignmentQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewGetAssignmentQueryHandler(uowFactory ports.UnitOfWorkFactory) GetAssignmentQueryHandler {
	return GetAssignmentQueryHandler{uowFactory: uowFactory}
}

func (h GetAssignmentQueryHandler) Handle(ctx context.Context, assignmentID kernel.UUID) (GetAssignmentQueryResponse, error) {
	if err := assignmentID.Validate(); err != nil {
		return GetAssignmentQueryResponse{}, err
	}

	var resp GetAssignmentQueryResponse
	err := read(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		var err error
		if resp.Assignment, err = uow.AssignmentRepository().Get(ctx, assignmentID); err != nil {
			return err
		}
		resp.Tracking, err = uow.AssignmentRepository().Tracking(ctx, assignmentID)
		return err
	})
	if err != nil {
		return GetAssignmentQueryResponse{}, err
	}
	return resp, nil
}

package commands

import (
	"context"
	"errors"
	"log/slog"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

// TimeoutAssignmentsCommandHandler cancels offers the agent did not answer within
// the response window. Each assignment is closed in its own transaction; one that an
// agent accepted concurrently loses the version race and is skipped.
type TimeoutAssignmentsCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
}

func NewTimeoutAssignmentsCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
) TimeoutAssignmentsCommandHandler {
	return TimeoutAssignmentsCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "timeout_assignments"),
	}
}

// Handle returns the number of assignments it cancelled.
func (h TimeoutAssignmentsCommandHandler) Handle(ctx context.Context, limit int) (int, error) {
	var overdue []*delivery.Assignment
	err := inTransaction(ctx, h.uowFactory, nil, func(uow ports.UnitOfWork) error {
		var err error
		overdue, err = uow.AssignmentRepository().ListOverdue(ctx, h.clock.Now(), limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, candidate := range overdue {
		err = inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
			a, err := uow.AssignmentRepository().Get(ctx, candidate.ID())
			if err != nil {
				return err
			}
			if err = a.Timeout(h.clock.Now()); err != nil {
				return err
			}
			return closeAssignment(ctx, uow, a)
		})
		switch {
		case err == nil:
			cancelled++
		case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrInvalidTransition):
			h.logger.InfoContext(ctx, "assignment answered before timeout",
				"assignment_id", candidate.ID().String())
		default:
			return cancelled, err
		}
	}
	return cancelled, nil
}

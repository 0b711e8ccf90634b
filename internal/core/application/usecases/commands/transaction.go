package commands

import (
	"context"

	"fulfillment/internal/core/ports"
)

// inTransaction runs fn in a fresh unit of work. When fn succeeds and the commit goes
// through, the events raised by the saved aggregates are handed to publisher.
func inTransaction(
	ctx context.Context,
	factory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	fn func(uow ports.UnitOfWork) error,
) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	if publisher != nil {
		if events := uow.CommittedEvents(); len(events) > 0 {
			publisher.Publish(ctx, events...)
		}
	}
	return nil
}

package queries

import (
	"context"

	"fulfillment/internal/core/ports"
)

// read runs fn in a transaction that is always rolled back.
func read(ctx context.Context, factory ports.UnitOfWorkFactory, fn func(uow ports.UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	return fn(uow)
}

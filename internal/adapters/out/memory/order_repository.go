package memory

import (
	"context"
	"fmt"
	"slices"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"
)

type orderRepository struct {
	uow *UnitOfWork
}

func (r *orderRepository) Add(_ context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		if _, ok := d.orders[aggregate.ID()]; ok {
			return fmt.Errorf("%w: order %s", errs.ErrAlreadyExists, aggregate.ID())
		}
		if _, ok := d.orderNumbers[aggregate.Number()]; ok {
			return fmt.Errorf("%w: order number %s", errs.ErrAlreadyExists, aggregate.Number())
		}
		stored, err := copyOrder(aggregate)
		if err != nil {
			return err
		}
		d.orders[aggregate.ID()] = stored
		d.orderNumbers[aggregate.Number()] = aggregate.ID()
		d.history[aggregate.ID()] = append(slices.Clone(d.history[aggregate.ID()]), aggregate.PendingHistory()...)
		return nil
	})
	if err != nil {
		return err
	}
	aggregate.MarkHistoryPersisted()
	r.uow.track(aggregate)
	return nil
}

func (r *orderRepository) Update(_ context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		existing, ok := d.orders[aggregate.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("order", aggregate.ID())
		}
		expected, _ := aggregate.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("order", aggregate.ID().String())
		}
		stored, err := copyOrder(aggregate)
		if err != nil {
			return err
		}
		d.orders[aggregate.ID()] = stored
		d.history[aggregate.ID()] = append(slices.Clone(d.history[aggregate.ID()]), aggregate.PendingHistory()...)
		return nil
	})
	if err != nil {
		return err
	}
	aggregate.MarkHistoryPersisted()
	r.uow.track(aggregate)
	return nil
}

func (r *orderRepository) Get(_ context.Context, id kernel.UUID) (*order.Order, error) {
	var out *order.Order
	err := r.uow.read(func(d *data) error {
		stored, ok := d.orders[id]
		if !ok {
			return errs.NewObjectNotFoundError("order", id)
		}
		var err error
		out, err = copyOrder(stored)
		return err
	})
	return out, err
}

func (r *orderRepository) History(_ context.Context, orderID kernel.UUID) ([]order.HistoryEntry, error) {
	var out []order.HistoryEntry
	err := r.uow.read(func(d *data) error {
		out = slices.Clone(d.history[orderID])
		return nil
	})
	return out, err
}

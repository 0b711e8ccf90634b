package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/pkg/errs"
)

type paymentRepository struct {
	uow *UnitOfWork
}

func (r *paymentRepository) Add(_ context.Context, aggregate *payment.Payment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		if _, ok := d.payments[aggregate.ID()]; ok {
			return fmt.Errorf("%w: payment %s", errs.ErrAlreadyExists, aggregate.ID())
		}
		stored, err := copyPayment(aggregate)
		if err != nil {
			return err
		}
		d.payments[aggregate.ID()] = stored
		d.attempts[aggregate.ID()] = append(slices.Clone(d.attempts[aggregate.ID()]), aggregate.PendingAttempts()...)
		return nil
	})
	if err != nil {
		return err
	}
	aggregate.MarkAttemptsPersisted()
	r.uow.track(aggregate)
	return nil
}

func (r *paymentRepository) Update(_ context.Context, aggregate *payment.Payment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		existing, ok := d.payments[aggregate.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("payment", aggregate.ID())
		}
		expected, _ := aggregate.AdvanceVersion()
		if existing.Version() != expected {
			return errs.NewConflictError("payment", aggregate.ID().String())
		}
		stored, err := copyPayment(aggregate)
		if err != nil {
			return err
		}
		d.payments[aggregate.ID()] = stored
		d.attempts[aggregate.ID()] = append(slices.Clone(d.attempts[aggregate.ID()]), aggregate.PendingAttempts()...)
		return nil
	})
	if err != nil {
		return err
	}
	aggregate.MarkAttemptsPersisted()
	r.uow.track(aggregate)
	return nil
}

func (r *paymentRepository) Get(_ context.Context, id kernel.UUID) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.uow.read(func(d *data) error {
		stored, ok := d.payments[id]
		if !ok {
			return errs.NewObjectNotFoundError("payment", id)
		}
		var err error
		out, err = copyPayment(stored)
		return err
	})
	return out, err
}

func (r *paymentRepository) GetByGatewayRef(_ context.Context, gatewayRef string) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.payments {
			if gatewayRef != "" && stored.GatewayRef() == gatewayRef {
				var err error
				out, err = copyPayment(stored)
				return err
			}
		}
		return errs.NewObjectNotFoundError("payment with gateway reference", gatewayRef)
	})
	return out, err
}

func (r *paymentRepository) ListByOrder(_ context.Context, orderID kernel.UUID) ([]*payment.Payment, error) {
	var out []*payment.Payment
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.payments {
			if !stored.OrderID().IsEqual(orderID) {
				continue
			}
			p, err := copyPayment(stored)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().Less(out[j].ID())
	})
	return out, err
}

func (r *paymentRepository) Attempts(_ context.Context, paymentID kernel.UUID) ([]payment.Attempt, error) {
	var out []payment.Attempt
	err := r.uow.read(func(d *data) error {
		out = slices.Clone(d.attempts[paymentID])
		return nil
	})
	return out, err
}

func (r *paymentRepository) AddRefund(_ context.Context, refund *payment.Refund) error {
	if err := refund.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		if _, ok := d.refunds[refund.ID()]; ok {
			return fmt.Errorf("%w: refund %s", errs.ErrAlreadyExists, refund.ID())
		}
		stored, err := copyRefund(refund)
		if err != nil {
			return err
		}
		d.refunds[refund.ID()] = stored
		return nil
	})
	if err != nil {
		return err
	}
	r.uow.track(refund)
	return nil
}

func (r *paymentRepository) UpdateRefund(_ context.Context, refund *payment.Refund) error {
	if err := refund.Validate(); err != nil {
		return err
	}
	err := r.uow.write(func(d *data) error {
		existing, ok := d.refunds[refund.ID()]
		if !ok {
			return errs.NewObjectNotFoundError("refund", refund.ID())
		}
		if existing.Status() != payment.RefundInitiated {
			return errs.NewConflictError("refund", refund.ID().String())
		}
		stored, err := copyRefund(refund)
		if err != nil {
			return err
		}
		d.refunds[refund.ID()] = stored
		return nil
	})
	if err != nil {
		return err
	}
	r.uow.track(refund)
	return nil
}

func (r *paymentRepository) GetRefund(_ context.Context, id kernel.UUID) (*payment.Refund, error) {
	var out *payment.Refund
	err := r.uow.read(func(d *data) error {
		stored, ok := d.refunds[id]
		if !ok {
			return errs.NewObjectNotFoundError("refund", id)
		}
		var err error
		out, err = copyRefund(stored)
		return err
	})
	return out, err
}

func (r *paymentRepository) ListRefunds(_ context.Context, paymentID kernel.UUID) ([]*payment.Refund, error) {
	var out []*payment.Refund
	err := r.uow.read(func(d *data) error {
		for _, stored := range d.refunds {
			if !stored.PaymentID().IsEqual(paymentID) {
				continue
			}
			rf, err := copyRefund(stored)
			if err != nil {
				return err
			}
			out = append(out, rf)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().Less(out[j].ID())
	})
	return out, err
}

package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/payment"
)

// PaymentRepository defines the persistence contract for payments, their attempt
// log and their refunds.
type PaymentRepository interface {
	// Add persists a new payment and its pending attempts.
	Add(ctx context.Context, aggregate *payment.Payment) error

	// Update persists changes with an optimistic version check and appends pending attempts.
	Update(ctx context.Context, aggregate *payment.Payment) error

	Get(ctx context.Context, id kernel.UUID) (*payment.Payment, error)

	// GetByGatewayRef finds the payment a gateway callback refers to.
	GetByGatewayRef(ctx context.Context, gatewayRef string) (*payment.Payment, error)

	// ListByOrder returns every payment of an order, oldest first.
	ListByOrder(ctx context.Context, orderID kernel.UUID) ([]*payment.Payment, error)

	// Attempts returns the attempt log of a payment ordered by number.
	Attempts(ctx context.Context, paymentID kernel.UUID) ([]payment.Attempt, error)

	AddRefund(ctx context.Context, refund *payment.Refund) error

	// UpdateRefund stores the outcome of an initiated refund. Only initiated refunds
	// can be updated; anything else is a conflict.
	UpdateRefund(ctx context.Context, refund *payment.Refund) error

	GetRefund(ctx context.Context, id kernel.UUID) (*payment.Refund, error)

	ListRefunds(ctx context.Context, paymentID kernel.UUID) ([]*payment.Refund, error)
}

package payment

import (
	"time"

	"fulfillment/internal/core/domain/model/kernel"

	"github.com/shopspring/decimal"
)

const (
	InitiatedEventName       = "payment.initiated"
	CapturedEventName        = "payment.captured"
	FailedEventName          = "payment.failed"
	CancelledEventName       = "payment.cancelled"
	RefundCompletedEventName = "payment.refund_completed"
	RefundFailedEventName    = "payment.refund_failed"
)

type InitiatedEvent struct {
	PaymentID kernel.UUID
	OrderID   kernel.UUID
	Method    MethodType
	Status    Status
	At        time.Time
}

func (e InitiatedEvent) EventName() string     { return InitiatedEventName }
func (e InitiatedEvent) OccurredAt() time.Time { return e.At }

type CapturedEvent struct {
	PaymentID kernel.UUID
	OrderID   kernel.UUID
	Method    MethodType
	Amount    decimal.Decimal
	At        time.Time
}

func (e CapturedEvent) EventName() string     { return CapturedEventName }
func (e CapturedEvent) OccurredAt() time.Time { return e.At }

type FailedEvent struct {
	PaymentID kernel.UUID
	OrderID   kernel.UUID
	Code      string
	Reason    string
	At        time.Time
}

func (e FailedEvent) EventName() string     { return FailedEventName }
func (e FailedEvent) OccurredAt() time.Time { return e.At }

type CancelledEvent struct {
	PaymentID kernel.UUID
	OrderID   kernel.UUID
	Reason    string
	At        time.Time
}

func (e CancelledEvent) EventName() string     { return CancelledEventName }
func (e CancelledEvent) OccurredAt() time.Time { return e.At }

type RefundCompletedEvent struct {
	RefundID      kernel.UUID
	PaymentID     kernel.UUID
	OrderID       kernel.UUID
	Amount        decimal.Decimal
	FullyRefunded bool
	At            time.Time
}

func (e RefundCompletedEvent) EventName() string     { return RefundCompletedEventName }
func (e RefundCompletedEvent) OccurredAt() time.Time { return e.At }

type RefundFailedEvent struct {
	RefundID  kernel.UUID
	PaymentID kernel.UUID
	OrderID   kernel.UUID
	Amount    decimal.Decimal
	Reason    string
	At        time.Time
}

func (e RefundFailedEvent) EventName() string     { return RefundFailedEventName }
func (e RefundFailedEvent) OccurredAt() time.Time { return e.At }

package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

const (
	RefundNumberPrefix       = "REF"
	RefundNumberSuffixLength = 6
)

var ErrRefundIsNotConstructed = errors.New("Refund must be created via NewRefund or RestoreRefund constructor")

// RefundStatus of a single refund request.
type RefundStatus int

const (
	RefundUnknown RefundStatus = iota
	RefundInitiated
	RefundCompleted
	RefundFailed
)

var refundStatusNames = map[RefundStatus]string{
	RefundInitiated: "initiated",
	RefundCompleted: "completed",
	RefundFailed:    "failed",
}

func (s RefundStatus) String() string {
	if name, ok := refundStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s RefundStatus) Validate() error {
	if _, ok := refundStatusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("refund status", fmt.Errorf("%d is not a valid refund status", s))
	}
	return nil
}

// Destination says where refunded money goes.
type Destination int

const (
	DestinationUnknown Destination = iota
	DestinationGateway
	DestinationWallet
)

func (d Destination) String() string {
	switch d {
	case DestinationGateway:
		return "gateway"
	case DestinationWallet:
		return "wallet"
	default:
		return "unknown"
	}
}

// DestinationFor returns where money captured with method is returned.
func DestinationFor(method MethodType) Destination {
	if method.UsesGateway() {
		return DestinationGateway
	}
	return DestinationWallet
}

// Refund returns part or all of a captured payment.
type Refund struct {
	id          kernel.UUID
	number      string
	paymentID   kernel.UUID
	orderID     kernel.UUID
	amount      decimal.Decimal
	reason      string
	requestedBy kernel.Actor
	destination Destination
	status      RefundStatus
	gatewayRef  string
	failure     string
	createdAt   time.Time
	completedAt *time.Time

	events        kernel.EventRecorder
	isConstructed bool
}

func NewRefund(
	id kernel.UUID,
	number string,
	p *Payment,
	amount decimal.Decimal,
	reason string,
	requestedBy kernel.Actor,
	at time.Time,
) (*Refund, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := errors.Join(
		id.Validate(),
		validateNumber(number, RefundNumberPrefix),
		kernel.ValidatePositiveAmount("refund amount", amount),
		requestedBy.Validate(),
	); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errs.NewValueIsRequiredError("refund reason")
	}
	return &Refund{
		id:            id,
		number:        number,
		paymentID:     p.ID(),
		orderID:       p.OrderID(),
		amount:        amount,
		reason:        reason,
		requestedBy:   requestedBy,
		destination:   DestinationFor(p.Method()),
		status:        RefundInitiated,
		createdAt:     at.UTC(),
		isConstructed: true,
	}, nil
}

type RefundRestoreParams struct {
	ID          kernel.UUID
	Number      string
	PaymentID   kernel.UUID
	OrderID     kernel.UUID
	Amount      decimal.Decimal
	Reason      string
	RequestedBy kernel.Actor
	Destination Destination
	Status      RefundStatus
	GatewayRef  string
	Failure     string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func RestoreRefund(p RefundRestoreParams) (*Refund, error) {
	if err := errors.Join(
		p.ID.Validate(),
		validateNumber(p.Number, RefundNumberPrefix),
		p.PaymentID.Validate(),
		p.OrderID.Validate(),
		p.Status.Validate(),
	); err != nil {
		return nil, err
	}
	return &Refund{
		id:            p.ID,
		number:        p.Number,
		paymentID:     p.PaymentID,
		orderID:       p.OrderID,
		amount:        p.Amount,
		reason:        p.Reason,
		requestedBy:   p.RequestedBy,
		destination:   p.Destination,
		status:        p.Status,
		gatewayRef:    p.GatewayRef,
		failure:       p.Failure,
		createdAt:     p.CreatedAt.UTC(),
		completedAt:   p.CompletedAt,
		isConstructed: true,
	}, nil
}

func (r *Refund) Validate() error {
	if r == nil || !r.isConstructed {
		return ErrRefundIsNotConstructed
	}
	return nil
}

func (r *Refund) ID() kernel.UUID           { return r.id }
func (r *Refund) Number() string            { return r.number }
func (r *Refund) PaymentID() kernel.UUID    { return r.paymentID }
func (r *Refund) OrderID() kernel.UUID      { return r.orderID }
func (r *Refund) Amount() decimal.Decimal   { return r.amount }
func (r *Refund) Reason() string            { return r.reason }
func (r *Refund) RequestedBy() kernel.Actor { return r.requestedBy }
func (r *Refund) Destination() Destination  { return r.destination }
func (r *Refund) Status() RefundStatus      { return r.status }
func (r *Refund) GatewayRef() string        { return r.gatewayRef }
func (r *Refund) Failure() string           { return r.failure }
func (r *Refund) CreatedAt() time.Time      { return r.createdAt }
func (r *Refund) CompletedAt() *time.Time   { return r.completedAt }

func (r *Refund) DomainEvents() []kernel.DomainEvent {
	return r.events.Events()
}

func (r *Refund) ClearDomainEvents() {
	r.events.Clear()
}

// Complete marks the money as returned. fullyRefunded is taken from the payment after
// the amount was reserved on it.
func (r *Refund) Complete(gatewayRef string, fullyRefunded bool, at time.Time) error {
	if r.status != RefundInitiated {
		return errs.NewInvalidTransitionError("refund", r.status, RefundCompleted)
	}
	ts := at.UTC()
	r.status = RefundCompleted
	r.gatewayRef = gatewayRef
	r.completedAt = &ts
	r.events.Record(RefundCompletedEvent{
		RefundID:      r.id,
		PaymentID:     r.paymentID,
		OrderID:       r.orderID,
		Amount:        r.amount,
		FullyRefunded: fullyRefunded,
		At:            ts,
	})
	return nil
}

// Fail records that the money could not be returned. The caller releases the amount
// reserved on the payment.
func (r *Refund) Fail(reason string, at time.Time) error {
	if r.status != RefundInitiated {
		return errs.NewInvalidTransitionError("refund", r.status, RefundFailed)
	}
	ts := at.UTC()
	r.status = RefundFailed
	r.failure = reason
	r.completedAt = &ts
	r.events.Record(RefundFailedEvent{
		RefundID:  r.id,
		PaymentID: r.paymentID,
		OrderID:   r.orderID,
		Amount:    r.amount,
		Reason:    reason,
		At:        ts,
	})
	return nil
}

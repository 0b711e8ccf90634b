// Package payment models money collected for an order: the Payment aggregate with its
// numbered attempts, the configured payment-method table and refunds.
package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

const (
	NumberPrefix       = "PAY"
	NumberSuffixLength = 8
)

var ErrPaymentIsNotConstructed = errors.New("Payment must be created via NewPayment or RestorePayment constructor")

// Payment is one attempt by a customer to pay for an order. An order may have several
// payments over time but at most one open (pending or processing) at once.
//
// Invariants:
//   - total = amount + fee
//   - 0 <= refunded <= total; refunded only grows while the payment is captured
//   - a terminal payment never changes status again, except for refunds of a captured one
type Payment struct {
	id               kernel.UUID
	number           string
	orderID          kernel.UUID
	customerID       kernel.UUID
	method           MethodType
	amount           decimal.Decimal
	fee              decimal.Decimal
	total            decimal.Decimal
	refunded         decimal.Decimal
	status           Status
	gatewayRef       string
	gatewayPaymentID string
	failureCode      string
	failureReason    string
	createdAt        time.Time
	completedAt      *time.Time

	attemptCount   int
	pendingAttempt []Attempt

	version kernel.Version
	events  kernel.EventRecorder
	guard   guard.ConstructorGuard
}

// NewPayment prices a payment of amount with method and starts it Pending.
func NewPayment(
	id kernel.UUID,
	number string,
	orderID, customerID kernel.UUID,
	method Method,
	amount decimal.Decimal,
	at time.Time,
) (*Payment, error) {
	if err := errors.Join(
		id.Validate(),
		validateNumber(number, NumberPrefix),
		orderID.Validate(),
		customerID.Validate(),
		method.Type.Validate(),
		kernel.ValidatePositiveAmount("amount", amount),
	); err != nil {
		return nil, err
	}
	if err := method.CheckAvailable(amount); err != nil {
		return nil, err
	}

	fee := method.Fee(amount)
	p := &Payment{
		id:         id,
		number:     number,
		orderID:    orderID,
		customerID: customerID,
		method:     method.Type,
		amount:     amount,
		fee:        fee,
		total:      amount.Add(fee),
		refunded:   decimal.Zero,
		status:     StatusPending,
		createdAt:  at.UTC(),
		guard:      guard.NewConstructorGuard(),
	}
	p.events.Record(InitiatedEvent{PaymentID: id, OrderID: orderID, Method: method.Type, Status: StatusPending, At: p.createdAt})
	return p, nil
}

// RestoreParams carries the persisted state of a payment.
type RestoreParams struct {
	ID               kernel.UUID
	Number           string
	OrderID          kernel.UUID
	CustomerID       kernel.UUID
	Method           MethodType
	Amount           decimal.Decimal
	Fee              decimal.Decimal
	Total            decimal.Decimal
	Refunded         decimal.Decimal
	Status           Status
	GatewayRef       string
	GatewayPaymentID string
	FailureCode      string
	FailureReason    string
	CreatedAt        time.Time
	CompletedAt      *time.Time
	AttemptCount     int
	Version          int
}

func RestorePayment(p RestoreParams) (*Payment, error) {
	if err := errors.Join(
		p.ID.Validate(),
		validateNumber(p.Number, NumberPrefix),
		p.OrderID.Validate(),
		p.CustomerID.Validate(),
		p.Method.Validate(),
		p.Status.Validate(),
	); err != nil {
		return nil, err
	}
	if !p.Total.Equal(p.Amount.Add(p.Fee)) {
		return nil, errs.NewInvariantViolationError("payment", p.ID.String(),
			fmt.Sprintf("total %s does not equal amount %s + fee %s", p.Total, p.Amount, p.Fee))
	}
	if p.Refunded.IsNegative() || p.Refunded.GreaterThan(p.Total) {
		return nil, errs.NewInvariantViolationError("payment", p.ID.String(),
			fmt.Sprintf("refunded %s outside [0, %s]", p.Refunded, p.Total))
	}
	return &Payment{
		id:               p.ID,
		number:           p.Number,
		orderID:          p.OrderID,
		customerID:       p.CustomerID,
		method:           p.Method,
		amount:           p.Amount,
		fee:              p.Fee,
		total:            p.Total,
		refunded:         p.Refunded,
		status:           p.Status,
		gatewayRef:       p.GatewayRef,
		gatewayPaymentID: p.GatewayPaymentID,
		failureCode:      p.FailureCode,
		failureReason:    p.FailureReason,
		createdAt:        p.CreatedAt.UTC(),
		completedAt:      p.CompletedAt,
		attemptCount:     p.AttemptCount,
		version:          kernel.RestoreVersion(p.Version),
		guard:            guard.NewConstructorGuard(),
	}, nil
}

func (p *Payment) Validate() error {
	if p == nil {
		return ErrPaymentIsNotConstructed
	}
	return p.guard.Validate(ErrPaymentIsNotConstructed)
}

func (p *Payment) ID() kernel.UUID           { return p.id }
func (p *Payment) Number() string            { return p.number }
func (p *Payment) OrderID() kernel.UUID      { return p.orderID }
func (p *Payment) CustomerID() kernel.UUID   { return p.customerID }
func (p *Payment) Method() MethodType        { return p.method }
func (p *Payment) Amount() decimal.Decimal   { return p.amount }
func (p *Payment) Fee() decimal.Decimal      { return p.fee }
func (p *Payment) Total() decimal.Decimal    { return p.total }
func (p *Payment) Refunded() decimal.Decimal { return p.refunded }
func (p *Payment) Status() Status            { return p.status }
func (p *Payment) GatewayRef() string        { return p.gatewayRef }
func (p *Payment) GatewayPaymentID() string  { return p.gatewayPaymentID }
func (p *Payment) FailureCode() string       { return p.failureCode }
func (p *Payment) FailureReason() string     { return p.failureReason }
func (p *Payment) CreatedAt() time.Time      { return p.createdAt }
func (p *Payment) CompletedAt() *time.Time   { return p.completedAt }
func (p *Payment) AttemptCount() int         { return p.attemptCount }
func (p *Payment) Version() int              { return p.version.Current() }

func (p *Payment) AdvanceVersion() (int, int) {
	return p.version.Advance()
}

// RefundableAmount is what can still be returned to the customer.
func (p *Payment) RefundableAmount() decimal.Decimal {
	if !p.status.IsCaptured() {
		return decimal.Zero
	}
	return p.total.Sub(p.refunded)
}

// PendingAttempts returns attempts recorded since the payment was loaded.
func (p *Payment) PendingAttempts() []Attempt {
	return append([]Attempt(nil), p.pendingAttempt...)
}

func (p *Payment) MarkAttemptsPersisted() {
	p.pendingAttempt = nil
}

func (p *Payment) DomainEvents() []kernel.DomainEvent {
	return p.events.Events()
}

func (p *Payment) ClearDomainEvents() {
	p.events.Clear()
}

// StartProcessing records that the gateway accepted the payment and returned gatewayRef,
// the correlation id later echoed by its callback.
func (p *Payment) StartProcessing(gatewayRef string, ex Exchange, at time.Time) error {
	if p.status != StatusPending {
		return errs.NewInvalidTransitionError("payment", p.status, StatusProcessing)
	}
	if strings.TrimSpace(gatewayRef) == "" {
		return errs.NewValueIsRequiredError("gateway reference")
	}
	p.status = StatusProcessing
	p.gatewayRef = gatewayRef
	p.recordAttempt(OperationInitiate, ex, true, "", at)
	return nil
}

// Succeed captures the payment. op is the interaction that confirmed the money.
func (p *Payment) Succeed(gatewayPaymentID string, op Operation, ex Exchange, at time.Time) error {
	if !p.status.IsOpen() {
		return errs.NewInvalidTransitionError("payment", p.status, StatusSuccess)
	}
	ts := at.UTC()
	p.status = StatusSuccess
	p.gatewayPaymentID = gatewayPaymentID
	p.completedAt = &ts
	p.recordAttempt(op, ex, true, "", at)
	p.events.Record(CapturedEvent{PaymentID: p.id, OrderID: p.orderID, Method: p.method, Amount: p.total, At: ts})
	return nil
}

// Fail closes the payment unsuccessfully. The customer may start a new payment.
func (p *Payment) Fail(code, reason string, op Operation, ex Exchange, at time.Time) error {
	if !p.status.IsOpen() {
		return errs.NewInvalidTransitionError("payment", p.status, StatusFailed)
	}
	if strings.TrimSpace(code) == "" {
		code = "unknown"
	}
	ts := at.UTC()
	p.status = StatusFailed
	p.failureCode = code
	p.failureReason = reason
	p.completedAt = &ts
	p.recordAttempt(op, ex, false, reason, at)
	p.events.Record(FailedEvent{PaymentID: p.id, OrderID: p.orderID, Code: code, Reason: reason, At: ts})
	return nil
}

// Cancel abandons a payment that never reached the gateway or was never collected.
func (p *Payment) Cancel(reason string, at time.Time) error {
	if p.status != StatusPending {
		return errs.NewInvalidTransitionError("payment", p.status, StatusCancelled)
	}
	ts := at.UTC()
	p.status = StatusCancelled
	p.failureReason = reason
	p.completedAt = &ts
	p.recordAttempt(OperationCancel, Exchange{Request: reason}, true, "", at)
	p.events.Record(CancelledEvent{PaymentID: p.id, OrderID: p.orderID, Reason: reason, At: ts})
	return nil
}

// ReserveRefund books amount against the refundable balance before money moves.
//
// Fails with InvalidAmountError when amount exceeds what is left to refund.
func (p *Payment) ReserveRefund(amount decimal.Decimal) error {
	if !p.status.IsCaptured() {
		return errs.NewInvalidTransitionError("payment", p.status, StatusPartiallyRefunded)
	}
	if err := kernel.ValidatePositiveAmount("refund amount", amount); err != nil {
		return errs.NewInvalidAmountError(amount, p.RefundableAmount())
	}
	if amount.GreaterThan(p.RefundableAmount()) {
		return errs.NewInvalidAmountError(amount, p.RefundableAmount())
	}
	p.refunded = p.refunded.Add(amount)
	p.syncRefundStatus()
	return nil
}

// ReleaseRefund undoes ReserveRefund after the gateway rejected the refund.
func (p *Payment) ReleaseRefund(amount decimal.Decimal) error {
	if amount.GreaterThan(p.refunded) || !amount.IsPositive() {
		return errs.NewInvariantViolationError("payment", p.id.String(),
			fmt.Sprintf("cannot release %s of refunded %s", amount, p.refunded))
	}
	p.refunded = p.refunded.Sub(amount)
	p.syncRefundStatus()
	return nil
}

// FullyRefunded reports whether nothing is left to refund.
func (p *Payment) FullyRefunded() bool {
	return p.status.IsCaptured() && p.refunded.Equal(p.total)
}

func (p *Payment) syncRefundStatus() {
	switch {
	case p.refunded.IsZero():
		p.status = StatusSuccess
	case p.refunded.Equal(p.total):
		p.status = StatusRefunded
	default:
		p.status = StatusPartiallyRefunded
	}
}

// RecordAttempt logs an interaction that leaves the status as it is, such as a
// refund call or a gateway answer that arrived after the payment settled. An empty
// failure marks the interaction successful.
func (p *Payment) RecordAttempt(op Operation, ex Exchange, failure string, at time.Time) {
	p.recordAttempt(op, ex, failure == "", failure, at)
}

func (p *Payment) recordAttempt(op Operation, ex Exchange, success bool, failure string, at time.Time) {
	p.attemptCount++
	p.pendingAttempt = append(p.pendingAttempt, Attempt{
		Number:          p.attemptCount,
		Operation:       op,
		Status:          p.status,
		Success:         success,
		RequestPayload:  ex.Request,
		GatewayResponse: ex.Response,
		ErrorMessage:    failure,
		Duration:        ex.Duration,
		At:              at.UTC(),
	})
}

func validateNumber(number, prefix string) error {
	if !strings.HasPrefix(number, prefix) || len(number) <= len(prefix) {
		return errs.NewValueIsInvalidErrorWithCause("number", fmt.Errorf("%q must start with %s", number, prefix))
	}
	return nil
}

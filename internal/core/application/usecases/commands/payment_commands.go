package commands

import (
	"errors"
	"strings"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var (
	ErrInitiatePaymentCommandIsNotConstructed = errors.New(
		"InitiatePaymentCommand must be created via NewInitiatePaymentCommand constructor",
	)
	ErrCapturePaymentCommandIsNotConstructed = errors.New(
		"CapturePaymentCommand must be created via NewCapturePaymentCommand constructor",
	)
	ErrRefundPaymentCommandIsNotConstructed = errors.New(
		"RefundPaymentCommand must be created via NewRefundPaymentCommand constructor",
	)
	ErrCancelPendingPaymentCommandIsNotConstructed = errors.New(
		"CancelPendingPaymentCommand must be created via NewCancelPendingPaymentCommand constructor",
	)
	ErrCollectCashPaymentCommandIsNotConstructed = errors.New(
		"CollectCashPaymentCommand must be created via NewCollectCashPaymentCommand constructor",
	)
)

// InitiatePaymentCommand starts collecting the total of a pending order.
//
// Example:
//
//	cmd, _ := NewInitiatePaymentCommand(orderID, payment.MethodUPI, customer)
//	result, err := handler.Handle(ctx, cmd)
//	if errors.Is(err, errs.ErrMethodUnavailable) {
//	    // pick another method
//	}
//	redirect(result.RedirectToken)
type InitiatePaymentCommand struct {
	orderID kernel.UUID
	method  payment.MethodType
	actor   kernel.Actor

	guard guard.ConstructorGuard
}

func NewInitiatePaymentCommand(orderID kernel.UUID, method payment.MethodType, actor kernel.Actor) (InitiatePaymentCommand, error) {
	if err := errors.Join(orderID.Validate(), method.Validate(), actor.Validate()); err != nil {
		return InitiatePaymentCommand{}, err
	}
	return InitiatePaymentCommand{
		orderID: orderID,
		method:  method,
		actor:   actor,
		guard:   guard.NewConstructorGuard(),
	}, nil
}

func (c InitiatePaymentCommand) Validate() error {
	return c.guard.Validate(ErrInitiatePaymentCommandIsNotConstructed)
}

func (c InitiatePaymentCommand) OrderID() kernel.UUID       { return c.orderID }
func (c InitiatePaymentCommand) Method() payment.MethodType { return c.method }
func (c InitiatePaymentCommand) Actor() kernel.Actor        { return c.actor }

// CapturePaymentCommand applies a gateway callback. Callbacks may repeat or arrive
// out of order; only the first one for a payment has an effect.
type CapturePaymentCommand struct {
	callback ports.GatewayCallback

	guard guard.ConstructorGuard
}

func NewCapturePaymentCommand(callback ports.GatewayCallback) (CapturePaymentCommand, error) {
	if strings.TrimSpace(callback.GatewayRef) == "" {
		return CapturePaymentCommand{}, errs.NewValueIsRequiredError("gateway reference")
	}
	if callback.Status != ports.CallbackSuccess && callback.Status != ports.CallbackFailed {
		return CapturePaymentCommand{}, errs.NewValueIsInvalidError("callback status")
	}
	return CapturePaymentCommand{callback: callback, guard: guard.NewConstructorGuard()}, nil
}

func (c CapturePaymentCommand) Validate() error {
	return c.guard.Validate(ErrCapturePaymentCommandIsNotConstructed)
}

func (c CapturePaymentCommand) Callback() ports.GatewayCallback { return c.callback }

// RefundPaymentCommand returns amount of a captured payment to the customer.
type RefundPaymentCommand struct {
	paymentID kernel.UUID
	amount    decimal.Decimal
	reason    string
	actor     kernel.Actor

	guard guard.ConstructorGuard
}

func NewRefundPaymentCommand(
	paymentID kernel.UUID,
	amount decimal.Decimal,
	reason string,
	actor kernel.Actor,
) (RefundPaymentCommand, error) {
	if err := errors.Join(
		paymentID.Validate(),
		kernel.ValidatePositiveAmount("amount", amount),
		actor.Validate(),
	); err != nil {
		return RefundPaymentCommand{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return RefundPaymentCommand{}, errs.NewValueIsRequiredError("reason")
	}
	return RefundPaymentCommand{
		paymentID: paymentID,
		amount:    amount,
		reason:    strings.TrimSpace(reason),
		actor:     actor,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

func (c RefundPaymentCommand) Validate() error {
	return c.guard.Validate(ErrRefundPaymentCommandIsNotConstructed)
}

func (c RefundPaymentCommand) PaymentID() kernel.UUID  { return c.paymentID }
func (c RefundPaymentCommand) Amount() decimal.Decimal { return c.amount }
func (c RefundPaymentCommand) Reason() string          { return c.reason }
func (c RefundPaymentCommand) Actor() kernel.Actor     { return c.actor }

// CancelPendingPaymentCommand abandons the payments of an order that never reached
// the gateway or were never collected.
type CancelPendingPaymentCommand struct {
	orderID kernel.UUID
	reason  string

	guard guard.ConstructorGuard
}

func NewCancelPendingPaymentCommand(orderID kernel.UUID, reason string) (CancelPendingPaymentCommand, error) {
	if err := orderID.Validate(); err != nil {
		return CancelPendingPaymentCommand{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return CancelPendingPaymentCommand{}, errs.NewValueIsRequiredError("reason")
	}
	return CancelPendingPaymentCommand{orderID: orderID, reason: reason, guard: guard.NewConstructorGuard()}, nil
}

func (c CancelPendingPaymentCommand) Validate() error {
	return c.guard.Validate(ErrCancelPendingPaymentCommandIsNotConstructed)
}

func (c CancelPendingPaymentCommand) OrderID() kernel.UUID { return c.orderID }
func (c CancelPendingPaymentCommand) Reason() string       { return c.reason }

// CollectCashPaymentCommand settles the cash-on-delivery payment of a delivered order.
type CollectCashPaymentCommand struct {
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewCollectCashPaymentCommand(orderID kernel.UUID) (CollectCashPaymentCommand, error) {
	if err := orderID.Validate(); err != nil {
		return CollectCashPaymentCommand{}, err
	}
	return CollectCashPaymentCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (c CollectCashPaymentCommand) Validate() error {
	return c.guard.Validate(ErrCollectCashPaymentCommandIsNotConstructed)
}

func (c CollectCashPaymentCommand) OrderID() kernel.UUID { return c.orderID }

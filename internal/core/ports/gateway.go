package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/payment"

	"github.com/shopspring/decimal"
)

// Gateway is the external payment gateway. Implementations are unreliable: callers
// wrap them in a retrying decorator and pass an idempotency key on every call.
type Gateway interface {
	InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (InitiatePaymentResult, error)
	Refund(ctx context.Context, req GatewayRefundRequest) (GatewayRefundResult, error)
}

type InitiatePaymentRequest struct {
	PaymentID      kernel.UUID
	PaymentNumber  string
	Amount         decimal.Decimal
	Method         payment.MethodType
	IdempotencyKey string
}

type InitiatePaymentResult struct {
	GatewayRef    string
	RedirectToken string
	RawResponse   string
}

type GatewayRefundRequest struct {
	GatewayRef     string
	RefundNumber   string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// GatewayRefundResult reports the gateway's answer. Succeeded=false with a nil error
// is a definitive rejection.
type GatewayRefundResult struct {
	RefundRef   string
	Succeeded   bool
	FailureCode string
	RawResponse string
}

// CallbackStatus is the outcome reported by a gateway callback.
type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "success"
	CallbackFailed  CallbackStatus = "failed"
)

// GatewayCallback is the payload the gateway posts when a payment settles.
// Callbacks may be duplicated or arrive out of order.
type GatewayCallback struct {
	GatewayRef       string
	Status           CallbackStatus
	GatewayPaymentID string
	FailureCode      string
	FailureReason    string
	RawPayload       string
}

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retries of one gateway call.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
		MaxRetries:      4,
	}
}

// RetryingGateway retries failed calls of the wrapped gateway with exponential
// backoff. Every retry carries the caller's idempotency key, so the gateway sees
// at most one logical operation. A definitive rejection is returned as is; only
// errors are retried.
type RetryingGateway struct {
	next   ports.Gateway
	policy RetryPolicy
	logger *slog.Logger
}

func NewRetryingGateway(next ports.Gateway, policy RetryPolicy, logger *slog.Logger) *RetryingGateway {
	return &RetryingGateway{
		next:   next,
		policy: policy,
		logger: logger.With("component", "gateway_retry"),
	}
}

func (g *RetryingGateway) InitiatePayment(ctx context.Context, req ports.InitiatePaymentRequest) (ports.InitiatePaymentResult, error) {
	res, err := backoff.RetryNotifyWithData(func() (ports.InitiatePaymentResult, error) {
		return g.next.InitiatePayment(ctx, req)
	}, g.backOff(ctx), g.notify(ctx, "initiate_payment", req.IdempotencyKey))
	if err != nil {
		return ports.InitiatePaymentResult{}, g.wrap("initiate_payment", err)
	}
	return res, nil
}

func (g *RetryingGateway) Refund(ctx context.Context, req ports.GatewayRefundRequest) (ports.GatewayRefundResult, error) {
	res, err := backoff.RetryNotifyWithData(func() (ports.GatewayRefundResult, error) {
		return g.next.Refund(ctx, req)
	}, g.backOff(ctx), g.notify(ctx, "refund", req.IdempotencyKey))
	if err != nil {
		return ports.GatewayRefundResult{}, g.wrap("refund", err)
	}
	return res, nil
}

func (g *RetryingGateway) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.policy.InitialInterval
	b.MaxInterval = g.policy.MaxInterval
	b.MaxElapsedTime = g.policy.MaxElapsedTime
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, g.policy.MaxRetries), ctx)
}

func (g *RetryingGateway) notify(ctx context.Context, operation, key string) backoff.Notify {
	return func(err error, wait time.Duration) {
		g.logger.WarnContext(ctx, "gateway call failed, retrying",
			"operation", operation,
			"idempotency_key", key,
			"retry_in", wait,
			"error", err)
	}
}

func (g *RetryingGateway) wrap(operation string, err error) error {
	if errors.Is(err, errs.ErrGateway) {
		return err
	}
	return errs.NewGatewayError(operation, "unavailable", err)
}

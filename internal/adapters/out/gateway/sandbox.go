// Package gateway holds the payment gateway adapters: a sandbox that settles
// everything locally, and a decorator that retries an unreliable gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"

	"github.com/google/uuid"
)

// ErrSandboxUnavailable is returned while the sandbox simulates an outage.
var ErrSandboxUnavailable = errors.New("sandbox gateway unavailable")

// SandboxGateway accepts every payment and refund. Responses are remembered per
// idempotency key, so a replayed call returns the first answer.
type SandboxGateway struct {
	mu        sync.Mutex
	initiated map[string]ports.InitiatePaymentResult
	refunded  map[string]ports.GatewayRefundResult
	failures  int
	declines  map[string]string
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		initiated: make(map[string]ports.InitiatePaymentResult),
		refunded:  make(map[string]ports.GatewayRefundResult),
		declines:  make(map[string]string),
	}
}

// FailNext makes the next n calls fail as if the gateway were down.
func (g *SandboxGateway) FailNext(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = n
}

// DeclineRefunds makes refunds of gatewayRef fail with code.
func (g *SandboxGateway) DeclineRefunds(gatewayRef, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declines[gatewayRef] = code
}

func (g *SandboxGateway) InitiatePayment(ctx context.Context, req ports.InitiatePaymentRequest) (ports.InitiatePaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.InitiatePaymentResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.initiated[req.IdempotencyKey]; ok {
		return res, nil
	}
	if err := g.outage(); err != nil {
		return ports.InitiatePaymentResult{}, err
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	res := ports.InitiatePaymentResult{
		GatewayRef:    "sbx_" + kernel.NewUUID().String(),
		RedirectToken: token,
		RawResponse:   fmt.Sprintf(`{"status":"created","payment":%q,"amount":%q}`, req.PaymentNumber, req.Amount.StringFixed(2)),
	}
	g.initiated[req.IdempotencyKey] = res
	return res, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, req ports.GatewayRefundRequest) (ports.GatewayRefundResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.GatewayRefundResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.refunded[req.IdempotencyKey]; ok {
		return res, nil
	}
	if err := g.outage(); err != nil {
		return ports.GatewayRefundResult{}, err
	}

	res := ports.GatewayRefundResult{Succeeded: true}
	if code, declined := g.declines[req.GatewayRef]; declined {
		res = ports.GatewayRefundResult{FailureCode: code}
	} else {
		res.RefundRef = "sbx_rf_" + kernel.NewUUID().String()
	}
	res.RawResponse = fmt.Sprintf(`{"refund":%q,"succeeded":%t}`, req.RefundNumber, res.Succeeded)
	g.refunded[req.IdempotencyKey] = res
	return res, nil
}

func (g *SandboxGateway) outage() error {
	if g.failures > 0 {
		g.failures--
		return ErrSandboxUnavailable
	}
	return nil
}

package commands

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DispatchPolicy holds the timing rules of agent assignment.
type DispatchPolicy struct {
	// ResponseWindow is how long an agent has to accept an offered order.
	ResponseWindow time.Duration
	// FreshnessWindow is how old an agent's last location may be.
	FreshnessWindow time.Duration
	// RetryInitial is the delay before the first retry of an order no agent took.
	RetryInitial time.Duration
	// RetryMax caps the delay between retries.
	RetryMax time.Duration
	// MaxAttempts is the number of failed attempts after which dispatching gives up.
	MaxAttempts int
}

func DefaultDispatchPolicy() DispatchPolicy {
	return DispatchPolicy{
		ResponseWindow:  2 * time.Minute,
		FreshnessWindow: 5 * time.Minute,
		RetryInitial:    30 * time.Second,
		RetryMax:        10 * time.Minute,
		MaxAttempts:     10,
	}
}

// RetryDelay is the delay after the given number of failed attempts: RetryInitial
// doubled per attempt, capped at RetryMax, without jitter.
func (p DispatchPolicy) RetryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.RetryInitial
	b.MaxInterval = p.RetryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

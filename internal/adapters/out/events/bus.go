// Package events delivers committed domain events: an in-process bus fans them out
// to subscribers, and notifiers forward them to the outside world.
package events

import (
	"context"
	"log/slog"
	"sync"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/metrics"
)

// Bus is a synchronous in-process event bus. Publish calls every handler subscribed
// to the event name, then every catch-all handler, in subscription order. Handler
// errors are logged and never reach the publisher, whose transaction has already
// committed.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	all      []ports.EventHandler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewBus(logger *slog.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger.With("component", "event_bus"),
		metrics:  m,
	}
}

func (b *Bus) Subscribe(eventName string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *Bus) SubscribeAll(handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *Bus) Publish(ctx context.Context, events ...kernel.DomainEvent) {
	for _, event := range events {
		b.mu.RLock()
		handlers := append(append([]ports.EventHandler(nil), b.handlers[event.EventName()]...), b.all...)
		b.mu.RUnlock()

		b.metrics.EventPublished(event.EventName())
		for _, handle := range handlers {
			if err := handle(ctx, event); err != nil {
				b.logger.ErrorContext(ctx, "event handler failed",
					"event", event.EventName(),
					"error", err)
			}
		}
	}
}

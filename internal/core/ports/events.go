package ports

import (
	"context"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
)

// EventPublisher hands committed domain events to their subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...kernel.DomainEvent)
}

// EventHandler reacts to one event. Errors are logged by the bus, never returned to
// the publisher.
type EventHandler func(ctx context.Context, event kernel.DomainEvent) error

// EventSubscriber registers handlers by event name.
type EventSubscriber interface {
	Subscribe(eventName string, handler EventHandler)
	SubscribeAll(handler EventHandler)
}

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	Notify(ctx context.Context, event kernel.DomainEvent) error
}

// Clock abstracts time so that sweeps and windows are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

package kernel

import "time"

// DomainEvent is a fact raised by an aggregate. Events are handed to the event bus
// only after the transaction that produced them commits.
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// EventSource is implemented by aggregates that raise domain events.
type EventSource interface {
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}

// EventRecorder buffers events on an aggregate until the unit of work drains them.
type EventRecorder struct {
	events []DomainEvent
}

func (r *EventRecorder) Record(e DomainEvent) {
	r.events = append(r.events, e)
}

func (r *EventRecorder) Events() []DomainEvent {
	out := make([]DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *EventRecorder) Clear() {
	r.events = nil
}

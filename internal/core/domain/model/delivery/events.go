package delivery

import (
	"time"

	"fulfillment/internal/core/domain/model/kernel"
)

const (
	AssignmentChangedEventName = "delivery.assignment_changed"
	LocationUpdatedEventName   = "delivery.location_updated"
)

// AssignmentChangedEvent is raised on creation and on every status change.
type AssignmentChangedEvent struct {
	AssignmentID kernel.UUID
	OrderID      kernel.UUID
	AgentID      kernel.UUID
	From         AssignmentStatus
	To           AssignmentStatus
	Reason       string
	At           time.Time
}

func (e AssignmentChangedEvent) EventName() string     { return AssignmentChangedEventName }
func (e AssignmentChangedEvent) OccurredAt() time.Time { return e.At }

type LocationUpdatedEvent struct {
	AgentID      kernel.UUID
	AssignmentID *kernel.UUID
	Location     kernel.GeoPoint
	At           time.Time
}

func (e LocationUpdatedEvent) EventName() string     { return LocationUpdatedEventName }
func (e LocationUpdatedEvent) OccurredAt() time.Time { return e.At }

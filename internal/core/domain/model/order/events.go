package order

import (
	"time"

	"fulfillment/internal/core/domain/model/kernel"

	"github.com/shopspring/decimal"
)

const (
	CreatedEventName       = "order.created"
	StatusChangedEventName = "order.status_changed"
)

// CreatedEvent is raised once when an order is placed.
type CreatedEvent struct {
	OrderID    kernel.UUID
	Number     string
	CustomerID kernel.UUID
	StoreID    kernel.UUID
	Total      decimal.Decimal
	At         time.Time
}

func (e CreatedEvent) EventName() string     { return CreatedEventName }
func (e CreatedEvent) OccurredAt() time.Time { return e.At }

// StatusChangedEvent is raised for every status transition, including cancellation.
type StatusChangedEvent struct {
	OrderID  kernel.UUID
	Number   string
	From     Status
	To       Status
	Actor    kernel.Actor
	Note     string
	Override bool
	At       time.Time
}

func (e StatusChangedEvent) EventName() string     { return StatusChangedEventName }
func (e StatusChangedEvent) OccurredAt() time.Time { return e.At }

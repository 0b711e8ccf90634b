// Package ports defines the contracts between the fulfillment core and its
// infrastructure: repositories bound to a unit of work, and the external
// collaborators (payment gateway, distance lookup, catalog, carts, notifications).
package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
)

// OrderRepository defines the persistence contract for order aggregates.
// Line items are stored with the order; history entries are appended, never updated.
type OrderRepository interface {
	// Add persists a new order together with its line items and first history entry.
	// Returns an error wrapping errs.ErrAlreadyExists when the order number is taken.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists changes with an optimistic version check and appends pending
	// history entries. Returns errs.ConflictError when the stored version moved on.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get retrieves an order with its line items.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// History returns the audit trail of an order ordered by sequence.
	History(ctx context.Context, orderID kernel.UUID) ([]order.HistoryEntry, error)
}

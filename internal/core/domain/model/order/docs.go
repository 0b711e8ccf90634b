// Package order provides the Order aggregate of the fulfillment engine: the customer
// purchase created from a cart snapshot, its status state machine and its
// append-only audit history.
//
// The package includes:
//   - Order: the aggregate root owning line items, money totals and history
//   - Status: the fulfillment state machine (pending through delivered, plus cancelled and refunded)
//   - PaymentStatus: the order-level view of collected money
//   - CreatedEvent, StatusChangedEvent: domain events drained after commit
//
// Key business rules:
//   - total = subtotal + delivery fee + tax - discount for the whole life of the order
//   - status transitions follow the table in Status; stages cannot be skipped except
//     through an audited admin override
//   - every status change appends exactly one history entry naming the actor
package order

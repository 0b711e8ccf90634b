package order

import (
	"fmt"
	"strings"

	"fulfillment/internal/pkg/errs"
)

// Status represents the lifecycle state of an order.
//
// State transitions:
//
//	Pending ──> Confirmed ──> Processing ──> ReadyForPickup ──> OutForDelivery ──> Delivered
//	   │            │              │
//	   └────────────┴──────────────┴──> Cancelled
//
//	any non-terminal status ──> Refunded
//
// Delivered, Cancelled and Refunded are terminal.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// Pending is the initial status. Inventory is reserved, payment is outstanding.
	Pending

	// Confirmed means payment is settled (or cash on delivery) and inventory is committed.
	Confirmed

	// Processing means the store is preparing the order.
	Processing

	// ReadyForPickup means the order is packed and waiting for the agent.
	ReadyForPickup

	// OutForDelivery means the agent has picked the order up.
	OutForDelivery

	// Delivered is the final successful state.
	Delivered

	// Cancelled is a final state reached before the order leaves the store.
	Cancelled

	// Refunded is a final state reached through the failure path.
	Refunded
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:        "unknown",
		Pending:        "pending",
		Confirmed:      "confirmed",
		Processing:     "processing",
		ReadyForPickup: "ready_for_pickup",
		OutForDelivery: "out_for_delivery",
		Delivered:      "delivered",
		Cancelled:      "cancelled",
		Refunded:       "refunded",
	}
}

// Validate checks if the Status value is one of the defined states.
// Unknown (0) and any other values are invalid.
func (s Status) Validate() error {
	if _, ok := getStatusStrings()[s]; !ok || s == Unknown {
		return errs.NewValueIsInvalidErrorWithCause("status is invalid", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String returns the snake_case name used in the API and in events.
//
// Example:
//
//	fmt.Println(order.ReadyForPickup) // Output: "ready_for_pickup"
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "unknown"
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for status, name := range getStatusStrings() {
		if status != Unknown && name == normalized {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status is invalid", fmt.Errorf("%q is not a valid status", s))
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Cancelled || s == Refunded
}

// IsOnFulfillmentPath reports whether the status is one of the linear Pending..Delivered stages.
func (s Status) IsOnFulfillmentPath() bool {
	return s >= Pending && s <= Delivered
}

// Next returns the immediate successor on the fulfillment path.
func (s Status) Next() (Status, bool) {
	if !s.IsOnFulfillmentPath() || s == Delivered {
		return Unknown, false
	}
	return s + 1, true
}

// Confirm transitions Pending to Confirmed.
func (s Status) Confirm() (Status, error) {
	if s != Pending {
		return Unknown, errs.NewInvalidTransitionError("order", s, Confirmed)
	}
	return Confirmed, nil
}

// Advance validates a forward move along the fulfillment path.
//
// Without override only the immediate successor is accepted. With override any later
// stage is accepted, but only once the order is at least Confirmed: Pending must go
// through Confirm so that inventory is committed.
func (s Status) Advance(target Status, override bool) (Status, error) {
	if err := target.Validate(); err != nil {
		return Unknown, err
	}
	if s.IsTerminal() || !target.IsOnFulfillmentPath() || target == Confirmed {
		return Unknown, errs.NewInvalidTransitionError("order", s, target)
	}

	if next, ok := s.Next(); ok && next == target {
		return target, nil
	}

	if override && s >= Confirmed && target > s {
		return target, nil
	}

	return Unknown, errs.NewInvalidTransitionError("order", s, target)
}

// Cancel transitions to Cancelled. Allowed from Pending, Confirmed and Processing.
func (s Status) Cancel() (Status, error) {
	if s != Pending && s != Confirmed && s != Processing {
		return Unknown, errs.NewInvalidTransitionError("order", s, Cancelled)
	}
	return Cancelled, nil
}

// CanCancel reports whether Cancel would succeed.
func (s Status) CanCancel() bool {
	_, err := s.Cancel()
	return err == nil
}

// Refund transitions any non-terminal status to Refunded.
func (s Status) Refund() (Status, error) {
	if s.IsTerminal() || s.Validate() != nil {
		return Unknown, errs.NewInvalidTransitionError("order", s, Refunded)
	}
	return Refunded, nil
}

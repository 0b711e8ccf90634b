// Package inventory models per-store stock levels and the time-bounded reservations
// held against them between order creation and confirmation.
//
// Every StoreProductStock row keeps
//
//	available = stockQuantity - reservedQuantity >= 0
//
// and a row found violating it is frozen: all further mutations fail with
// errs.ErrInvariantViolation until an operator repairs the data.
package inventory

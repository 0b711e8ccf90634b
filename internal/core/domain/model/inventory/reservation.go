package inventory

import (
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrReservationIsNotConstructed = errors.New("Reservation must be created via NewReservation or RestoreReservation constructor")

// ReservationStatus tracks a soft hold through its lifecycle:
//
//	Active ──> Committed ──> Released (restocked after a cancellation)
//	   │
//	   ├────> Released
//	   └────> Expired ──> Active (revived when stock still allows)
type ReservationStatus int

const (
	ReservationUnknown ReservationStatus = iota
	ReservationActive
	ReservationCommitted
	ReservationReleased
	ReservationExpired
)

var reservationStatusNames = map[ReservationStatus]string{
	ReservationActive:    "active",
	ReservationCommitted: "committed",
	ReservationReleased:  "released",
	ReservationExpired:   "expired",
}

func (s ReservationStatus) String() string {
	if name, ok := reservationStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s ReservationStatus) Validate() error {
	if _, ok := reservationStatusNames[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("reservation status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// Reservation is a time-bounded hold of quantity units of one store product for one order.
type Reservation struct {
	id             kernel.UUID
	orderID        kernel.UUID
	storeProductID kernel.UUID
	quantity       int
	status         ReservationStatus
	createdAt      time.Time
	expiresAt      time.Time
	version        kernel.Version
	guard          guard.ConstructorGuard
}

func NewReservation(
	id, orderID, storeProductID kernel.UUID,
	quantity int,
	createdAt time.Time,
	ttl time.Duration,
) (*Reservation, error) {
	if ttl <= 0 {
		return nil, errs.NewValueIsInvalidErrorWithCause("reservation ttl", fmt.Errorf("%s is not positive", ttl))
	}
	r := &Reservation{
		quantity:  quantity,
		status:    ReservationActive,
		createdAt: createdAt.UTC(),
		expiresAt: createdAt.UTC().Add(ttl),
		guard:     guard.NewConstructorGuard(),
	}
	if err := errors.Join(
		id.Validate(),
		orderID.Validate(),
		storeProductID.Validate(),
		validateQuantity(quantity),
	); err != nil {
		return nil, err
	}
	r.id, r.orderID, r.storeProductID = id, orderID, storeProductID
	return r, nil
}

func RestoreReservation(
	id, orderID, storeProductID kernel.UUID,
	quantity int,
	status ReservationStatus,
	createdAt, expiresAt time.Time,
	version int,
) (*Reservation, error) {
	if err := errors.Join(
		id.Validate(),
		orderID.Validate(),
		storeProductID.Validate(),
		validateQuantity(quantity),
		status.Validate(),
	); err != nil {
		return nil, err
	}
	return &Reservation{
		id:             id,
		orderID:        orderID,
		storeProductID: storeProductID,
		quantity:       quantity,
		status:         status,
		createdAt:      createdAt.UTC(),
		expiresAt:      expiresAt.UTC(),
		version:        kernel.RestoreVersion(version),
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (r *Reservation) Validate() error {
	if r == nil {
		return ErrReservationIsNotConstructed
	}
	return r.guard.Validate(ErrReservationIsNotConstructed)
}

func (r *Reservation) ID() kernel.UUID             { return r.id }
func (r *Reservation) OrderID() kernel.UUID        { return r.orderID }
func (r *Reservation) StoreProductID() kernel.UUID { return r.storeProductID }
func (r *Reservation) Quantity() int               { return r.quantity }
func (r *Reservation) Status() ReservationStatus   { return r.status }
func (r *Reservation) CreatedAt() time.Time        { return r.createdAt }
func (r *Reservation) ExpiresAt() time.Time        { return r.expiresAt }
func (r *Reservation) Version() int                { return r.version.Current() }

func (r *Reservation) AdvanceVersion() (int, int) {
	return r.version.Advance()
}

// IsDue reports whether an active hold has reached its expiry time.
func (r *Reservation) IsDue(now time.Time) bool {
	return r.status == ReservationActive && !now.Before(r.expiresAt)
}

func (r *Reservation) Commit() error {
	if r.status != ReservationActive {
		return errs.NewInvalidTransitionError("reservation", r.status, ReservationCommitted)
	}
	r.status = ReservationCommitted
	return nil
}

// Release ends an active hold, or marks committed units as returned to stock.
func (r *Reservation) Release() error {
	if r.status != ReservationActive && r.status != ReservationCommitted {
		return errs.NewInvalidTransitionError("reservation", r.status, ReservationReleased)
	}
	r.status = ReservationReleased
	return nil
}

func (r *Reservation) Expire(now time.Time) error {
	if !r.IsDue(now) {
		return errs.NewInvalidTransitionError("reservation", r.status, ReservationExpired)
	}
	r.status = ReservationExpired
	return nil
}

// Revive reactivates an expired hold whose stock has been re-reserved.
func (r *Reservation) Revive(now time.Time, ttl time.Duration) error {
	if r.status != ReservationExpired {
		return errs.NewInvalidTransitionError("reservation", r.status, ReservationActive)
	}
	r.status = ReservationActive
	r.expiresAt = now.UTC().Add(ttl)
	return nil
}

func validateQuantity(qty int) error {
	if qty <= 0 {
		return errs.NewValueIsInvalidErrorWithCause("quantity", fmt.Errorf("%d is not greater than 0", qty))
	}
	return nil
}

package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"

	"github.com/shopspring/decimal"
)

var (
	ErrSnapshotIsNotConstructed = errors.New("Snapshot must be created via NewSnapshot constructor")
	ErrAddressIsNotConstructed  = errors.New("Address must be created via NewAddress constructor")
)

// Address is the delivery address copied onto the order.
type Address struct {
	line1    string
	line2    string
	city     string
	zip      string
	location kernel.GeoPoint
	guard    guard.ConstructorGuard
}

// NewAddress builds an address. location may be the zero GeoPoint when not geocoded.
func NewAddress(line1, line2, city, zip string, location kernel.GeoPoint) (Address, error) {
	if err := errors.Join(
		validateName("address line1", line1),
		validateName("city", city),
		validateName("zip", zip),
	); err != nil {
		return Address{}, err
	}
	return Address{
		line1:    line1,
		line2:    line2,
		city:     city,
		zip:      strings.TrimSpace(zip),
		location: location,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

func (a Address) Line1() string             { return a.line1 }
func (a Address) Line2() string             { return a.line2 }
func (a Address) City() string              { return a.city }
func (a Address) Zip() string               { return a.zip }
func (a Address) Location() kernel.GeoPoint { return a.location }
func (a Address) Validate() error           { return a.guard.Validate(ErrAddressIsNotConstructed) }

// Charges are the store-derived amounts added on top of the line subtotal.
type Charges struct {
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
}

// Snapshot is the frozen input of order creation.
type Snapshot struct {
	customerID          kernel.UUID
	storeID             kernel.UUID
	address             Address
	lines               []LineItem
	subtotal            decimal.Decimal
	deliveryFee         decimal.Decimal
	tax                 decimal.Decimal
	discount            decimal.Decimal
	total               decimal.Decimal
	specialInstructions string
	takenAt             time.Time
	guard               guard.ConstructorGuard
}

// NewSnapshot computes subtotal and total from the lines and charges:
//
//	total = subtotal + deliveryFee + tax - discount
func NewSnapshot(
	customerID, storeID kernel.UUID,
	address Address,
	lines []LineItem,
	charges Charges,
	specialInstructions string,
	takenAt time.Time,
) (Snapshot, error) {
	err := errors.Join(
		customerID.Validate(),
		storeID.Validate(),
		address.Validate(),
		kernel.ValidateNonNegativeAmount("delivery fee", charges.DeliveryFee),
		kernel.ValidateNonNegativeAmount("tax", charges.Tax),
		kernel.ValidateNonNegativeAmount("discount", charges.Discount),
	)
	if len(lines) == 0 {
		err = errors.Join(err, errs.NewValueIsRequiredError("cart lines"))
	}
	seen := make(map[kernel.UUID]struct{}, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		if lineErr := l.Validate(); lineErr != nil {
			err = errors.Join(err, lineErr)
			continue
		}
		if _, dup := seen[l.storeProductID]; dup {
			err = errors.Join(err, errs.NewValueIsInvalidErrorWithCause("cart lines",
				fmt.Errorf("product %s appears more than once", l.storeProductID)))
		}
		seen[l.storeProductID] = struct{}{}
		subtotal = subtotal.Add(l.Total())
	}
	if err != nil {
		return Snapshot{}, err
	}

	gross := subtotal.Add(charges.DeliveryFee).Add(charges.Tax)
	if charges.Discount.GreaterThan(gross) {
		return Snapshot{}, errs.NewValueIsOutOfRangeError("discount", charges.Discount, decimal.Zero, gross)
	}

	copied := make([]LineItem, len(lines))
	copy(copied, lines)
	return Snapshot{
		customerID:          customerID,
		storeID:             storeID,
		address:             address,
		lines:               copied,
		subtotal:            kernel.RoundMoney(subtotal),
		deliveryFee:         charges.DeliveryFee,
		tax:                 charges.Tax,
		discount:            charges.Discount,
		total:               kernel.RoundMoney(gross.Sub(charges.Discount)),
		specialInstructions: specialInstructions,
		takenAt:             takenAt.UTC(),
		guard:               guard.NewConstructorGuard(),
	}, nil
}

func (s Snapshot) CustomerID() kernel.UUID      { return s.customerID }
func (s Snapshot) StoreID() kernel.UUID         { return s.storeID }
func (s Snapshot) Address() Address             { return s.address }
func (s Snapshot) Subtotal() decimal.Decimal    { return s.subtotal }
func (s Snapshot) DeliveryFee() decimal.Decimal { return s.deliveryFee }
func (s Snapshot) Tax() decimal.Decimal         { return s.tax }
func (s Snapshot) Discount() decimal.Decimal    { return s.discount }
func (s Snapshot) Total() decimal.Decimal       { return s.total }
func (s Snapshot) SpecialInstructions() string  { return s.specialInstructions }
func (s Snapshot) TakenAt() time.Time           { return s.takenAt }
func (s Snapshot) Validate() error              { return s.guard.Validate(ErrSnapshotIsNotConstructed) }

func (s Snapshot) Lines() []LineItem {
	out := make([]LineItem, len(s.lines))
	copy(out, s.lines)
	return out
}

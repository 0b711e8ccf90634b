package inventory

import (
	"errors"
	"fmt"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrStockIsNotConstructed = errors.New("Stock must be created via NewStock or RestoreStock constructor")

// Stock is the inventory row of one product at one store.
type Stock struct {
	storeProductID   kernel.UUID
	storeID          kernel.UUID
	stockQuantity    int
	reservedQuantity int
	frozen           bool
	version          kernel.Version
	guard            guard.ConstructorGuard
}

// NewStock creates a row with the given on-hand quantity and nothing reserved.
func NewStock(storeProductID, storeID kernel.UUID, stockQuantity int) (*Stock, error) {
	s := &Stock{guard: guard.NewConstructorGuard()}
	if err := errors.Join(
		s.setStoreProductID(storeProductID),
		s.setStoreID(storeID),
		s.setStockQuantity(stockQuantity),
	); err != nil {
		return nil, err
	}
	return s, nil
}

// RestoreStock rebuilds a persisted row. Corrupt quantities do not fail the restore:
// the row comes back frozen so the corruption is reported by the first mutation.
func RestoreStock(
	storeProductID, storeID kernel.UUID,
	stockQuantity, reservedQuantity int,
	frozen bool,
	version int,
) (*Stock, error) {
	s := &Stock{
		stockQuantity:    stockQuantity,
		reservedQuantity: reservedQuantity,
		frozen:           frozen,
		version:          kernel.RestoreVersion(version),
		guard:            guard.NewConstructorGuard(),
	}
	if err := errors.Join(s.setStoreProductID(storeProductID), s.setStoreID(storeID)); err != nil {
		return nil, err
	}
	if s.CheckInvariant() != nil {
		s.frozen = true
	}
	return s, nil
}

func (s *Stock) Validate() error {
	if s == nil {
		return ErrStockIsNotConstructed
	}
	return s.guard.Validate(ErrStockIsNotConstructed)
}

func (s *Stock) StoreProductID() kernel.UUID { return s.storeProductID }
func (s *Stock) StoreID() kernel.UUID        { return s.storeID }
func (s *Stock) StockQuantity() int          { return s.stockQuantity }
func (s *Stock) ReservedQuantity() int       { return s.reservedQuantity }
func (s *Stock) Frozen() bool                { return s.frozen }
func (s *Stock) Version() int                { return s.version.Current() }

func (s *Stock) AdvanceVersion() (int, int) {
	return s.version.Advance()
}

// Available is the quantity that can still be reserved.
func (s *Stock) Available() int {
	return s.stockQuantity - s.reservedQuantity
}

// CheckInvariant verifies the quantities without changing anything.
func (s *Stock) CheckInvariant() error {
	switch {
	case s.stockQuantity < 0:
		return s.violation(fmt.Sprintf("stock quantity %d is negative", s.stockQuantity))
	case s.reservedQuantity < 0:
		return s.violation(fmt.Sprintf("reserved quantity %d is negative", s.reservedQuantity))
	case s.reservedQuantity > s.stockQuantity:
		return s.violation(fmt.Sprintf("reserved quantity %d exceeds stock quantity %d",
			s.reservedQuantity, s.stockQuantity))
	}
	return nil
}

// Reserve holds qty units. Fails with OutOfStockError when fewer are available.
func (s *Stock) Reserve(qty int) error {
	if err := s.checkWritable(qty); err != nil {
		return err
	}
	if qty > s.Available() {
		return errs.NewOutOfStockError(s.storeProductID.String(), qty, s.Available())
	}
	s.reservedQuantity += qty
	return nil
}

// ReleaseReserved returns qty reserved units to the available pool.
func (s *Stock) ReleaseReserved(qty int) error {
	if err := s.checkWritable(qty); err != nil {
		return err
	}
	if qty > s.reservedQuantity {
		return s.violation(fmt.Sprintf("release of %d exceeds reserved quantity %d", qty, s.reservedQuantity))
	}
	s.reservedQuantity -= qty
	return nil
}

// CommitReserved turns qty reserved units into a permanent decrement of stock.
func (s *Stock) CommitReserved(qty int) error {
	if err := s.checkWritable(qty); err != nil {
		return err
	}
	if qty > s.reservedQuantity {
		return s.violation(fmt.Sprintf("commit of %d exceeds reserved quantity %d", qty, s.reservedQuantity))
	}
	s.reservedQuantity -= qty
	s.stockQuantity -= qty
	return nil
}

// Restock adds qty units on hand, e.g. a delivery from the supplier or goods returned
// by a cancelled confirmed order.
func (s *Stock) Restock(qty int) error {
	if err := s.checkWritable(qty); err != nil {
		return err
	}
	s.stockQuantity += qty
	return nil
}

func (s *Stock) checkWritable(qty int) error {
	if s.frozen {
		return s.violation("row is frozen")
	}
	if err := s.CheckInvariant(); err != nil {
		s.frozen = true
		return err
	}
	if qty <= 0 {
		return errs.NewValueIsInvalidErrorWithCause("quantity", fmt.Errorf("%d is not greater than 0", qty))
	}
	return nil
}

func (s *Stock) violation(detail string) error {
	return errs.NewInvariantViolationError("stock", s.storeProductID.String(), detail)
}

func (s *Stock) setStoreProductID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.storeProductID = id
	return nil
}

func (s *Stock) setStoreID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.storeID = id
	return nil
}

func (s *Stock) setStockQuantity(qty int) error {
	if qty < 0 {
		return errs.NewValueIsInvalidErrorWithCause("stock quantity", fmt.Errorf("%d is negative", qty))
	}
	s.stockQuantity = qty
	return nil
}

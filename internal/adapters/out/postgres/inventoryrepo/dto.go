// Package inventoryrepo persists per-product stock rows and the reservations held
// against them.
package inventoryrepo

import (
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/inventory"

	"github.com/google/uuid"
)

type StockDTO struct {
	StoreProductID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID          uuid.UUID `gorm:"type:uuid;index"`
	StockQuantity    int
	ReservedQuantity int
	Frozen           bool
	Version          int
}

func (StockDTO) TableName() string {
	return "store_product_stock"
}

type ReservationDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"type:uuid;index"`
	StoreProductID uuid.UUID `gorm:"type:uuid"`
	Quantity       int
	Status         int       `gorm:"index:idx_reservations_due,priority:1"`
	ExpiresAt      time.Time `gorm:"index:idx_reservations_due,priority:2"`
	CreatedAt      time.Time
	Version        int
}

func (ReservationDTO) TableName() string {
	return "inventory_reservations"
}

func stockFromDomain(s *inventory.Stock) StockDTO {
	return StockDTO{
		StoreProductID:   s.StoreProductID().Bytes(),
		StoreID:          s.StoreID().Bytes(),
		StockQuantity:    s.StockQuantity(),
		ReservedQuantity: s.ReservedQuantity(),
		Frozen:           s.Frozen(),
		Version:          s.Version(),
	}
}

func stockToDomain(dto StockDTO) (*inventory.Stock, error) {
	productID, err := pgconv.FromUUID(dto.StoreProductID)
	if err != nil {
		return nil, err
	}
	storeID, err := pgconv.FromUUID(dto.StoreID)
	if err != nil {
		return nil, err
	}
	return inventory.RestoreStock(productID, storeID, dto.StockQuantity, dto.ReservedQuantity, dto.Frozen, dto.Version)
}

func reservationFromDomain(r *inventory.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:             r.ID().Bytes(),
		OrderID:        r.OrderID().Bytes(),
		StoreProductID: r.StoreProductID().Bytes(),
		Quantity:       r.Quantity(),
		Status:         int(r.Status()),
		ExpiresAt:      r.ExpiresAt(),
		CreatedAt:      r.CreatedAt(),
		Version:        r.Version(),
	}
}

func reservationToDomain(dto ReservationDTO) (*inventory.Reservation, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := pgconv.FromUUID(dto.OrderID)
	if err != nil {
		return nil, err
	}
	productID, err := pgconv.FromUUID(dto.StoreProductID)
	if err != nil {
		return nil, err
	}
	return inventory.RestoreReservation(
		id, orderID, productID,
		dto.Quantity, inventory.ReservationStatus(dto.Status),
		dto.CreatedAt, dto.ExpiresAt,
		dto.Version,
	)
}

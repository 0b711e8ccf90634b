package inventoryrepo

import (
	"context"
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockRepository implements StockRepository using GORM.
type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) Add(ctx context.Context, stock *inventory.Stock) error {
	if err := stock.Validate(); err != nil {
		return err
	}
	dto := stockFromDomain(stock)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return pgconv.Translate(err, "store product stock", stock.StoreProductID().String())
	}
	return nil
}

func (r *GormStockRepository) Update(ctx context.Context, stock *inventory.Stock) error {
	if err := stock.Validate(); err != nil {
		return err
	}
	expected, _ := stock.AdvanceVersion()
	dto := stockFromDomain(stock)
	result := r.db.WithContext(ctx).Model(&StockDTO{}).
		Where("store_product_id = ? AND version = ?", dto.StoreProductID, expected).
		Updates(map[string]any{
			"stock_quantity":    dto.StockQuantity,
			"reserved_quantity": dto.ReservedQuantity,
			"frozen":            dto.Frozen,
			"version":           dto.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("store product stock", stock.StoreProductID().String())
	}
	return nil
}

func (r *GormStockRepository) Get(ctx context.Context, storeProductID kernel.UUID) (*inventory.Stock, error) {
	var dto StockDTO
	if err := r.db.WithContext(ctx).First(&dto, "store_product_id = ?", storeProductID.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "store product stock", storeProductID.String())
	}
	return stockToDomain(dto)
}

// GetForUpdate takes row locks in ascending key order. Unknown ids are omitted.
func (r *GormStockRepository) GetForUpdate(ctx context.Context, storeProductIDs []kernel.UUID) ([]*inventory.Stock, error) {
	if len(storeProductIDs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(storeProductIDs))
	for _, id := range storeProductIDs {
		ids = append(ids, id.Bytes())
	}

	var dtos []StockDTO
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_product_id IN ?", ids).
		Order("store_product_id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	stocks := make([]*inventory.Stock, 0, len(dtos))
	for _, dto := range dtos {
		s, err := stockToDomain(dto)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, nil
}

// GormReservationRepository implements ReservationRepository using GORM.
type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Add(ctx context.Context, reservation *inventory.Reservation) error {
	if err := reservation.Validate(); err != nil {
		return err
	}
	dto := reservationFromDomain(reservation)
	return pgconv.Translate(r.db.WithContext(ctx).Create(&dto).Error, "reservation", reservation.ID().String())
}

func (r *GormReservationRepository) Update(ctx context.Context, reservation *inventory.Reservation) error {
	if err := reservation.Validate(); err != nil {
		return err
	}
	expected, _ := reservation.AdvanceVersion()
	dto := reservationFromDomain(reservation)
	result := r.db.WithContext(ctx).Model(&ReservationDTO{}).
		Where("id = ? AND version = ?", dto.ID, expected).
		Updates(map[string]any{
			"status":     dto.Status,
			"expires_at": dto.ExpiresAt,
			"version":    dto.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("reservation", reservation.ID().String())
	}
	return nil
}

func (r *GormReservationRepository) ListByOrder(ctx context.Context, orderID kernel.UUID) ([]*inventory.Reservation, error) {
	return r.find(r.db.WithContext(ctx).Where("order_id = ?", orderID.Bytes()).Order("created_at, id"))
}

// ListDue locks the returned rows and skips rows another sweep already holds.
func (r *GormReservationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*inventory.Reservation, error) {
	q := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND expires_at < ?", int(inventory.ReservationActive), now).
		Order("expires_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.find(q)
}

func (r *GormReservationRepository) find(q *gorm.DB) ([]*inventory.Reservation, error) {
	var dtos []ReservationDTO
	if err := q.Find(&dtos).Error; err != nil {
		return nil, err
	}
	reservations := make([]*inventory.Reservation, 0, len(dtos))
	for _, dto := range dtos {
		res, err := reservationToDomain(dto)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, nil
}

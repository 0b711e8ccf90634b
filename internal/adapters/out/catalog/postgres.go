package catalog

import (
	"context"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var _ ports.Catalog = (*PostgresCatalog)(nil)

type StoreDTO struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name                  string
	Active                bool
	Lat                   *float64
	Lng                   *float64
	DeliveryFee           decimal.Decimal  `gorm:"type:numeric(12,2)"`
	MinOrderAmount        decimal.Decimal  `gorm:"type:numeric(12,2)"`
	FreeDeliveryThreshold *decimal.Decimal `gorm:"type:numeric(12,2)"`
	TaxRate               decimal.Decimal  `gorm:"type:numeric(5,2)"`
}

func (StoreDTO) TableName() string {
	return "stores"
}

type CoverageDTO struct {
	StoreID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Zip            string    `gorm:"primaryKey"`
	Active         bool
	DeliveryFee    *decimal.Decimal `gorm:"type:numeric(12,2)"`
	MinOrderAmount *decimal.Decimal `gorm:"type:numeric(12,2)"`
}

func (CoverageDTO) TableName() string {
	return "store_coverage"
}

type StoreProductDTO struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID             uuid.UUID `gorm:"type:uuid;index"`
	Name                string
	Price               decimal.Decimal `gorm:"type:numeric(12,2)"`
	Available           bool
	MaxQuantityPerOrder int
}

func (StoreProductDTO) TableName() string {
	return "store_products"
}

type IngredientDTO struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name   string
	Price  decimal.Decimal `gorm:"type:numeric(12,2)"`
	Active bool
}

func (IngredientDTO) TableName() string {
	return "ingredients"
}

// PostgresCatalog reads the catalog tables owned by the storefront. It never writes.
type PostgresCatalog struct {
	db *gorm.DB
}

func NewPostgresCatalog(db *gorm.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) GetStore(ctx context.Context, storeID kernel.UUID) (ports.Store, error) {
	var dto StoreDTO
	if err := c.db.WithContext(ctx).First(&dto, "id = ?", storeID.Bytes()).Error; err != nil {
		return ports.Store{}, pgconv.Translate(err, "store", storeID.String())
	}
	location, err := pgconv.GeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return ports.Store{}, err
	}
	return ports.Store{
		ID:                    storeID,
		Name:                  dto.Name,
		Active:                dto.Active,
		Location:              location,
		DeliveryFee:           dto.DeliveryFee,
		MinOrderAmount:        dto.MinOrderAmount,
		FreeDeliveryThreshold: dto.FreeDeliveryThreshold,
		TaxRate:               dto.TaxRate,
	}, nil
}

func (c *PostgresCatalog) GetCoverage(ctx context.Context, storeID kernel.UUID, zip string) (ports.Coverage, error) {
	var dto CoverageDTO
	err := c.db.WithContext(ctx).First(&dto, "store_id = ? AND zip = ?", storeID.Bytes(), zip).Error
	if err != nil {
		return ports.Coverage{}, pgconv.Translate(err, "store coverage", zip)
	}
	return ports.Coverage{
		StoreID:        storeID,
		Zip:            dto.Zip,
		Active:         dto.Active,
		DeliveryFee:    dto.DeliveryFee,
		MinOrderAmount: dto.MinOrderAmount,
	}, nil
}

func (c *PostgresCatalog) GetStoreProducts(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]ports.StoreProduct, error) {
	var dtos []StoreProductDTO
	if err := c.db.WithContext(ctx).Where("id IN ?", rawIDs(ids)).Find(&dtos).Error; err != nil {
		return nil, err
	}
	products := make(map[kernel.UUID]ports.StoreProduct, len(dtos))
	for _, dto := range dtos {
		id, err := pgconv.FromUUID(dto.ID)
		if err != nil {
			return nil, err
		}
		storeID, err := pgconv.FromUUID(dto.StoreID)
		if err != nil {
			return nil, err
		}
		products[id] = ports.StoreProduct{
			ID:                  id,
			StoreID:             storeID,
			Name:                dto.Name,
			Price:               dto.Price,
			Available:           dto.Available,
			MaxQuantityPerOrder: dto.MaxQuantityPerOrder,
		}
	}
	return products, nil
}

func (c *PostgresCatalog) GetIngredients(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]ports.Ingredient, error) {
	var dtos []IngredientDTO
	if err := c.db.WithContext(ctx).Where("id IN ?", rawIDs(ids)).Find(&dtos).Error; err != nil {
		return nil, err
	}
	ingredients := make(map[kernel.UUID]ports.Ingredient, len(dtos))
	for _, dto := range dtos {
		id, err := pgconv.FromUUID(dto.ID)
		if err != nil {
			return nil, err
		}
		ingredients[id] = ports.Ingredient{ID: id, Name: dto.Name, Price: dto.Price, Active: dto.Active}
	}
	return ingredients, nil
}

func rawIDs(ids []kernel.UUID) []uuid.UUID {
	raw := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.Bytes())
	}
	return raw
}

// Migrate creates the catalog tables. Deployments that share the storefront's
// database skip it.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&StoreDTO{}, &CoverageDTO{}, &StoreProductDTO{}, &IngredientDTO{})
}

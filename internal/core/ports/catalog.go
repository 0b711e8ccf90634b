package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/kernel"

	"github.com/shopspring/decimal"
)

// Store is the catalog view of a store that pricing and dispatching need.
type Store struct {
	ID                    kernel.UUID
	Name                  string
	Active                bool
	Location              kernel.GeoPoint
	DeliveryFee           decimal.Decimal
	MinOrderAmount        decimal.Decimal
	FreeDeliveryThreshold *decimal.Decimal
	TaxRate               decimal.Decimal
}

// Coverage is a delivery zip served by a store, with optional overrides of the
// store's fee and minimum order amount.
type Coverage struct {
	StoreID        kernel.UUID
	Zip            string
	Active         bool
	DeliveryFee    *decimal.Decimal
	MinOrderAmount *decimal.Decimal
}

type StoreProduct struct {
	ID                  kernel.UUID
	StoreID             kernel.UUID
	Name                string
	Price               decimal.Decimal
	Available           bool
	MaxQuantityPerOrder int
}

type Ingredient struct {
	ID     kernel.UUID
	Name   string
	Price  decimal.Decimal
	Active bool
}

// Catalog is read-only access to stores, coverage, products and ingredients.
// Lookups of unknown ids fail with errs.ErrObjectNotFound.
type Catalog interface {
	GetStore(ctx context.Context, storeID kernel.UUID) (Store, error)
	GetCoverage(ctx context.Context, storeID kernel.UUID, zip string) (Coverage, error)
	GetStoreProducts(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]StoreProduct, error)
	GetIngredients(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]Ingredient, error)
}

type CartAddOn struct {
	IngredientID kernel.UUID
	Quantity     int
}

type CartItem struct {
	StoreProductID      kernel.UUID
	Quantity            int
	AddOns              []CartAddOn
	SpecialInstructions string
}

type DeliveryAddress struct {
	Line1 string
	Line2 string
	City  string
	Zip   string
	Lat   *float64
	Lng   *float64
}

// Cart is a customer's active cart at one store.
type Cart struct {
	CustomerID          kernel.UUID
	StoreID             kernel.UUID
	Address             DeliveryAddress
	Items               []CartItem
	Discount            decimal.Decimal
	SpecialInstructions string
}

// CartSource reads and clears customers' active carts.
type CartSource interface {
	ActiveCart(ctx context.Context, customerID, storeID kernel.UUID) (Cart, error)
	Save(ctx context.Context, cart Cart) error
	Clear(ctx context.Context, customerID, storeID kernel.UUID) error
}

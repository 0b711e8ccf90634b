// Package cart implements the Cart Aggregator: it turns a customer's active cart at
// one store into a priced, validated snapshot that order creation consumes once.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/core/domain/model/cart"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

type Aggregator struct {
	catalog ports.Catalog
	carts   ports.CartSource
}

func NewAggregator(catalog ports.Catalog, carts ports.CartSource) (*Aggregator, error) {
	if catalog == nil {
		return nil, errs.NewValueIsRequiredError("catalog")
	}
	if carts == nil {
		return nil, errs.NewValueIsRequiredError("cart source")
	}
	return &Aggregator{catalog: catalog, carts: carts}, nil
}

// BuildSnapshot prices the active cart of customerID at storeID with current catalog
// prices. Availability is checked against stock read through uow, so when called
// inside the order-creation transaction the check and the reservation see the same rows.
//
// Fails with:
//   - ValueIsInvalidError when the store or zip is inactive, a product is unavailable,
//     a quantity exceeds the per-order maximum, or the subtotal is below the minimum
//   - OutOfStockError when a line exceeds the currently available quantity
func (a *Aggregator) BuildSnapshot(
	ctx context.Context,
	uow ports.UnitOfWork,
	customerID, storeID kernel.UUID,
	now time.Time,
) (cart.Snapshot, error) {
	active, err := a.carts.ActiveCart(ctx, customerID, storeID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if len(active.Items) == 0 {
		return cart.Snapshot{}, errs.NewValueIsRequiredError("cart items")
	}

	store, err := a.catalog.GetStore(ctx, storeID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if !store.Active {
		return cart.Snapshot{}, errs.NewValueIsInvalidErrorWithCause("store", fmt.Errorf("store %s is not active", store.Name))
	}

	coverage, err := a.catalog.GetCoverage(ctx, storeID, active.Address.Zip)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if !coverage.Active {
		return cart.Snapshot{}, errs.NewValueIsInvalidErrorWithCause("delivery zip",
			fmt.Errorf("%s is not served by store %s", active.Address.Zip, store.Name))
	}

	address, err := buildAddress(active.Address)
	if err != nil {
		return cart.Snapshot{}, err
	}

	lines, err := a.priceLines(ctx, uow, store, active.Items)
	if err != nil {
		return cart.Snapshot{}, err
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	minimum := store.MinOrderAmount
	if coverage.MinOrderAmount != nil {
		minimum = *coverage.MinOrderAmount
	}
	if subtotal.LessThan(minimum) {
		return cart.Snapshot{}, errs.NewValueIsOutOfRangeError("subtotal", subtotal, minimum, "unbounded")
	}

	return cart.NewSnapshot(
		customerID,
		storeID,
		address,
		lines,
		charges(store, coverage, subtotal, active.Discount),
		active.SpecialInstructions,
		now,
	)
}

func (a *Aggregator) priceLines(
	ctx context.Context,
	uow ports.UnitOfWork,
	store ports.Store,
	items []ports.CartItem,
) ([]cart.LineItem, error) {
	productIDs := make([]kernel.UUID, 0, len(items))
	var ingredientIDs []kernel.UUID
	for _, item := range items {
		productIDs = append(productIDs, item.StoreProductID)
		for _, addOn := range item.AddOns {
			ingredientIDs = append(ingredientIDs, addOn.IngredientID)
		}
	}

	products, err := a.catalog.GetStoreProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	ingredients := map[kernel.UUID]ports.Ingredient{}
	if len(ingredientIDs) > 0 {
		if ingredients, err = a.catalog.GetIngredients(ctx, ingredientIDs); err != nil {
			return nil, err
		}
	}

	lines := make([]cart.LineItem, 0, len(items))
	for _, item := range items {
		product, ok := products[item.StoreProductID]
		if !ok || !product.StoreID.IsEqual(store.ID) {
			return nil, errs.NewObjectNotFoundError("store product", item.StoreProductID)
		}
		if !product.Available {
			return nil, errs.NewValueIsInvalidErrorWithCause("store product",
				fmt.Errorf("%s is not available", product.Name))
		}
		if product.MaxQuantityPerOrder > 0 && item.Quantity > product.MaxQuantityPerOrder {
			return nil, errs.NewValueIsOutOfRangeError("quantity of "+product.Name, item.Quantity, 1, product.MaxQuantityPerOrder)
		}

		stock, err := uow.StockRepository().Get(ctx, item.StoreProductID)
		if err != nil {
			if errors.Is(err, errs.ErrObjectNotFound) {
				return nil, errs.NewOutOfStockError(item.StoreProductID.String(), item.Quantity, 0)
			}
			return nil, err
		}
		if item.Quantity > stock.Available() {
			return nil, errs.NewOutOfStockError(item.StoreProductID.String(), item.Quantity, stock.Available())
		}

		addOns := make([]cart.AddOn, 0, len(item.AddOns))
		for _, requested := range item.AddOns {
			ingredient, ok := ingredients[requested.IngredientID]
			if !ok || !ingredient.Active {
				return nil, errs.NewObjectNotFoundError("ingredient", requested.IngredientID)
			}
			addOn, err := cart.NewAddOn(ingredient.ID, ingredient.Name, requested.Quantity, ingredient.Price)
			if err != nil {
				return nil, err
			}
			addOns = append(addOns, addOn)
		}

		line, err := cart.NewLineItem(product.ID, product.Name, item.Quantity, product.Price, addOns, item.SpecialInstructions)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// charges applies the delivery-fee rules: the zip's fee overrides the store's, and
// the fee is waived once the subtotal reaches the free-delivery threshold.
func charges(store ports.Store, coverage ports.Coverage, subtotal, discount decimal.Decimal) cart.Charges {
	fee := store.DeliveryFee
	if coverage.DeliveryFee != nil {
		fee = *coverage.DeliveryFee
	}
	if store.FreeDeliveryThreshold != nil && subtotal.GreaterThanOrEqual(*store.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}
	return cart.Charges{
		DeliveryFee: kernel.RoundMoney(fee),
		Tax:         kernel.Percentage(subtotal, store.TaxRate),
		Discount:    kernel.RoundMoney(discount),
	}
}

func buildAddress(a ports.DeliveryAddress) (cart.Address, error) {
	var location kernel.GeoPoint
	if a.Lat != nil && a.Lng != nil {
		point, err := kernel.NewGeoPoint(*a.Lat, *a.Lng)
		if err != nil {
			return cart.Address{}, err
		}
		location = point
	}
	return cart.NewAddress(a.Line1, a.Line2, a.City, a.Zip, location)
}

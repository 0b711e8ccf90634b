// Package catalog adapts the catalog and cart collaborators: a static in-process
// catalog for local runs and tests, and a read-only postgres catalog.
package catalog

import (
	"context"
	"sync"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

var _ ports.Catalog = (*StaticCatalog)(nil)

// StaticCatalog keeps stores, coverage, products and ingredients in memory.
type StaticCatalog struct {
	mu          sync.RWMutex
	stores      map[kernel.UUID]ports.Store
	coverage    map[coverageKey]ports.Coverage
	products    map[kernel.UUID]ports.StoreProduct
	ingredients map[kernel.UUID]ports.Ingredient
}

type coverageKey struct {
	storeID kernel.UUID
	zip     string
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		stores:      make(map[kernel.UUID]ports.Store),
		coverage:    make(map[coverageKey]ports.Coverage),
		products:    make(map[kernel.UUID]ports.StoreProduct),
		ingredients: make(map[kernel.UUID]ports.Ingredient),
	}
}

func (c *StaticCatalog) PutStore(s ports.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores[s.ID] = s
}

func (c *StaticCatalog) PutCoverage(cv ports.Coverage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coverage[coverageKey{storeID: cv.StoreID, zip: cv.Zip}] = cv
}

func (c *StaticCatalog) PutProduct(p ports.StoreProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *StaticCatalog) PutIngredient(i ports.Ingredient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingredients[i.ID] = i
}

func (c *StaticCatalog) GetStore(_ context.Context, storeID kernel.UUID) (ports.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stores[storeID]
	if !ok {
		return ports.Store{}, errs.NewObjectNotFoundError("store", storeID)
	}
	return s, nil
}

func (c *StaticCatalog) GetCoverage(_ context.Context, storeID kernel.UUID, zip string) (ports.Coverage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cv, ok := c.coverage[coverageKey{storeID: storeID, zip: zip}]
	if !ok {
		return ports.Coverage{}, errs.NewObjectNotFoundError("delivery zip", zip)
	}
	return cv, nil
}

// GetStoreProducts returns the known products among ids; unknown ids are omitted.
func (c *StaticCatalog) GetStoreProducts(_ context.Context, ids []kernel.UUID) (map[kernel.UUID]ports.StoreProduct, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[kernel.UUID]ports.StoreProduct, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *StaticCatalog) GetIngredients(_ context.Context, ids []kernel.UUID) (map[kernel.UUID]ports.Ingredient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[kernel.UUID]ports.Ingredient, len(ids))
	for _, id := range ids {
		if i, ok := c.ingredients[id]; ok {
			out[id] = i
		}
	}
	return out, nil
}

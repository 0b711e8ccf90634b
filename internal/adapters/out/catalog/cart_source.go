package catalog

import (
	"context"
	"sync"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

var _ ports.CartSource = (*MemoryCartSource)(nil)

// MemoryCartSource holds one active cart per customer and store.
type MemoryCartSource struct {
	mu    sync.Mutex
	carts map[cartKey]ports.Cart
}

type cartKey struct {
	customerID kernel.UUID
	storeID    kernel.UUID
}

func NewMemoryCartSource() *MemoryCartSource {
	return &MemoryCartSource{carts: make(map[cartKey]ports.Cart)}
}

func (s *MemoryCartSource) ActiveCart(_ context.Context, customerID, storeID kernel.UUID) (ports.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartKey{customerID: customerID, storeID: storeID}]
	if !ok {
		return ports.Cart{}, errs.NewObjectNotFoundError("cart", customerID)
	}
	c.Items = append([]ports.CartItem(nil), c.Items...)
	return c, nil
}

func (s *MemoryCartSource) Save(_ context.Context, c ports.Cart) error {
	if err := c.CustomerID.Validate(); err != nil {
		return err
	}
	if err := c.StoreID.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Items = append([]ports.CartItem(nil), c.Items...)
	s.carts[cartKey{customerID: c.CustomerID, storeID: c.StoreID}] = c
	return nil
}

func (s *MemoryCartSource) Clear(_ context.Context, customerID, storeID kernel.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartKey{customerID: customerID, storeID: storeID})
	return nil
}

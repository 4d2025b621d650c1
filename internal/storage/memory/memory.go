// Package memory implements the product and order stores in process memory.
// It backs the "memory" storage mode and the concurrency tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/payment-intake/internal/domain/order"
	"github.com/xenking/payment-intake/internal/domain/product"
)

var (
	_ product.Repository = (*Store)(nil)
	_ product.Writer     = (*Store)(nil)
	_ order.Repository   = (*Store)(nil)
	_ order.IDAllocator  = (*Store)(nil)
)

// Store is a mutex-guarded catalog and order book.
type Store struct {
	mu       sync.RWMutex
	products map[string]product.Product
	orders   map[int64]order.Order
	lastID   int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products: make(map[string]product.Product),
		orders:   make(map[int64]order.Order),
	}
}

// Upsert inserts or replaces a catalog entry.
func (s *Store) Upsert(_ context.Context, p product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// GetByID returns a single product by its identifier.
func (s *Store) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// Create stores o under o.ID and refuses to overwrite an existing order.
func (s *Store) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return order.ErrDuplicateID
	}
	s.orders[o.ID] = *o
	return nil
}

// MaxID returns the largest stored order id.
func (s *Store) MaxID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxStored(), nil
}

// NextID allocates max(last allocated, largest stored) + 1.
func (s *Store) NextID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID = max(s.lastID, s.maxStored()) + 1
	return s.lastID, nil
}

// Orders returns a snapshot of all orders sorted by id.
func (s *Store) Orders() []order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (s *Store) maxStored() int64 {
	var m int64
	for id := range s.orders {
		m = max(m, id)
	}
	return m
}

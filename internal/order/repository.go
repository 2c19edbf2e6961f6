package order

import (
	"context"
	"sync"
	"time"
)

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Save writes the full current state of o, history included.
	Save(ctx context.Context, o *Order) error
}

// MemoryRepository is an in-process Repository. It stores deep copies so
// callers observe the same persistence semantics as with a database.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*Order)}
}

func (r *MemoryRepository) Create(ctx context.Context, o *Order) error {
	if o == nil || o.ID == "" {
		return ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; exists {
		return ErrAlreadyExists
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, o *Order) error {
	if o == nil || o.ID == "" {
		return ErrInvalidID
	}
	o.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o.Clone()
	return nil
}

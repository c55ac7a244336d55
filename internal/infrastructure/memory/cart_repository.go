package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/stitchmall/ordercore/internal/domain/cart"
)

// CartRepository is an in-memory cart store. A user without a cart reads as
// an empty cart, matching the snapshot contract.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return &domain.Cart{UserID: userID}, nil
	}
	return c.Clone(), nil
}

// Put replaces a user's cart; used by fixtures and the external cart store boundary.
func (r *CartRepository) Put(ctx context.Context, c *domain.Cart) error {
	_ = ctx
	if c == nil || c.UserID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clone := c.Clone()
	clone.UpdatedAt = time.Now().UTC()
	r.carts[c.UserID] = clone
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil
	}
	c.Lines = nil
	c.UpdatedAt = time.Now().UTC()
	return nil
}

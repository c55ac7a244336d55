package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/stitchmall/ordercore/internal/domain/order"
)

// OrderRepository is an in-memory order store. Uniqueness of order numbers
// and payment transaction IDs is enforced under the write lock, mirroring
// the unique constraints a SQL backend applies on write.
type OrderRepository struct {
	mu            sync.RWMutex
	orders        map[string]*domain.Order
	byNumber      map[string]string // orderNumber -> order ID
	byTransaction map[string]string // transactionID -> order ID
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:        make(map[string]*domain.Order),
		byNumber:      make(map[string]string),
		byTransaction: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.byNumber[order.OrderNumber]; exists {
		return domain.ErrConflict
	}
	if txID := order.Payment.TransactionID; txID != "" {
		if _, exists := r.byTransaction[txID]; exists {
			return domain.ErrDuplicateTransaction
		}
	}

	r.orders[order.ID] = order.Clone()
	r.byNumber[order.OrderNumber] = order.ID
	if txID := order.Payment.TransactionID; txID != "" {
		r.byTransaction[txID] = order.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order, expectedStatus domain.Status) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if current.Status != expectedStatus {
		return domain.ErrConflict
	}
	if txID := order.Payment.TransactionID; txID != "" {
		if owner, taken := r.byTransaction[txID]; taken && owner != order.ID {
			return domain.ErrDuplicateTransaction
		}
	}

	r.orders[order.ID] = order.Clone()
	if txID := order.Payment.TransactionID; txID != "" {
		r.byTransaction[txID] = order.ID
	}
	return nil
}

func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	_ = ctx
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byTransaction[transactionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.byNumber[orderNumber]
	return exists, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		out = append(out, order.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

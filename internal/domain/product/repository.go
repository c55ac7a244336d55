package product

import "context"

// Repository persists products. DecrementStock and IncrementStock are the
// atomic check-and-mutate primitives the inventory ledger is built on: the
// read-compare-write sequence must not interleave with a concurrent caller.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	Save(ctx context.Context, p *Product) error

	// DecrementStock atomically subtracts quantity when the product exists,
	// is active, and has sufficient stock, returning the new stock value.
	// Failures map to ErrNotFound, ErrInactive, or ErrInsufficientStock.
	DecrementStock(ctx context.Context, id string, quantity int) (int, error)

	// IncrementStock atomically adds quantity back, returning the new stock
	// value. Fails with ErrNotFound for unknown products.
	IncrementStock(ctx context.Context, id string, quantity int) (int, error)
}

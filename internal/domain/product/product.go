package product

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInactive          = errors.New("product: not purchasable")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

// Product is owned by the catalog; this core only mutates Stock, and only
// through ledger reserve/release operations tied to an order.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     int64
	Stock     int
	IsActive  bool
	UpdatedAt time.Time
}

func New(id, sku, name string, price int64, stock int) (*Product, error) {
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:        id,
		SKU:       sku,
		Name:      name,
		Price:     price,
		Stock:     stock,
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reserve decrements stock after checking availability. Callers must hold
// whatever lock makes the check-and-decrement atomic.
func (p *Product) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.IsActive {
		return ErrInactive
	}
	if quantity > p.Stock {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

// Release returns previously reserved stock.
func (p *Product) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += quantity
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

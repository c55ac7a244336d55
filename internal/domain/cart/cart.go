package cart

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cart: not found")
	ErrEmpty    = errors.New("cart: no items to order")
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

// Line is a read-only order candidate taken from a user's cart. PriceAtAdd is
// informational only; order pricing is always re-derived from the catalog at
// reservation time.
type Line struct {
	ProductID    string
	Quantity     int
	SelectedSize string
	PriceAtAdd   int64
}

type Cart struct {
	UserID    string
	Lines     []Line
	UpdatedAt time.Time
}

// Clone returns an isolated snapshot of the cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line(nil), c.Lines...)
	return &clone
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/stitchmall/ordercore/internal/domain/cart"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Get returns the user's cart snapshot. A user with no cart rows gets an
// empty cart, not an error.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, selected_size, price_at_add, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart := &domain.Cart{UserID: userID}
	for rows.Next() {
		var line domain.Line
		var updatedAt time.Time
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.SelectedSize, &line.PriceAtAdd, &updatedAt); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
		if updatedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

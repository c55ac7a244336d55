package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/stitchmall/ordercore/internal/domain/product"
)

// ProductRepository persists products in Postgres. The conditional UPDATE in
// DecrementStock is the atomic check-and-decrement: two concurrent
// reservations on the last unit cannot both match the stock guard.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, sku, name, price, stock, is_active, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return p, nil
}

func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, price, stock, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE
		SET sku = EXCLUDED.sku, name = EXCLUDED.name, price = EXCLUDED.price,
		    stock = EXCLUDED.stock, is_active = EXCLUDED.is_active, updated_at = NOW()
	`, p.ID, p.SKU, p.Name, p.Price, p.Stock, p.IsActive)
	return err
}

func (r *ProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	var newStock int
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND stock >= $2
		RETURNING stock
	`, id, quantity).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// The guard did not match; diagnose which condition failed.
	var isActive bool
	var stock int
	derr := r.db.QueryRowContext(ctx, `
		SELECT is_active, stock FROM products WHERE id = $1
	`, id).Scan(&isActive, &stock)
	switch {
	case errors.Is(derr, sql.ErrNoRows):
		return 0, domain.ErrNotFound
	case derr != nil:
		return 0, derr
	case !isActive:
		return 0, domain.ErrInactive
	default:
		return 0, domain.ErrInsufficientStock
	}
}

func (r *ProductRepository) IncrementStock(ctx context.Context, id string, quantity int) (int, error) {
	var newStock int
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`, id, quantity).Scan(&newStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return newStock, nil
}

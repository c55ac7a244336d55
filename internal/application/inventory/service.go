package inventory

import (
	"context"
	"errors"
	"fmt"

	domproduct "github.com/stitchmall/ordercore/internal/domain/product"
	"github.com/stitchmall/ordercore/internal/observability"
	"github.com/stitchmall/ordercore/internal/observability/logctx"
)

const componentLedger = "inventory_ledger"

// Service is the inventory ledger: it owns every stock mutation in the system.
// Reserve and Release delegate the atomic check-and-mutate to the product
// repository so that concurrent reservations on the same product cannot both
// win the last unit.
type Service struct {
	products domproduct.Repository
	log      observability.Logger
}

func NewService(products domproduct.Repository, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		products: products,
		log:      logger.With(observability.F("component", componentLedger)),
	}
}

// Product returns the current catalog record, used by order creation to
// derive the price at reservation time.
func (s *Service) Product(ctx context.Context, productID string) (*domproduct.Product, error) {
	if productID == "" {
		return nil, domproduct.ErrNotFound
	}
	return s.products.Get(ctx, productID)
}

// Reserve atomically decrements stock for one order line and returns the new
// stock value. It does not roll back sibling reservations from the same
// request; that compensation belongs to the caller.
func (s *Service) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	if productID == "" {
		return 0, domproduct.ErrNotFound
	}
	if quantity <= 0 {
		return 0, domproduct.ErrInvalidQuantity
	}

	newStock, err := s.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return 0, fmt.Errorf("inventory: reserve %s: %w", productID, err)
	}

	logger := logctx.FromOr(ctx, s.log)
	logger.Debug("stock_reserved",
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
		observability.F("new_stock", newStock),
	)
	return newStock, nil
}

// Release returns reserved stock, used only as compensation for cancellation
// or a failed creation. The caller guards against double release via the
// order's terminal status check.
func (s *Service) Release(ctx context.Context, productID string, quantity int) (int, error) {
	if productID == "" {
		return 0, domproduct.ErrNotFound
	}
	if quantity <= 0 {
		return 0, domproduct.ErrInvalidQuantity
	}

	newStock, err := s.products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		if !errors.Is(err, domproduct.ErrNotFound) {
			err = fmt.Errorf("inventory: release %s: %w", productID, err)
		}
		return 0, err
	}

	logger := logctx.FromOr(ctx, s.log)
	logger.Debug("stock_released",
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
		observability.F("new_stock", newStock),
	)
	return newStock, nil
}

package order

import (
	"context"

	dompayment "github.com/stitchmall/ordercore/internal/domain/payment"
	domproduct "github.com/stitchmall/ordercore/internal/domain/product"
)

type IDGenerator interface {
	NewID() string
}

// NumberAllocator produces human-readable order numbers. Best-effort unique;
// the repository constraint is the final arbiter.
type NumberAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// InventoryLedger is the only party allowed to mutate stock.
type InventoryLedger interface {
	Product(ctx context.Context, productID string) (*domproduct.Product, error)
	Reserve(ctx context.Context, productID string, quantity int) (int, error)
	Release(ctx context.Context, productID string, quantity int) (int, error)
}

// Verifier confirms an external transaction against the expected total.
// A nil result with nil error signals a policy-sanctioned skip.
type Verifier interface {
	Verify(ctx context.Context, transactionID string, expectedAmount int64) (*dompayment.VerifiedPayment, error)
}

package order

import "context"

// Repository persists orders. Insert must enforce uniqueness of ID,
// OrderNumber, and Payment.TransactionID: a violated order number returns
// ErrConflict, a violated transaction ID returns ErrDuplicateTransaction.
// That constraint is the authoritative guard when concurrent requests race
// past the application-level pre-checks.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)

	// Update persists a transition as a compare-and-set on the previously
	// loaded status: when the stored status no longer matches expectedStatus
	// the write is rejected with ErrConflict, so two racing transitions
	// cannot both apply. Transaction ID uniqueness holds on update too.
	Update(ctx context.Context, order *Order, expectedStatus Status) error

	FindByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
}

package payment

import (
	"context"
	"errors"
)

var (
	ErrAmountMismatch = errors.New("payment: verified amount does not match order total")
	ErrNotPaid        = errors.New("payment: transaction is not in a paid state")
	ErrGateway        = errors.New("payment: gateway unavailable")
)

// StatusPaid is the oracle-side status that marks a settled transaction.
const StatusPaid = "paid"

// VerifiedPayment is the oracle's view of a transaction.
type VerifiedPayment struct {
	TransactionID string
	Amount        int64
	Status        string
}

// Oracle looks up a transaction at the external payment gateway. It is an
// opaque verification source; protocol details stay behind this port.
// Implementations must bound the call with a timeout and surface transport
// failures as ErrGateway.
type Oracle interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*VerifiedPayment, error)
}

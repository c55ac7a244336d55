package payment

import (
	"context"
	"errors"
	"fmt"

	domorder "github.com/stitchmall/ordercore/internal/domain/order"
	dompayment "github.com/stitchmall/ordercore/internal/domain/payment"
	"github.com/stitchmall/ordercore/internal/observability"
	"github.com/stitchmall/ordercore/internal/observability/logctx"
)

const componentVerifier = "payment_verifier"

// Policy decides what happens when the payment oracle cannot be reached.
type Policy string

const (
	// PolicyStrict aborts order creation on any gateway failure.
	PolicyStrict Policy = "strict"
	// PolicyPermissive lets order creation proceed unverified when the
	// gateway fails. Every use is logged at warn level; the resulting order
	// stays pending with its payment unconfirmed.
	PolicyPermissive Policy = "permissive"
)

// Service verifies that an externally settled transaction matches the order
// being created, and enforces at-most-once consumption of a transaction ID.
type Service struct {
	oracle dompayment.Oracle
	orders domorder.Repository
	policy Policy
	log    observability.Logger
}

func NewService(oracle dompayment.Oracle, orders domorder.Repository, policy Policy, logger observability.Logger) *Service {
	if policy != PolicyPermissive {
		policy = PolicyStrict
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		oracle: oracle,
		orders: orders,
		policy: policy,
		log:    logger.With(observability.F("component", componentVerifier)),
	}
}

func (s *Service) PolicyInEffect() Policy { return s.policy }

// Verify checks a transaction against the expected order total.
//
// The duplicate pre-check runs before the oracle is contacted; a transaction
// ID already attached to a persisted order fails fast. A nil result with a
// nil error means verification was skipped under the permissive policy and
// the order must be treated as unverified.
func (s *Service) Verify(ctx context.Context, transactionID string, expectedAmount int64) (*dompayment.VerifiedPayment, error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("transaction_id", transactionID))

	if transactionID == "" {
		return nil, dompayment.ErrNotPaid
	}

	existing, err := s.orders.FindByTransactionID(ctx, transactionID)
	switch {
	case err == nil && existing != nil:
		logger.Warn("duplicate_transaction_rejected",
			observability.F("order_id", existing.ID),
		)
		return nil, domorder.ErrDuplicateTransaction
	case err != nil && !errors.Is(err, domorder.ErrNotFound):
		return nil, fmt.Errorf("payment: duplicate pre-check: %w", err)
	}

	verified, err := s.oracle.VerifyTransaction(ctx, transactionID)
	if err != nil {
		if s.policy == PolicyPermissive {
			// Security-relevant degradation: the order proceeds without a
			// confirmed payment. Must never be silent.
			logger.Warn("payment_verification_skipped",
				observability.F("policy", string(s.policy)),
				observability.F("error", err.Error()),
			)
			return nil, nil
		}
		logger.Error("payment_verification_failed", observability.F("error", err.Error()))
		if errors.Is(err, dompayment.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", dompayment.ErrGateway, err)
	}

	if verified.Amount != expectedAmount {
		logger.Error("payment_amount_mismatch",
			observability.F("expected", expectedAmount),
			observability.F("actual", verified.Amount),
		)
		return nil, dompayment.ErrAmountMismatch
	}

	if verified.Status != dompayment.StatusPaid {
		logger.Warn("payment_not_paid", observability.F("status", verified.Status))
		return nil, dompayment.ErrNotPaid
	}

	logger.Info("payment_verified", observability.F("amount", verified.Amount))
	return verified, nil
}

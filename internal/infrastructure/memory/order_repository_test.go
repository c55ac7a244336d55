package memory

import (
	"context"
	"errors"
	"testing"

	domain "github.com/stitchmall/ordercore/internal/domain/order"
)

func fixtureOrder(t *testing.T, id, number, userID, txID string) *domain.Order {
	t.Helper()
	o, err := domain.New(id, number, userID,
		[]domain.LineItem{{ProductID: "p1", Quantity: 1, PriceAtOrder: 10000, Subtotal: 10000}},
		domain.ShippingInfo{RecipientName: "Kim Minji"},
		domain.Payment{Method: domain.MethodCard, Status: domain.PaymentPending, TransactionID: txID},
		domain.StatusConfirmed)
	if err != nil {
		t.Fatalf("fixture order failed: %v", err)
	}
	return o
}

func TestOrderRepositoryInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips an order", func(t *testing.T) {
		repo := NewOrderRepository()
		o := fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "")

		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		got, err := repo.Get(ctx, "o1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.OrderNumber != o.OrderNumber || got.UserID != o.UserID {
			t.Errorf("round-trip mismatch: %+v", got)
		}

		// Stored copies must be isolated from caller mutations.
		o.Items[0].Quantity = 42
		got2, _ := repo.Get(ctx, "o1")
		if got2.Items[0].Quantity == 42 {
			t.Error("stored order shares memory with the caller")
		}
	})

	t.Run("rejects duplicate ids and numbers", func(t *testing.T) {
		repo := NewOrderRepository()
		if err := repo.Insert(ctx, fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		if err := repo.Insert(ctx, fixtureOrder(t, "o1", "ORD-20260901-10002", "user-1", "")); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("duplicate id: expected ErrConflict, got %v", err)
		}
		if err := repo.Insert(ctx, fixtureOrder(t, "o2", "ORD-20260901-10001", "user-1", "")); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("duplicate number: expected ErrConflict, got %v", err)
		}
	})

	t.Run("rejects a consumed transaction id", func(t *testing.T) {
		repo := NewOrderRepository()
		if err := repo.Insert(ctx, fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "imp_1")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		err := repo.Insert(ctx, fixtureOrder(t, "o2", "ORD-20260901-10002", "user-2", "imp_1"))
		if !errors.Is(err, domain.ErrDuplicateTransaction) {
			t.Errorf("expected ErrDuplicateTransaction, got %v", err)
		}
	})
}

func TestOrderRepositoryUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("applies when the expected status matches", func(t *testing.T) {
		repo := NewOrderRepository()
		o := fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "")
		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		if err := o.Cancel("test"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if err := repo.Update(ctx, o, domain.StatusConfirmed); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		got, _ := repo.Get(ctx, "o1")
		if got.Status != domain.StatusCancelled {
			t.Errorf("expected cancelled, got %s", got.Status)
		}
	})

	t.Run("rejects a stale expected status", func(t *testing.T) {
		repo := NewOrderRepository()
		o := fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "")
		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		first := o.Clone()
		_ = first.Cancel("first")
		if err := repo.Update(ctx, first, domain.StatusConfirmed); err != nil {
			t.Fatalf("first update failed: %v", err)
		}

		second := o.Clone()
		_ = second.Cancel("second")
		if err := repo.Update(ctx, second, domain.StatusConfirmed); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("rejects stealing another order's transaction", func(t *testing.T) {
		repo := NewOrderRepository()
		if err := repo.Insert(ctx, fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "imp_1")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		o2 := fixtureOrder(t, "o2", "ORD-20260901-10002", "user-2", "")
		if err := repo.Insert(ctx, o2); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		_ = o2.CompletePayment("imp_1")
		if err := repo.Update(ctx, o2, domain.StatusConfirmed); !errors.Is(err, domain.ErrDuplicateTransaction) {
			t.Errorf("expected ErrDuplicateTransaction, got %v", err)
		}
	})

	t.Run("unknown order maps to not found", func(t *testing.T) {
		repo := NewOrderRepository()
		o := fixtureOrder(t, "ghost", "ORD-20260901-10001", "user-1", "")
		if err := repo.Update(ctx, o, domain.StatusConfirmed); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestOrderRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	if err := repo.Insert(ctx, fixtureOrder(t, "o1", "ORD-20260901-10001", "user-1", "imp_1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.Insert(ctx, fixtureOrder(t, "o2", "ORD-20260901-10002", "user-2", "")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	t.Run("finds by transaction id", func(t *testing.T) {
		got, err := repo.FindByTransactionID(ctx, "imp_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "o1" {
			t.Errorf("expected o1, got %s", got.ID)
		}
		if _, err := repo.FindByTransactionID(ctx, "imp_none"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reports order number existence", func(t *testing.T) {
		exists, err := repo.OrderNumberExists(ctx, "ORD-20260901-10001")
		if err != nil || !exists {
			t.Errorf("expected existing number, got exists=%v err=%v", exists, err)
		}
		exists, err = repo.OrderNumberExists(ctx, "ORD-20260901-99999")
		if err != nil || exists {
			t.Errorf("expected missing number, got exists=%v err=%v", exists, err)
		}
	})

	t.Run("lists per user and overall", func(t *testing.T) {
		mine, err := repo.ListByUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("list by user failed: %v", err)
		}
		if len(mine) != 1 || mine[0].ID != "o1" {
			t.Errorf("unexpected user listing: %+v", mine)
		}

		all, err := repo.ListAll(ctx)
		if err != nil {
			t.Fatalf("list all failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 orders, got %d", len(all))
		}
	})
}

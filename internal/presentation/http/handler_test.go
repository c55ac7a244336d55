package httppresentation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appinventory "github.com/stitchmall/ordercore/internal/application/inventory"
	apporder "github.com/stitchmall/ordercore/internal/application/order"
	dompayment "github.com/stitchmall/ordercore/internal/domain/payment"
	domproduct "github.com/stitchmall/ordercore/internal/domain/product"
	"github.com/stitchmall/ordercore/internal/infrastructure/id"
	"github.com/stitchmall/ordercore/internal/infrastructure/memory"
	"github.com/stitchmall/ordercore/internal/infrastructure/ordernum"
	"github.com/stitchmall/ordercore/internal/observability"
)

type verifierFunc func(ctx context.Context, txID string, amount int64) (*dompayment.VerifiedPayment, error)

func (f verifierFunc) Verify(ctx context.Context, txID string, amount int64) (*dompayment.VerifiedPayment, error) {
	return f(ctx, txID, amount)
}

func alwaysPaid(_ context.Context, txID string, amount int64) (*dompayment.VerifiedPayment, error) {
	return &dompayment.VerifiedPayment{TransactionID: txID, Amount: amount, Status: dompayment.StatusPaid}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *memory.ProductRepository) {
	t.Helper()

	orders := memory.NewOrderRepository()
	products := memory.NewProductRepository()
	carts := memory.NewCartRepository()

	tee, err := domproduct.New("p1", "SKU-TEE", "Basic Tee", 10000, 5)
	if err != nil {
		t.Fatalf("fixture product failed: %v", err)
	}
	if err := products.Save(context.Background(), tee); err != nil {
		t.Fatalf("fixture save failed: %v", err)
	}

	svc := apporder.NewService(
		orders, carts,
		appinventory.NewService(products, nil),
		verifierFunc(alwaysPaid),
		ordernum.New(orders),
		id.NewUUIDGenerator(),
		nil,
		nil,
	)
	return NewHandler(svc, observability.NopLogger(), observability.Nop()).Router(), products
}

func doJSON(t *testing.T, router http.Handler, method, target, userID, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"items": [{"product_id": "p1", "quantity": 2}],
	"shipping": {
		"recipient_name": "Kim Minji",
		"recipient_phone": "010-1234-5678",
		"address": "12 Teheran-ro, Gangnam-gu, Seoul"
	},
	"payment_method": "card"
}`

func createTestOrder(t *testing.T, router http.Handler, userID string) orderResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/orders", userID, "", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func TestCreateOrderEndpoint(t *testing.T) {
	t.Run("creates an order", func(t *testing.T) {
		router, products := newTestRouter(t)
		resp := createTestOrder(t, router, "user-1")

		if resp.Status != "confirmed" {
			t.Errorf("expected confirmed, got %s", resp.Status)
		}
		if resp.ItemsTotal != 20000 {
			t.Errorf("expected items total 20000, got %d", resp.ItemsTotal)
		}
		if !strings.HasPrefix(resp.OrderNumber, "ORD-") {
			t.Errorf("unexpected order number: %s", resp.OrderNumber)
		}
		p, _ := products.Get(context.Background(), "p1")
		if p.Stock != 3 {
			t.Errorf("expected stock 3, got %d", p.Stock)
		}
	})

	t.Run("requires identity", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodPost, "/api/orders", "", "", createBody)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodPost, "/api/orders", "user-1", "", `{"items":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("empty cart and no items is a bad request", func(t *testing.T) {
		router, _ := newTestRouter(t)
		body := strings.Replace(createBody, `"items": [{"product_id": "p1", "quantity": 2}],`, "", 1)
		rec := doJSON(t, router, http.MethodPost, "/api/orders", "user-1", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("insufficient stock is a conflict", func(t *testing.T) {
		router, _ := newTestRouter(t)
		body := strings.Replace(createBody, `"quantity": 2`, `"quantity": 50`, 1)
		rec := doJSON(t, router, http.MethodPost, "/api/orders", "user-1", "", body)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad phone number is a bad request", func(t *testing.T) {
		router, _ := newTestRouter(t)
		body := strings.Replace(createBody, "010-1234-5678", "02-123-4567", 1)
		rec := doJSON(t, router, http.MethodPost, "/api/orders", "user-1", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGetOrderEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createTestOrder(t, router, "user-1")

	t.Run("owner reads own order", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders/"+created.ID, "user-1", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.ID != created.ID {
			t.Errorf("expected %s, got %s", created.ID, resp.ID)
		}
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders/"+created.ID, "user-2", "", "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin reads any order", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders/"+created.ID, "ops-1", "admin", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders/missing", "user-1", "", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestListEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	createTestOrder(t, router, "user-1")

	t.Run("lists the requester's orders", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders", "user-1", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp orderListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Total != 1 {
			t.Errorf("expected 1 order, got %d", resp.Total)
		}
	})

	t.Run("admin listing is forbidden for customers", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders/admin/all", "user-1", "", "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin listing returns every order", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/orders/admin/all", "ops-1", "admin", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp orderListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Total != 1 {
			t.Errorf("expected 1 order, got %d", resp.Total)
		}
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	t.Run("cancel releases the order", func(t *testing.T) {
		router, products := newTestRouter(t)
		created := createTestOrder(t, router, "user-1")

		rec := doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/cancel", "user-1", "", `{"reason":"wrong size"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Status != "cancelled" {
			t.Errorf("expected cancelled, got %s", resp.Status)
		}
		if resp.Cancellation == nil || resp.Cancellation.CancelReason != "wrong size" {
			t.Errorf("cancellation not recorded: %+v", resp.Cancellation)
		}
		p, _ := products.Get(context.Background(), "p1")
		if p.Stock != 5 {
			t.Errorf("expected stock restored to 5, got %d", p.Stock)
		}

		// Second cancel conflicts.
		rec = doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/cancel", "user-1", "", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("admin walks the order to delivered", func(t *testing.T) {
		router, _ := newTestRouter(t)
		created := createTestOrder(t, router, "user-1")

		rec := doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/status", "ops-1", "admin", `{"status":"preparing"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status update returned %d: %s", rec.Code, rec.Body.String())
		}

		rec = doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/shipping", "ops-1", "admin", `{"carrier":"CJ Logistics","tracking_number":"1234567890"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("shipping returned %d: %s", rec.Code, rec.Body.String())
		}
		var shipped orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &shipped); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if shipped.Tracking == nil || shipped.Tracking.TrackingNumber != "1234567890" {
			t.Errorf("tracking not recorded: %+v", shipped.Tracking)
		}

		rec = doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/delivery", "ops-1", "admin", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery returned %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("lifecycle endpoints reject customers", func(t *testing.T) {
		router, _ := newTestRouter(t)
		created := createTestOrder(t, router, "user-1")

		rec := doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/status", "user-1", "", `{"status":"preparing"}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("payment completion records the transaction", func(t *testing.T) {
		router, _ := newTestRouter(t)
		created := createTestOrder(t, router, "user-1")

		rec := doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/payment", "ops-1", "admin", `{"transaction_id":"imp_42"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp orderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Payment.Status != "completed" || resp.Payment.TransactionID != "imp_42" {
			t.Errorf("payment not recorded: %+v", resp.Payment)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

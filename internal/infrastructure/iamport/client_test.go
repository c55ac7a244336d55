package iamport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/stitchmall/ordercore/internal/domain/payment"
)

func gatewayStub(t *testing.T, paymentStatus int, paymentBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users/getToken":
			var creds map[string]string
			if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
				t.Errorf("bad token payload: %v", err)
			}
			if creds["imp_key"] != "key-1" || creds["imp_secret"] != "secret-1" {
				t.Errorf("unexpected credentials: %v", creds)
			}
			_, _ = w.Write([]byte(`{"response":{"access_token":"token-abc"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/payments/imp_123":
			if got := r.Header.Get("Authorization"); got != "token-abc" {
				t.Errorf("expected bearer token, got %q", got)
			}
			w.WriteHeader(paymentStatus)
			_, _ = w.Write([]byte(paymentBody))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestVerifyTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the gateway's view of the payment", func(t *testing.T) {
		srv := gatewayStub(t, http.StatusOK, `{"response":{"imp_uid":"imp_123","amount":25000,"status":"paid"}}`)
		defer srv.Close()

		client := NewClient(srv.URL, "key-1", "secret-1", WithHTTPClient(srv.Client()))
		verified, err := client.VerifyTransaction(ctx, "imp_123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if verified.TransactionID != "imp_123" {
			t.Errorf("expected imp_123, got %s", verified.TransactionID)
		}
		if verified.Amount != 25000 {
			t.Errorf("expected amount 25000, got %d", verified.Amount)
		}
		if verified.Status != "paid" {
			t.Errorf("expected paid, got %s", verified.Status)
		}
	})

	t.Run("wraps lookup failures as gateway errors", func(t *testing.T) {
		srv := gatewayStub(t, http.StatusNotFound, `{"response":null}`)
		defer srv.Close()

		client := NewClient(srv.URL, "key-1", "secret-1", WithHTTPClient(srv.Client()))
		if _, err := client.VerifyTransaction(ctx, "imp_123"); !errors.Is(err, domain.ErrGateway) {
			t.Errorf("expected ErrGateway, got %v", err)
		}
	})

	t.Run("wraps token failures as gateway errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "bad", "bad", WithHTTPClient(srv.Client()))
		if _, err := client.VerifyTransaction(ctx, "imp_123"); !errors.Is(err, domain.ErrGateway) {
			t.Errorf("expected ErrGateway, got %v", err)
		}
	})

	t.Run("wraps unreachable gateways", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", "key-1", "secret-1")
		if _, err := client.VerifyTransaction(ctx, "imp_123"); !errors.Is(err, domain.ErrGateway) {
			t.Errorf("expected ErrGateway, got %v", err)
		}
	})
}

package product

import (
	"errors"
	"testing"
)

func TestReserve(t *testing.T) {
	t.Run("decrements stock", func(t *testing.T) {
		p, err := New("p1", "SKU-1", "Basic Tee", 15000, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := p.Reserve(2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Stock != 3 {
			t.Errorf("expected stock 3, got %d", p.Stock)
		}
	})

	t.Run("rejects more than available", func(t *testing.T) {
		p, _ := New("p1", "SKU-1", "Basic Tee", 15000, 1)
		if err := p.Reserve(2); !errors.Is(err, ErrInsufficientStock) {
			t.Errorf("expected ErrInsufficientStock, got %v", err)
		}
		if p.Stock != 1 {
			t.Errorf("failed reserve must not change stock, got %d", p.Stock)
		}
	})

	t.Run("rejects inactive products", func(t *testing.T) {
		p, _ := New("p1", "SKU-1", "Basic Tee", 15000, 5)
		p.IsActive = false
		if err := p.Reserve(1); !errors.Is(err, ErrInactive) {
			t.Errorf("expected ErrInactive, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		p, _ := New("p1", "SKU-1", "Basic Tee", 15000, 5)
		if err := p.Reserve(0); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

func TestRelease(t *testing.T) {
	p, _ := New("p1", "SKU-1", "Basic Tee", 15000, 3)
	if err := p.Release(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 5 {
		t.Errorf("expected stock 5, got %d", p.Stock)
	}
	if err := p.Release(-1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

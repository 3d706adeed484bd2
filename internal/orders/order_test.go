package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewOrderValidation(t *testing.T) {
	ok := Item{ProductID: "p1", Name: "Eevee Plush", Price: decimal.RequireFromString("32.99"), Quantity: 1}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		userID  string
		items   []Item
		total   decimal.Decimal
		wantErr error
	}{
		{"valid", "u1", []Item{ok}, decimal.RequireFromString("32.99"), nil},
		{"empty cart", "u1", nil, decimal.Zero, ErrEmptyCart},
		{"empty cart wins over missing user", "", nil, decimal.Zero, ErrEmptyCart},
		{"missing user", "", []Item{ok}, decimal.Zero, ErrValidation},
		{"negative total", "u1", []Item{ok}, decimal.NewFromInt(-1), ErrValidation},
		{"zero quantity", "u1", []Item{{ProductID: "p1", Quantity: 0}}, decimal.Zero, ErrValidation},
		{"missing product", "u1", []Item{{Quantity: 1}}, decimal.Zero, ErrValidation},
		{"negative price", "u1", []Item{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(-5)}}, decimal.Zero, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := New("o1", tt.userID, tt.items, tt.total, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if o.Status != StatusPending {
				t.Errorf("expected pending status, got %s", o.Status)
			}
			if !o.CreatedAt.Equal(now) {
				t.Errorf("expected created_at %v, got %v", now, o.CreatedAt)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	if !StatusPending.Valid() {
		t.Error("expected pending to be a valid status")
	}
	if Status("shipped").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if CanTransition(StatusPending, Status("shipped")) {
		t.Error("expected no transition out of pending")
	}
}

func TestCompensationErrorDoesNotUnwrapCause(t *testing.T) {
	cause := &InsufficientStockError{Item: "Gengar Plush"}
	err := error(&CompensationError{OrderID: "o1", Cause: cause})

	if !errors.Is(err, ErrCompensationFailed) {
		t.Error("expected ErrCompensationFailed")
	}
	if errors.Is(err, ErrInsufficientStock) {
		t.Error("expected compensation error not to match the original cause")
	}
}

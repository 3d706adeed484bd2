package orders

import (
	"errors"
	"fmt"

	"github.com/lMordhel/Poke-Web/internal/inventory"
)

var (
	ErrEmptyCart         = errors.New("orders: cart is empty")
	ErrValidation        = errors.New("orders: invalid order")
	ErrInsufficientStock = errors.New("orders: insufficient stock")
	ErrPersistence       = errors.New("orders: persist order")
	ErrInventory         = errors.New("orders: inventory unavailable")
	// ErrCompensationFailed is matched by *CompensationError only. It never
	// wraps the placement failure that triggered the compensation.
	ErrCompensationFailed = errors.New("orders: compensation failed")
	ErrNotFound           = errors.New("orders: order not found")
	ErrConflict           = errors.New("orders: order already exists")
	ErrIntentNotFound     = errors.New("orders: intent not found")
)

// InsufficientStockError names the line item that could not be reserved.
type InsufficientStockError struct {
	Item      string
	ProductID string
	Size      string
}

func (e *InsufficientStockError) Error() string {
	if e.Size != "" {
		return fmt.Sprintf("orders: insufficient stock for %q size %s", e.Item, e.Size)
	}
	return fmt.Sprintf("orders: insufficient stock for %q", e.Item)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// CompensationError reports that at least one reserved line could not be
// put back. Cause is the failure that started the compensation.
type CompensationError struct {
	OrderID string
	Cause   error
	Err     *inventory.RestoreError
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("orders: compensation failed for order %s (cause: %v): %v", e.OrderID, e.Cause, e.Err)
}

func (e *CompensationError) Unwrap() error { return ErrCompensationFailed }

// FailedSteps returns the reservations left outstanding in the store.
func (e *CompensationError) FailedSteps() []inventory.Reservation {
	if e.Err == nil {
		return nil
	}
	return e.Err.Steps()
}

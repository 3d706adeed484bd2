package inventory

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means no product matched the id, size and requested
	// quantity at the moment of the conditional update.
	ErrUnavailable     = errors.New("inventory: product, variant or stock unavailable")
	ErrNotFound        = errors.New("inventory: product or variant not found")
	ErrInvalidQuantity = errors.New("inventory: quantity must be greater than zero")
)

// Store holds per-product stock records. Both operations are atomic with
// respect to a single product record and nothing more.
type Store interface {
	// ConditionalDecrement subtracts quantity from the counter addressed by
	// size ("" for flat stock) and adds it to sold_count, only if the counter
	// holds at least quantity. It returns the updated product or ErrUnavailable.
	ConditionalDecrement(ctx context.Context, productID string, quantity int, size string) (*Product, error)
	// Restore adds quantity back to the counter and subtracts it from
	// sold_count. It returns ErrNotFound when the record or variant is gone.
	Restore(ctx context.Context, productID string, quantity int, size string) error
}

// Seeder writes whole product records. Catalog management owns this path;
// the placement core never calls it.
type Seeder interface {
	Put(ctx context.Context, p *Product) error
}

// Line is one line item to reserve.
type Line struct {
	ProductID string
	Name      string
	Quantity  int
	Size      string
}

// Ref names the line for error messages.
func (l Line) Ref() string {
	if l.Name != "" {
		return l.Name
	}
	return l.ProductID
}

// Reservation is a committed decrement, the unit the compensation replays.
type Reservation struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

// Journal tracks the reservations of one saga that are still outstanding.
// A step is restored only by the caller whose Release removed it, so a step
// is never put back twice.
type Journal interface {
	// Reserved records r as outstanding.
	Reserved(ctx context.Context, r Reservation) error
	// Release removes one outstanding step equal to r and reports whether
	// it was there.
	Release(ctx context.Context, r Reservation) (bool, error)
}

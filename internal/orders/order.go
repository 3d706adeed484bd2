package orders

import (
	"fmt"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/shopspring/decimal"
)

// Item is a snapshot of a cart line at the time the order was placed.
type Item struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Type      string          `json:"type"`
	Img       string          `json:"img"`
	Size      string          `json:"size,omitempty"`
}

func (it Item) Line() inventory.Line {
	return inventory.Line{
		ProductID: it.ProductID,
		Name:      it.Name,
		Quantity:  it.Quantity,
		Size:      it.Size,
	}
}

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// New validates the input and builds a pending order. Unit prices and the
// total are taken from the cart as submitted.
func New(id, userID string, items []Item, total decimal.Decimal, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: total must not be negative", ErrValidation)
	}
	for i, it := range items {
		switch {
		case it.ProductID == "":
			return nil, fmt.Errorf("%w: item %d has no product id", ErrValidation, i)
		case it.Quantity <= 0:
			return nil, fmt.Errorf("%w: item %q quantity must be greater than zero", ErrValidation, it.Name)
		case it.Price.IsNegative():
			return nil, fmt.Errorf("%w: item %q price must not be negative", ErrValidation, it.Name)
		}
	}

	return &Order{
		ID:        id,
		UserID:    userID,
		Items:     append([]Item(nil), items...),
		Total:     total,
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}, nil
}

// Lines returns the reservation lines of the order in item order.
func (o *Order) Lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, it.Line())
	}
	return lines
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

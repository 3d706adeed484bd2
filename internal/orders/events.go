package orders

import (
	"encoding/json"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventCompensationFailed = "CompensationFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Items     []ItemQty `json:"items"`
	Total     string    `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

type CompensationFailedPayload struct {
	OrderID     string                  `json:"order_id"`
	UserID      string                  `json:"user_id"`
	Cause       string                  `json:"cause"`
	FailedSteps []inventory.Reservation `json:"failed_steps"`
}

func NewOrderPlacedPayload(o *Order) OrderPlacedPayload {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Size: it.Size, Qty: it.Quantity})
	}
	return OrderPlacedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Items:     items,
		Total:     o.Total.String(),
		CreatedAt: o.CreatedAt,
	}
}

func NewCompensationFailedPayload(o *Order, cerr *CompensationError) CompensationFailedPayload {
	cause := ""
	if cerr.Cause != nil {
		cause = cerr.Cause.Error()
	}
	return CompensationFailedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Cause:       cause,
		FailedSteps: cerr.FailedSteps(),
	}
}

package orders

import "context"

// Store persists placed orders. The id is assigned before Insert.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	// FindByUser returns the user's orders newest first. limit <= 0 means
	// no limit.
	FindByUser(ctx context.Context, userID string, limit int) ([]*Order, error)
	FindByID(ctx context.Context, id string) (*Order, error)
}

// Strategy commits a validated order: reserve every line, then persist.
// On failure no order is visible and every reservation has been undone, or
// a *CompensationError says which could not be.
type Strategy interface {
	Commit(ctx context.Context, o *Order) error
}

// Publisher announces placement outcomes to the rest of the system.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
	CompensationFailed(ctx context.Context, o *Order, cerr *CompensationError) error
}

type nopPublisher struct{}

func (nopPublisher) OrderPlaced(context.Context, *Order) error { return nil }

func (nopPublisher) CompensationFailed(context.Context, *Order, *CompensationError) error {
	return nil
}

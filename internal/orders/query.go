package orders

import (
	"context"
	"errors"
	"fmt"
)

// Query is the read side over placed orders.
type Query struct {
	store Store
}

func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// ListByUser returns up to limit orders of userID, newest first.
func (q *Query) ListByUser(ctx context.Context, userID string, limit int) ([]*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	list, err := q.store.FindByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %w", ErrPersistence, err)
	}
	sortNewestFirst(list)
	return list, nil
}

// Get returns one order of userID. Orders of other users read as not found.
func (q *Query) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	o, err := q.store.FindByID(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %w", ErrPersistence, err)
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

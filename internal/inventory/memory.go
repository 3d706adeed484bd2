package inventory

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. The mutex makes every call atomic per
// record; no lock is held between calls.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]*Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
	}
}

func (s *MemoryStore) Put(_ context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, productID string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ConditionalDecrement(ctx context.Context, productID string, quantity int, size string) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, ErrUnavailable
	}
	if !adjust(p, size, -quantity) {
		return nil, ErrUnavailable
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Restore(ctx context.Context, productID string, quantity int, size string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return ErrNotFound
	}
	if !adjust(p, size, quantity) {
		return ErrNotFound
	}
	return nil
}

// adjust applies delta to the addressed counter and -delta to sold_count.
// Decrements that would drive the counter below zero are refused; sold_count
// never drops below zero.
func adjust(p *Product, size string, delta int) bool {
	switch s := p.Stock.(type) {
	case FlatStock:
		if size != "" || s.Stock+delta < 0 {
			return false
		}
		s.Stock += delta
		p.Stock = s
	case VariantList:
		i := s.Index(size)
		if size == "" || i < 0 || s[i].Stock+delta < 0 {
			return false
		}
		s[i].Stock += delta
	default:
		return false
	}
	p.SoldCount = max(p.SoldCount-delta, 0)
	return true
}

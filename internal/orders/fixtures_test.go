package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	stock   *inventory.MemoryStore
	orders  *MemoryStore
	intents *MemoryIntentLog
	events  *recordingPublisher
}

func newFixture(t *testing.T, products ...*inventory.Product) *fixture {
	t.Helper()
	f := &fixture{
		stock:   inventory.NewMemoryStore(),
		orders:  NewMemoryStore(),
		intents: NewMemoryIntentLog(),
		events:  &recordingPublisher{},
	}
	if err := inventory.Seed(context.Background(), f.stock, products); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func (f *fixture) placer(stock inventory.Store, store Store, opts ...Option) *Placer {
	if stock == nil {
		stock = f.stock
	}
	if store == nil {
		store = f.orders
	}
	strategy := NewSagaStrategy(stock, store, f.intents, nil, nil)
	return NewPlacer(strategy, f.events, nil, nil, opts...)
}

func (f *fixture) available(t *testing.T, id, size string) (int, int) {
	t.Helper()
	p, err := f.stock.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	n, ok := p.Available(size)
	if !ok {
		t.Fatalf("no counter for %s/%s", id, size)
	}
	return n, p.SoldCount
}

func flat(id string, stock int) *inventory.Product {
	return &inventory.Product{ID: id, Name: id, Stock: inventory.FlatStock{Price: decimal.NewFromInt(10), Stock: stock}}
}

func sized(id string, variants ...inventory.Variant) *inventory.Product {
	return &inventory.Product{ID: id, Name: id, Stock: inventory.VariantList(variants)}
}

func item(id string, qty int, size string) Item {
	return Item{ProductID: id, Name: id, Price: decimal.NewFromInt(10), Quantity: qty, Size: size}
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("order-%03d", n.Add(1)) }
}

type recordingPublisher struct {
	mu     sync.Mutex
	placed []string
	alarms []*CompensationError
}

func (p *recordingPublisher) OrderPlaced(_ context.Context, o *Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, o.ID)
	return nil
}

func (p *recordingPublisher) CompensationFailed(_ context.Context, _ *Order, cerr *CompensationError) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alarms = append(p.alarms, cerr)
	return nil
}

// failingOrders rejects every insert.
type failingOrders struct {
	*MemoryStore
}

func (failingOrders) Insert(context.Context, *Order) error {
	return errors.New("connection reset")
}

// brokenRestore refuses to restore the listed products.
type brokenRestore struct {
	*inventory.MemoryStore
	fail map[string]bool
}

func (s *brokenRestore) Restore(ctx context.Context, productID string, quantity int, size string) error {
	if s.fail[productID] {
		return errors.New("store unreachable")
	}
	return s.MemoryStore.Restore(ctx, productID, quantity, size)
}

// flakyIntents fails Release while down is set.
type flakyIntents struct {
	*MemoryIntentLog
	down atomic.Bool
}

func (l *flakyIntents) Release(ctx context.Context, orderID string, r inventory.Reservation) (bool, error) {
	if l.down.Load() {
		return false, errors.New("connection reset")
	}
	return l.MemoryIntentLog.Release(ctx, orderID, r)
}

// cancelAfter cancels the request context once n decrements went through.
type cancelAfter struct {
	*inventory.MemoryStore
	n      int
	cancel context.CancelFunc
	calls  int
}

func (s *cancelAfter) ConditionalDecrement(ctx context.Context, productID string, quantity int, size string) (*inventory.Product, error) {
	p, err := s.MemoryStore.ConditionalDecrement(ctx, productID, quantity, size)
	s.calls++
	if s.calls == s.n {
		s.cancel()
	}
	return p, err
}

package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
)

// strandSaga simulates a process that died after reserving steps.
func strandSaga(t *testing.T, f *fixture, orderID string, startedAt time.Time, steps ...inventory.Reservation) {
	t.Helper()
	ctx := context.Background()
	if err := f.intents.Begin(ctx, Intent{OrderID: orderID, UserID: "ash", StartedAt: startedAt}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, s := range steps {
		if _, err := f.stock.ConditionalDecrement(ctx, s.ProductID, s.Quantity, s.Size); err != nil {
			t.Fatalf("decrement: %v", err)
		}
		if err := f.intents.Record(ctx, orderID, s); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
}

func TestRepairRestoresStrandedReservations(t *testing.T) {
	f := newFixture(t, flat("a", 5), sized("b", inventory.Variant{Size: "M", Stock: 3}))
	strandSaga(t, f, "o1", t0,
		inventory.Reservation{ProductID: "a", Quantity: 2},
		inventory.Reservation{ProductID: "b", Quantity: 1, Size: "M"},
	)
	s := NewSweeper(f.intents, f.orders, f.stock, nil, nil, time.Minute)

	outcome, err := s.Repair(context.Background(), "o1")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if outcome != RepairRestored {
		t.Errorf("expected %s, got %s", RepairRestored, outcome)
	}
	if stock, sold := f.available(t, "a", ""); stock != 5 || sold != 0 {
		t.Errorf("expected a restored, got %d %d", stock, sold)
	}
	if stock, _ := f.available(t, "b", "M"); stock != 3 {
		t.Errorf("expected b restored, got %d", stock)
	}
	if _, err := f.intents.Load(context.Background(), "o1"); !errors.Is(err, ErrIntentNotFound) {
		t.Errorf("expected intent finished, got %v", err)
	}
}

func TestRepairFinishesWhenOrderWasPersisted(t *testing.T) {
	f := newFixture(t, flat("a", 5))
	strandSaga(t, f, "o1", t0, inventory.Reservation{ProductID: "a", Quantity: 2})
	o, _ := New("o1", "ash", []Item{item("a", 2, "")}, decimalZero(), t0)
	if err := f.orders.Insert(context.Background(), o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s := NewSweeper(f.intents, f.orders, f.stock, nil, nil, time.Minute)

	outcome, err := s.Repair(context.Background(), "o1")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if outcome != RepairFinished {
		t.Errorf("expected %s, got %s", RepairFinished, outcome)
	}
	if stock, _ := f.available(t, "a", ""); stock != 3 {
		t.Errorf("expected reservation kept for persisted order, got %d", stock)
	}
}

func TestRepairKeepsFailedSteps(t *testing.T) {
	f := newFixture(t, flat("a", 5), flat("b", 5))
	strandSaga(t, f, "o1", t0,
		inventory.Reservation{ProductID: "a", Quantity: 1},
		inventory.Reservation{ProductID: "b", Quantity: 1},
	)
	broken := &brokenRestore{MemoryStore: f.stock, fail: map[string]bool{"a": true}}
	s := NewSweeper(f.intents, f.orders, broken, nil, nil, time.Minute)

	outcome, err := s.Repair(context.Background(), "o1")
	if err == nil || outcome != RepairFailed {
		t.Fatalf("expected failed repair, got %s %v", outcome, err)
	}
	in, err := f.intents.Load(context.Background(), "o1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(in.Steps) != 1 || in.Steps[0].ProductID != "a" {
		t.Errorf("expected only a left, got %+v", in.Steps)
	}
}

func TestRepairSkipsClaimedIntent(t *testing.T) {
	f := newFixture(t, flat("a", 5))
	strandSaga(t, f, "o1", t0, inventory.Reservation{ProductID: "a", Quantity: 1})
	if ok, _ := f.intents.Claim(context.Background(), "o1", time.Hour); !ok {
		t.Fatal("expected first claim to succeed")
	}
	s := NewSweeper(f.intents, f.orders, f.stock, nil, nil, time.Minute)

	outcome, err := s.Repair(context.Background(), "o1")
	if err != nil || outcome != RepairSkipped {
		t.Errorf("expected skipped, got %s %v", outcome, err)
	}
	if stock, _ := f.available(t, "a", ""); stock != 4 {
		t.Errorf("expected stock untouched, got %d", stock)
	}
}

func TestSweepOnlyTouchesStaleIntents(t *testing.T) {
	f := newFixture(t, flat("a", 10))
	now := t0.Add(time.Hour)
	strandSaga(t, f, "old", now.Add(-10*time.Minute), inventory.Reservation{ProductID: "a", Quantity: 2})
	strandSaga(t, f, "live", now.Add(-time.Second), inventory.Reservation{ProductID: "a", Quantity: 3})

	s := NewSweeper(f.intents, f.orders, f.stock, nil, nil, 5*time.Minute)
	s.now = func() time.Time { return now }

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 settled intent, got %d", n)
	}
	if stock, _ := f.available(t, "a", ""); stock != 7 {
		t.Errorf("expected only the stale reservation restored, got %d", stock)
	}
	if _, err := f.intents.Load(context.Background(), "live"); err != nil {
		t.Errorf("expected live intent untouched, got %v", err)
	}
}

func TestRepairAfterReleaseOutageRestoresOnce(t *testing.T) {
	f := newFixture(t, flat("a", 5), flat("b", 5), flat("c", 0))
	intents := &flakyIntents{MemoryIntentLog: f.intents}
	intents.down.Store(true)
	broken := &brokenRestore{MemoryStore: f.stock, fail: map[string]bool{"b": true}}
	p := NewPlacer(NewSagaStrategy(broken, f.orders, intents, nil, nil), f.events, nil, nil,
		WithIDs(func() string { return "order-x" }))

	_, err := p.Place(context.Background(), PlaceRequest{
		UserID: "ash",
		Items:  []Item{item("a", 2, ""), item("b", 1, ""), item("c", 1, "")},
	})
	if !errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("expected compensation failure, got %v", err)
	}
	if stock, sold := f.available(t, "a", ""); stock != 3 || sold != 2 {
		t.Errorf("expected a left reserved while its step is recorded, got %d %d", stock, sold)
	}

	s := NewSweeper(intents, f.orders, broken, nil, nil, time.Minute)
	if outcome, _ := s.Repair(context.Background(), "order-x"); outcome != RepairFailed {
		t.Errorf("expected failed repair during outage, got %s", outcome)
	}
	if stock, _ := f.available(t, "a", ""); stock != 3 {
		t.Errorf("expected no restore without a release, got %d", stock)
	}

	intents.down.Store(false)
	delete(broken.fail, "b")
	// let the repair lock from the failed attempt expire
	f.intents.now = func() time.Time { return time.Now().Add(2 * defaultClaimTTL) }

	outcome, err := s.Repair(context.Background(), "order-x")
	if err != nil || outcome != RepairRestored {
		t.Fatalf("expected restored, got %s %v", outcome, err)
	}
	for _, id := range []string{"a", "b"} {
		if stock, sold := f.available(t, id, ""); stock != 5 || sold != 0 {
			t.Errorf("expected %s back at 5/0, got %d %d", id, stock, sold)
		}
	}

	if outcome, _ := s.Repair(context.Background(), "order-x"); outcome != RepairMissing {
		t.Errorf("expected settled intent to be missing, got %s", outcome)
	}
	if stock, sold := f.available(t, "a", ""); stock != 5 || sold != 0 {
		t.Errorf("expected a restored exactly once, got %d %d", stock, sold)
	}
}

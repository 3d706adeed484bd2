package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
)

// Intent is the durable record of a saga in flight. Steps holds the
// reservations that are committed in the stock store and not yet undone.
type Intent struct {
	OrderID   string                  `json:"order_id"`
	UserID    string                  `json:"user_id"`
	StartedAt time.Time               `json:"started_at"`
	Steps     []inventory.Reservation `json:"steps"`
}

// IntentLog records saga progress so that reservations stranded by a crash
// or a failed compensation can be repaired later.
type IntentLog interface {
	Begin(ctx context.Context, in Intent) error
	Record(ctx context.Context, orderID string, r inventory.Reservation) error
	// Release drops one step equal to r and reports whether it was
	// recorded. Only the caller that got true may restore the step.
	Release(ctx context.Context, orderID string, r inventory.Reservation) (bool, error)
	Finish(ctx context.Context, orderID string) error
	// Stale returns intents started before the given time.
	Stale(ctx context.Context, before time.Time) ([]Intent, error)
	Load(ctx context.Context, orderID string) (*Intent, error)
	// Claim takes a short-lived repair lock on the intent.
	Claim(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
}

// intentJournal feeds reservation progress of one order into an IntentLog.
type intentJournal struct {
	log     IntentLog
	orderID string
}

func (j intentJournal) Reserved(ctx context.Context, r inventory.Reservation) error {
	return j.log.Record(ctx, j.orderID, r)
}

func (j intentJournal) Release(ctx context.Context, r inventory.Reservation) (bool, error) {
	return j.log.Release(ctx, j.orderID, r)
}

func journalFor(log IntentLog, orderID string) inventory.Journal {
	if log == nil {
		return nil
	}
	return intentJournal{log: log, orderID: orderID}
}

type MemoryIntentLog struct {
	mu      sync.Mutex
	intents map[string]*Intent
	locks   map[string]time.Time
	now     func() time.Time
}

func NewMemoryIntentLog() *MemoryIntentLog {
	return &MemoryIntentLog{
		intents: make(map[string]*Intent),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryIntentLog) Begin(_ context.Context, in Intent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := in
	c.Steps = append([]inventory.Reservation(nil), in.Steps...)
	l.intents[in.OrderID] = &c
	return nil
}

func (l *MemoryIntentLog) Record(_ context.Context, orderID string, r inventory.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, ok := l.intents[orderID]
	if !ok {
		return ErrIntentNotFound
	}
	in.Steps = append(in.Steps, r)
	return nil
}

func (l *MemoryIntentLog) Release(_ context.Context, orderID string, r inventory.Reservation) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, ok := l.intents[orderID]
	if !ok {
		return false, nil
	}
	for i, s := range in.Steps {
		if s == r {
			in.Steps = append(in.Steps[:i], in.Steps[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryIntentLog) Finish(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.intents, orderID)
	delete(l.locks, orderID)
	return nil
}

func (l *MemoryIntentLog) Stale(_ context.Context, before time.Time) ([]Intent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Intent
	for _, in := range l.intents {
		if in.StartedAt.Before(before) {
			c := *in
			c.Steps = append([]inventory.Reservation(nil), in.Steps...)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (l *MemoryIntentLog) Load(_ context.Context, orderID string) (*Intent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, ok := l.intents[orderID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	c := *in
	c.Steps = append([]inventory.Reservation(nil), in.Steps...)
	return &c, nil
}

func (l *MemoryIntentLog) Claim(_ context.Context, orderID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.locks[orderID]; ok && now.Before(until) {
		return false, nil
	}
	l.locks[orderID] = now.Add(ttl)
	return true, nil
}

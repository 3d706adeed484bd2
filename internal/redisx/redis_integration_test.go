//go:build integration

package redisx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	uri, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestStockStoreAgainstRedis(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	s := NewStockStore(rdb)

	products, err := inventory.SeedCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := inventory.Seed(ctx, s, products); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p, err := s.ConditionalDecrement(ctx, "pikachu-plush", 5, "M")
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if n, _ := p.Available("M"); n != 15 || p.SoldCount != 5 {
		t.Errorf("expected M stock 15 sold 5, got %d %d", n, p.SoldCount)
	}

	if _, err := s.ConditionalDecrement(ctx, "pikachu-plush", 1, "XXL"); !errors.Is(err, inventory.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unknown size, got %v", err)
	}
	if _, err := s.ConditionalDecrement(ctx, "eevee-plush", 31, ""); !errors.Is(err, inventory.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for overdraw, got %v", err)
	}

	if err := s.Restore(ctx, "pikachu-plush", 5, "M"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ := s.Get(ctx, "pikachu-plush")
	if n, _ := got.Available("M"); n != 20 || got.SoldCount != 0 {
		t.Errorf("expected M stock 20 sold 0, got %d %d", n, got.SoldCount)
	}
	if err := s.Restore(ctx, "missing", 1, ""); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStockStoreNeverOverdraws(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	s := NewStockStore(rdb)
	if err := s.Put(ctx, &inventory.Product{ID: "gengar", Stock: inventory.FlatStock{Stock: 10}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConditionalDecrement(ctx, "gengar", 3, ""); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, _ := s.Get(ctx, "gengar")
	if n, _ := p.Available(""); ok != 3 || n != 1 {
		t.Errorf("expected 3 successes and stock 1, got %d and %d", ok, n)
	}
}

func TestStockStoreVariantNeverOverdraws(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	s := NewStockStore(rdb)
	p := &inventory.Product{ID: "pikachu", Stock: inventory.VariantList{
		{Size: "S", Stock: 4},
		{Size: "M", Stock: 10},
	}}
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConditionalDecrement(ctx, "pikachu", 3, "M"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "pikachu")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	n, _ := got.Available("M")
	if ok != 3 || n != 1 || got.SoldCount != 9 {
		t.Errorf("expected 3 successes, M stock 1 and sold 9, got %d, %d and %d", ok, n, got.SoldCount)
	}
	if small, _ := got.Available("S"); small != 4 {
		t.Errorf("expected S untouched, got %d", small)
	}
}

func TestIntentLogAgainstRedis(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	l := NewIntentLog(rdb)
	started := time.Now().Add(-time.Hour)

	if err := l.Begin(ctx, orders.Intent{OrderID: "o1", UserID: "ash", StartedAt: started}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	a := inventory.Reservation{ProductID: "a", Quantity: 1}
	b := inventory.Reservation{ProductID: "b", Quantity: 2, Size: "M"}
	for _, r := range []inventory.Reservation{a, b} {
		if err := l.Record(ctx, "o1", r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if held, err := l.Release(ctx, "o1", a); err != nil || !held {
		t.Fatalf("expected a released, got %v %v", held, err)
	}
	if held, err := l.Release(ctx, "o1", a); err != nil || held {
		t.Errorf("expected second release of a to find nothing, got %v %v", held, err)
	}
	if err := l.Record(ctx, "nope", a); !errors.Is(err, orders.ErrIntentNotFound) {
		t.Errorf("expected ErrIntentNotFound, got %v", err)
	}

	stale, err := l.Stale(ctx, time.Now())
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 1 || len(stale[0].Steps) != 1 || stale[0].Steps[0] != b {
		t.Errorf("expected one intent holding b, got %+v", stale)
	}

	ok, _ := l.Claim(ctx, "o1", time.Minute)
	again, _ := l.Claim(ctx, "o1", time.Minute)
	if !ok || again {
		t.Errorf("expected first claim only, got %v %v", ok, again)
	}

	if err := l.Finish(ctx, "o1"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := l.Load(ctx, "o1"); !errors.Is(err, orders.ErrIntentNotFound) {
		t.Errorf("expected intent gone, got %v", err)
	}
}

func TestIntentLogBeginWithSteps(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	l := NewIntentLog(rdb)

	steps := []inventory.Reservation{
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 2, Size: "M"},
	}
	if err := l.Begin(ctx, orders.Intent{OrderID: "o2", UserID: "misty", StartedAt: time.Now(), Steps: steps}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	in, err := l.Load(ctx, "o2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(in.Steps) != 2 || in.Steps[0] != steps[0] || in.Steps[1] != steps[1] {
		t.Errorf("expected steps %+v, got %+v", steps, in.Steps)
	}
}

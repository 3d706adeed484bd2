package app

import (
	"context"
	"testing"

	"github.com/lMordhel/Poke-Web/internal/config"
	"github.com/lMordhel/Poke-Web/internal/orders"
)

func TestOpenMemoryBackend(t *testing.T) {
	cfg := config.Config{StockBackend: config.BackendMemory, PlacementStrategy: config.StrategyTx}
	b, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if b.DB != nil || b.Redis != nil {
		t.Error("expected no external handles for the memory backend")
	}
	if _, ok := b.Strategy(cfg, nil, nil).(*orders.SagaStrategy); !ok {
		t.Error("expected saga strategy without postgres")
	}

	p := orders.NewPlacer(b.Strategy(cfg, nil, nil), nil, nil, nil)
	_, err = p.Place(context.Background(), orders.PlaceRequest{
		UserID: "ash",
		Items:  []orders.Item{{ProductID: "eevee-plush", Name: "Eevee Plush", Quantity: 1}},
	})
	if err != nil {
		t.Errorf("expected placement against the seeded catalog, got %v", err)
	}
}

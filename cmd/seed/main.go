package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/lMordhel/Poke-Web/internal/app"
	"github.com/lMordhel/Poke-Web/internal/config"
	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"go.uber.org/zap"
)

// seed loads the plush catalog into the configured stock backend.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.MustNew(cfg.ServiceName+"-seed", cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if cfg.StockBackend == config.BackendMemory {
		log.Fatal("nothing_to_seed", zap.String("stock_backend", cfg.StockBackend))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backends, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("backends_open_failed", zap.Error(err))
	}
	defer backends.Close()

	products, err := inventory.SeedCatalog()
	if err != nil {
		log.Fatal("catalog_invalid", zap.Error(err))
	}
	if err := inventory.Seed(ctx, backends.Seeder, products); err != nil {
		log.Fatal("seed_failed", zap.Error(err))
	}
	log.Info("catalog_seeded", zap.Int("products", len(products)), zap.String("stock_backend", cfg.StockBackend))
}

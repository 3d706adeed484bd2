package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lMordhel/Poke-Web/internal/config"
	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/lMordhel/Poke-Web/internal/postgres"
	"github.com/lMordhel/Poke-Web/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backends holds the storage handles selected by STOCK_BACKEND. Postgres
// always stores orders unless the memory backend is chosen; Redis holds the
// saga intents and the order cache.
type Backends struct {
	DB    *pgxpool.Pool
	Redis *redis.Client

	Stock   inventory.Store
	Seeder  inventory.Seeder
	Orders  orders.Store
	Intents orders.IntentLog
}

func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backends, error) {
	b := &Backends{}
	if cfg.StockBackend == config.BackendMemory {
		mem := inventory.NewMemoryStore()
		products, err := inventory.SeedCatalog()
		if err != nil {
			return nil, err
		}
		if err := inventory.Seed(ctx, mem, products); err != nil {
			return nil, err
		}
		b.Stock, b.Seeder = mem, mem
		b.Orders = orders.NewMemoryStore()
		b.Intents = orders.NewMemoryIntentLog()
		return b, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	b.DB = db
	if err := postgres.Migrate(ctx, db); err != nil {
		b.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	b.Redis = redisx.New(cfg.RedisAddr)
	if err := b.Redis.Ping(ctx).Err(); err != nil {
		b.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	switch cfg.StockBackend {
	case config.BackendRedis:
		s := redisx.NewStockStore(b.Redis)
		b.Stock, b.Seeder = s, s
	default:
		s := postgres.NewStockStore(db)
		b.Stock, b.Seeder = s, s
	}
	b.Orders = redisx.NewCachedOrders(postgres.NewOrderStore(db), b.Redis, log)
	b.Intents = redisx.NewIntentLog(b.Redis)
	return b, nil
}

// Strategy returns the placement strategy selected by PLACEMENT_STRATEGY.
func (b *Backends) Strategy(cfg config.Config, log *zap.Logger, m *metrics.Metrics) orders.Strategy {
	if cfg.PlacementStrategy == config.StrategyTx && b.DB != nil {
		return postgres.NewTxStrategy(b.DB, log, m)
	}
	return orders.NewSagaStrategy(b.Stock, b.Orders, b.Intents, log, m,
		orders.WithCompensateTimeout(cfg.CompensateTimeout))
}

func (b *Backends) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
}

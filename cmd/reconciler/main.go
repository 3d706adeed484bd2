package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lMordhel/Poke-Web/internal/app"
	"github.com/lMordhel/Poke-Web/internal/config"
	kafkax "github.com/lMordhel/Poke-Web/internal/kafka"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/lMordhel/Poke-Web/internal/reconciler"
	"github.com/lMordhel/Poke-Web/internal/redisx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.MustNew(cfg.ServiceName+"-reconciler", cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if cfg.StockBackend == config.BackendMemory {
		log.Fatal("reconciler_needs_shared_storage", zap.String("stock_backend", cfg.StockBackend))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("backends_open_failed", zap.Error(err))
	}
	defer backends.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	sweeper := orders.NewSweeper(backends.Intents, backends.Orders, backends.Stock, log, m, cfg.IntentStaleAfter)
	svc := &reconciler.Service{
		Repairer: sweeper,
		Dedup:    redisx.NewDedup(backends.Redis, "reconciler"),
		Log:      log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReconcilerGroup, orders.TopicCompensationFailed, cfg.ReconcilerWorkers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consumer_started",
			zap.String("group", cfg.ReconcilerGroup),
			zap.String("topic", orders.TopicCompensationFailed),
			zap.Int("workers", cfg.ReconcilerWorkers),
		)
		return cons.Start(gctx, svc.HandleCompensationFailed)
	})
	g.Go(func() error {
		log.Info("sweeper_started", zap.Duration("interval", cfg.SweepInterval), zap.Duration("stale_after", cfg.IntentStaleAfter))
		return sweeper.Run(gctx, cfg.SweepInterval)
	})

	if err := g.Wait(); err != nil {
		log.Error("reconciler_exit", zap.Error(err))
	}
	log.Info("reconciler_stopped")
}

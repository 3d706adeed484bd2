package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lMordhel/Poke-Web/internal/app"
	"github.com/lMordhel/Poke-Web/internal/config"
	"github.com/lMordhel/Poke-Web/internal/httpx"
	kafkax "github.com/lMordhel/Poke-Web/internal/kafka"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.MustNew(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("backends_open_failed", zap.Error(err))
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Producers live until shutdown; their loops stop on Close, not on ctx.
	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log)
	alarms := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicCompensationFailed, 64, log)
	placed.Start(context.Background())
	alarms.Start(context.Background())
	publisher := kafkax.NewEventPublisher(placed, alarms, cfg.ServiceName)

	placer := orders.NewPlacer(backends.Strategy(cfg, log, m), publisher, log, m)
	router := httpx.NewRouter(log, cfg.RequestTimeout, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	oh := &httpx.OrdersHandler{
		Placer:    placer,
		Query:     orders.NewQuery(backends.Orders),
		PageLimit: cfg.OrderPageLimit,
		Log:       log,
	}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("stock_backend", cfg.StockBackend),
			zap.String("strategy", cfg.PlacementStrategy),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server_exit", zap.Error(err))
	}

	placed.Close()
	alarms.Close()
	placed.WaitClosed()
	alarms.WaitClosed()
}

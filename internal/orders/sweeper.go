package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"go.uber.org/zap"
)

const defaultClaimTTL = time.Minute

// Repair outcomes.
const (
	RepairSkipped  = "skipped"
	RepairMissing  = "missing"
	RepairFinished = "finished"
	RepairRestored = "restored"
	RepairFailed   = "failed"
)

// Sweeper repairs sagas that never reached Finish: the process died
// mid-saga, or a compensation step failed.
type Sweeper struct {
	intents     IntentLog
	orders      Store
	compensator *inventory.Compensator
	log         *zap.Logger
	metrics     *metrics.Metrics
	staleAfter  time.Duration
	claimTTL    time.Duration
	now         func() time.Time
}

// NewSweeper builds a sweeper. staleAfter must comfortably exceed the
// longest placement so that live sagas are never repaired.
func NewSweeper(intents IntentLog, orders Store, stock inventory.Store, log *zap.Logger, m *metrics.Metrics, staleAfter time.Duration) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		intents:     intents,
		orders:      orders,
		compensator: inventory.NewCompensator(stock, log, m),
		log:         log,
		metrics:     m,
		staleAfter:  staleAfter,
		claimTTL:    defaultClaimTTL,
		now:         time.Now,
	}
}

// Repair settles one intent. If the order was persisted the intent is
// closed; otherwise every remaining step is restored first. Steps that
// still fail stay in the intent for the next attempt.
func (s *Sweeper) Repair(ctx context.Context, orderID string) (string, error) {
	outcome, err := s.repair(ctx, orderID)
	s.metrics.Repaired(outcome)

	log := s.log.With(zap.String("order_id", orderID), zap.String("outcome", outcome))
	if err != nil {
		log.Error("saga_repair_failed", zap.Error(err))
		return outcome, err
	}
	if outcome != RepairSkipped && outcome != RepairMissing {
		log.Info("saga_repaired")
	}
	return outcome, nil
}

func (s *Sweeper) repair(ctx context.Context, orderID string) (string, error) {
	ok, err := s.intents.Claim(ctx, orderID, s.claimTTL)
	if err != nil {
		return RepairFailed, fmt.Errorf("claim intent: %w", err)
	}
	if !ok {
		return RepairSkipped, nil
	}

	in, err := s.intents.Load(ctx, orderID)
	if errors.Is(err, ErrIntentNotFound) {
		return RepairMissing, nil
	}
	if err != nil {
		return RepairFailed, fmt.Errorf("load intent: %w", err)
	}

	_, err = s.orders.FindByID(ctx, orderID)
	switch {
	case err == nil:
		if err := s.intents.Finish(ctx, orderID); err != nil {
			return RepairFailed, fmt.Errorf("finish intent: %w", err)
		}
		return RepairFinished, nil
	case !errors.Is(err, ErrNotFound):
		return RepairFailed, fmt.Errorf("find order: %w", err)
	}

	if err := s.compensator.Compensate(ctx, in.Steps, journalFor(s.intents, orderID)); err != nil {
		return RepairFailed, err
	}
	if err := s.intents.Finish(ctx, orderID); err != nil {
		return RepairFailed, fmt.Errorf("finish intent: %w", err)
	}
	return RepairRestored, nil
}

// Sweep repairs every intent older than the stale threshold and returns how
// many were settled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.intents.Stale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale intents: %w", err)
	}

	var (
		settled int
		errs    []error
	)
	for _, in := range stale {
		outcome, err := s.Repair(ctx, in.OrderID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.OrderID, err))
			continue
		}
		if outcome == RepairFinished || outcome == RepairRestored {
			settled++
		}
	}
	return settled, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Warn("sweep_incomplete", zap.Int("settled", n), zap.Error(err))
			} else if n > 0 {
				s.log.Info("sweep_done", zap.Int("settled", n))
			}
		}
	}
}

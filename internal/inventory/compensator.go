package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/lMordhel/Poke-Web/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// FailedStep is a reservation whose restore did not go through.
type FailedStep struct {
	Reservation Reservation
	Err         error
}

// RestoreError lists every step the compensation could not undo.
type RestoreError struct {
	Failed []FailedStep
}

func (e *RestoreError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s/%s x%d: %v", f.Reservation.ProductID, f.Reservation.Size, f.Reservation.Quantity, f.Err))
	}
	return "inventory: restore failed for " + strings.Join(parts, "; ")
}

func (e *RestoreError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Steps returns the reservations that are still outstanding.
func (e *RestoreError) Steps() []Reservation {
	out := make([]Reservation, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Reservation)
	}
	return out
}

// Compensator undoes committed reservations.
type Compensator struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewCompensator(store Store, log *zap.Logger, m *metrics.Metrics) *Compensator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compensator{store: store, log: log, metrics: m}
}

// Compensate restores every step, newest first, and keeps going past
// individual failures. Nothing is retried.
//
// With a journal, each step is released from it before the store is
// touched. A step the journal no longer holds was settled by someone else
// and is skipped. A step whose restore fails is recorded again so a later
// repair can pick it up.
func (c *Compensator) Compensate(ctx context.Context, steps []Reservation, journal Journal) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "inventory.Compensate")
	defer span.End()
	span.SetAttributes(attribute.Int("inventory.steps", len(steps)))

	var failed []FailedStep
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		log := c.log.With(
			zap.String("product_id", step.ProductID),
			zap.String("size", step.Size),
			zap.Int("quantity", step.Quantity),
		)

		if journal != nil {
			held, err := journal.Release(ctx, step)
			if err != nil {
				c.metrics.Restored("error")
				log.Error("journal_release_failed", zap.Error(err))
				failed = append(failed, FailedStep{Reservation: step, Err: fmt.Errorf("journal: %w", err)})
				continue
			}
			if !held {
				c.metrics.Restored("skipped")
				log.Info("restore_skipped")
				continue
			}
		}

		if err := c.store.Restore(ctx, step.ProductID, step.Quantity, step.Size); err != nil {
			c.metrics.Restored("error")
			log.Error("restore_failed", zap.Error(err))
			failed = append(failed, FailedStep{Reservation: step, Err: err})
			if journal != nil {
				if jerr := journal.Reserved(ctx, step); jerr != nil {
					log.Error("reservation_untracked", zap.Error(jerr))
				}
			}
			continue
		}
		c.metrics.Restored("success")
	}

	if len(failed) > 0 {
		err := &RestoreError{Failed: failed}
		span.RecordError(err)
		span.SetStatus(codes.Error, "compensation incomplete")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

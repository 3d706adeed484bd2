package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lMordhel/Poke-Web/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName  = "github.com/lMordhel/Poke-Web/internal/inventory"
	undoTimeout = 5 * time.Second
)

// ReservationError reports the first line that could not be reserved together
// with every reservation committed before it, in order.
type ReservationError struct {
	Line      Line
	Committed []Reservation
	Err       error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("inventory: reserve %q: %v", e.Line.Ref(), e.Err)
}

func (e *ReservationError) Unwrap() error { return e.Err }

// Reserver reserves the lines of one order, one conditional decrement each.
type Reserver struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewReserver(store Store, log *zap.Logger, m *metrics.Metrics) *Reserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reserver{store: store, log: log, metrics: m}
}

// ReserveAll reserves lines in order and stops at the first failure. Lines
// reserved before the failure stay decremented in the store; the caller owns
// compensating them. A journal failure after a successful decrement counts as
// a failure of that line; the line is undone here and left out of Committed,
// so every committed step is known to the journal.
func (r *Reserver) ReserveAll(ctx context.Context, lines []Line, journal Journal) ([]Reservation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "inventory.Reserve")
	defer span.End()
	span.SetAttributes(attribute.Int("inventory.lines", len(lines)))

	committed := make([]Reservation, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return committed, r.fail(span, line, committed, ErrInvalidQuantity)
		}

		if _, err := r.store.ConditionalDecrement(ctx, line.ProductID, line.Quantity, line.Size); err != nil {
			outcome := "error"
			if errors.Is(err, ErrUnavailable) {
				outcome = "unavailable"
			}
			r.metrics.Reserved(outcome)
			return committed, r.fail(span, line, committed, err)
		}
		r.metrics.Reserved("success")

		res := Reservation{ProductID: line.ProductID, Quantity: line.Quantity, Size: line.Size}
		if journal != nil {
			if err := journal.Reserved(ctx, res); err != nil {
				r.undoUnrecorded(ctx, res, journal)
				return committed, r.fail(span, line, committed, fmt.Errorf("journal: %w", err))
			}
		}
		committed = append(committed, res)
	}

	span.SetStatus(codes.Ok, "")
	return committed, nil
}

// undoUnrecorded puts back a decrement whose journal write failed. The write
// may still have landed, so the step is released first; when that fails too
// the stock stays reserved rather than risk a second restore.
func (r *Reserver) undoUnrecorded(ctx context.Context, res Reservation, journal Journal) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), undoTimeout)
	defer cancel()

	log := r.log.With(zap.String("product_id", res.ProductID), zap.String("size", res.Size), zap.Int("quantity", res.Quantity))
	if _, err := journal.Release(ctx, res); err != nil {
		log.Error("reservation_untracked", zap.Error(err))
		return
	}
	if err := r.store.Restore(ctx, res.ProductID, res.Quantity, res.Size); err != nil {
		log.Error("reservation_untracked", zap.Error(err))
	}
}

func (r *Reserver) fail(span trace.Span, line Line, committed []Reservation, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "reservation failed")
	r.log.Info("reservation_failed",
		zap.String("product_id", line.ProductID),
		zap.String("size", line.Size),
		zap.Int("quantity", line.Quantity),
		zap.Int("committed", len(committed)),
		zap.Error(err),
	)
	return &ReservationError{
		Line:      line,
		Committed: append([]Reservation(nil), committed...),
		Err:       err,
	}
}

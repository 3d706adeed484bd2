package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/lMordhel/Poke-Web/internal/orders"

type PlaceRequest struct {
	UserID string
	Items  []Item
	Total  decimal.Decimal
}

// Placer assembles orders and hands them to a Strategy.
type Placer struct {
	strategy  Strategy
	publisher Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

type Option func(*Placer)

func WithClock(now func() time.Time) Option {
	return func(p *Placer) { p.now = now }
}

func WithIDs(newID func() string) Option {
	return func(p *Placer) { p.newID = newID }
}

func NewPlacer(strategy Strategy, publisher Publisher, log *zap.Logger, m *metrics.Metrics, opts ...Option) *Placer {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Placer{
		strategy:  strategy,
		publisher: publisher,
		log:       log,
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Place validates the cart, commits it and returns the persisted order.
// Nothing is reserved for a cart that fails validation.
func (p *Placer) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orders.Place")
	defer span.End()
	start := time.Now()

	log := logging.FromContext(ctx, p.log).With(zap.String("user_id", req.UserID))

	o, err := New(p.newID(), req.UserID, req.Items, req.Total, p.now())
	if err != nil {
		p.done(span, start, err)
		log.Info("order_rejected", zap.Error(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.items", len(o.Items)),
	)
	log = log.With(zap.String("order_id", o.ID))

	if err := p.strategy.Commit(ctx, o); err != nil {
		p.done(span, start, err)

		var cerr *CompensationError
		if errors.As(err, &cerr) {
			log.Error("compensation_failed",
				zap.NamedError("cause", cerr.Cause),
				zap.Any("failed_steps", cerr.FailedSteps()),
				zap.Error(cerr.Err),
			)
			if perr := p.publisher.CompensationFailed(context.WithoutCancel(ctx), o, cerr); perr != nil {
				log.Error("compensation_alarm_failed", zap.Error(perr))
			}
			return nil, err
		}

		log.Info("order_failed", zap.Error(err))
		return nil, err
	}

	p.done(span, start, nil)
	log.Info("order_placed", zap.String("total", o.Total.String()))
	if err := p.publisher.OrderPlaced(ctx, o); err != nil {
		log.Warn("order_event_failed", zap.Error(err))
	}
	return o, nil
}

func (p *Placer) done(span trace.Span, start time.Time, err error) {
	outcome := Outcome(err)
	p.metrics.PlacementDone(outcome, time.Since(start))
	span.SetAttributes(attribute.String("order.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Outcome names err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCompensationFailed):
		return "compensation_failed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInventory):
		return "inventory"
	default:
		return "error"
	}
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"go.uber.org/zap"
)

const defaultCompensateTimeout = 10 * time.Second

// SagaStrategy commits an order over a store that is atomic per product
// record only. Lines are reserved one at a time; any failure replays the
// committed reservations in reverse before the error is returned.
type SagaStrategy struct {
	reserver          *inventory.Reserver
	compensator       *inventory.Compensator
	orders            Store
	intents           IntentLog
	log               *zap.Logger
	compensateTimeout time.Duration
}

type SagaOption func(*SagaStrategy)

// WithCompensateTimeout bounds how long a rollback may keep running after
// the request that started it is gone.
func WithCompensateTimeout(d time.Duration) SagaOption {
	return func(s *SagaStrategy) {
		if d > 0 {
			s.compensateTimeout = d
		}
	}
}

// NewSagaStrategy wires a saga over stock and orders. intents may be nil,
// in which case a crash mid-saga leaves its reservations unrecorded.
func NewSagaStrategy(stock inventory.Store, orders Store, intents IntentLog, log *zap.Logger, m *metrics.Metrics, opts ...SagaOption) *SagaStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SagaStrategy{
		reserver:          inventory.NewReserver(stock, log, m),
		compensator:       inventory.NewCompensator(stock, log, m),
		orders:            orders,
		intents:           intents,
		log:               log,
		compensateTimeout: defaultCompensateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SagaStrategy) Commit(ctx context.Context, o *Order) error {
	log := logging.FromContext(ctx, s.log).With(zap.String("order_id", o.ID))

	if s.intents != nil {
		err := s.intents.Begin(ctx, Intent{OrderID: o.ID, UserID: o.UserID, StartedAt: o.CreatedAt})
		if err != nil {
			return fmt.Errorf("%w: begin intent: %w", ErrPersistence, err)
		}
	}
	journal := journalFor(s.intents, o.ID)

	committed, err := s.reserver.ReserveAll(ctx, o.Lines(), journal)
	if err != nil {
		return s.rollback(ctx, log, o, committed, journal, reservationFailure(err))
	}

	if err := s.orders.Insert(ctx, o); err != nil {
		log.Error("order_insert_failed", zap.Error(err))
		return s.rollback(ctx, log, o, committed, journal, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	s.finish(ctx, log, o.ID)
	return nil
}

// rollback undoes committed reservations and returns cause, or a
// *CompensationError when a restore failed. Compensation runs detached from
// ctx's cancellation so an aborted request still puts stock back.
func (s *SagaStrategy) rollback(ctx context.Context, log *zap.Logger, o *Order, committed []inventory.Reservation, journal inventory.Journal, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensateTimeout)
	defer cancel()

	if err := s.compensator.Compensate(cctx, committed, journal); err != nil {
		var restoreErr *inventory.RestoreError
		if !errors.As(err, &restoreErr) {
			restoreErr = &inventory.RestoreError{}
		}
		// The intent stays open with the unrestored steps for repair.
		return &CompensationError{OrderID: o.ID, Cause: cause, Err: restoreErr}
	}

	s.finish(cctx, log, o.ID)
	return cause
}

func (s *SagaStrategy) finish(ctx context.Context, log *zap.Logger, orderID string) {
	if s.intents == nil {
		return
	}
	if err := s.intents.Finish(ctx, orderID); err != nil {
		log.Warn("intent_finish_failed", zap.Error(err))
	}
}

// reservationFailure maps a reserver error to the placement error surface.
func reservationFailure(err error) error {
	var resErr *inventory.ReservationError
	if errors.As(err, &resErr) && errors.Is(err, inventory.ErrUnavailable) {
		return &InsufficientStockError{
			Item:      resErr.Line.Ref(),
			ProductID: resErr.Line.ProductID,
			Size:      resErr.Line.Size,
		}
	}
	return fmt.Errorf("%w: %w", ErrInventory, err)
}

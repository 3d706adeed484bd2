package reconciler

import (
	"context"

	kafkax "github.com/lMordhel/Poke-Web/internal/kafka"
	"github.com/lMordhel/Poke-Web/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Repairer settles the saga of one order.
type Repairer interface {
	Repair(ctx context.Context, orderID string) (string, error)
}

// Dedup remembers events that were already handled.
type Dedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Service struct {
	Repairer Repairer
	Dedup    Dedup
	Log      *zap.Logger
}

// HandleCompensationFailed is installed as the consumer handler for
// order.compensation.failed. An event is marked as seen only after the
// repair went through, so a failed repair is retried on redelivery.
func (s *Service) HandleCompensationFailed(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != orders.EventCompensationFailed {
		return nil
	}
	log := s.logger().With(zap.String("event_id", env.EventID))

	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			log.Warn("dedup_lookup_failed", zap.Error(err))
		}
		if seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.CompensationFailedPayload](env.Payload)
	if err != nil {
		return err
	}
	log = log.With(zap.String("order_id", p.OrderID))

	outcome, err := s.Repairer.Repair(ctx, p.OrderID)
	if err != nil {
		return err
	}
	log.Info("compensation_alarm_handled",
		zap.String("outcome", outcome),
		zap.Int("failed_steps", len(p.FailedSteps)),
	)

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("dedup_mark_failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

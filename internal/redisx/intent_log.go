package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/redis/go-redis/v9"
)

// IntentLog stores saga intents as a hash plus a list of outstanding steps,
// indexed by start time in the saga:open sorted set.
type IntentLog struct {
	rdb redis.Cmdable
}

func NewIntentLog(rdb redis.Cmdable) *IntentLog {
	return &IntentLog{rdb: rdb}
}

func (l *IntentLog) Begin(ctx context.Context, in orders.Intent) error {
	key := fmt.Sprintf(KeySaga, in.OrderID)
	steps := fmt.Sprintf(KeySagaSteps, in.OrderID)

	encoded := make([]any, 0, len(in.Steps))
	for _, st := range in.Steps {
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		encoded = append(encoded, b)
	}

	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"order_id", in.OrderID,
			"user_id", in.UserID,
			"started_at", in.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, TTLSaga)
		pipe.Del(ctx, steps)
		if len(encoded) > 0 {
			pipe.RPush(ctx, steps, encoded...)
		}
		pipe.Expire(ctx, steps, TTLSaga)
		pipe.ZAdd(ctx, KeySagaOpen, redis.Z{Score: float64(in.StartedAt.UnixMilli()), Member: in.OrderID})
		return nil
	})
	return err
}

func (l *IntentLog) Record(ctx context.Context, orderID string, r inventory.Reservation) error {
	ok, err := Exists(ctx, l.rdb, fmt.Sprintf(KeySaga, orderID))
	if err != nil {
		return err
	}
	if !ok {
		return orders.ErrIntentNotFound
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	steps := fmt.Sprintf(KeySagaSteps, orderID)
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, steps, b)
		pipe.Expire(ctx, steps, TTLSaga)
		return nil
	})
	return err
}

// Release removes one copy of r. LREM is atomic, so of two concurrent
// releases of the same step only one sees it removed.
func (l *IntentLog) Release(ctx context.Context, orderID string, r inventory.Reservation) (bool, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	n, err := l.rdb.LRem(ctx, fmt.Sprintf(KeySagaSteps, orderID), 1, b).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *IntentLog) Finish(ctx context.Context, orderID string) error {
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			fmt.Sprintf(KeySaga, orderID),
			fmt.Sprintf(KeySagaSteps, orderID),
			fmt.Sprintf(KeySagaLock, orderID),
		)
		pipe.ZRem(ctx, KeySagaOpen, orderID)
		return nil
	})
	return err
}

func (l *IntentLog) Stale(ctx context.Context, before time.Time) ([]orders.Intent, error) {
	ids, err := l.rdb.ZRangeByScore(ctx, KeySagaOpen, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]orders.Intent, 0, len(ids))
	for _, id := range ids {
		in, err := l.Load(ctx, id)
		if errors.Is(err, orders.ErrIntentNotFound) {
			// expired hash, drop it from the index
			_ = l.rdb.ZRem(ctx, KeySagaOpen, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, nil
}

func (l *IntentLog) Load(ctx context.Context, orderID string) (*orders.Intent, error) {
	fields, err := l.rdb.HGetAll(ctx, fmt.Sprintf(KeySaga, orderID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, orders.ErrIntentNotFound
	}
	in := &orders.Intent{OrderID: orderID, UserID: fields["user_id"]}
	if raw := fields["started_at"]; raw != "" {
		if in.StartedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("decode started_at of %s: %w", orderID, err)
		}
	}

	raw, err := l.rdb.LRange(ctx, fmt.Sprintf(KeySagaSteps, orderID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	in.Steps = make([]inventory.Reservation, 0, len(raw))
	for _, s := range raw {
		var r inventory.Reservation
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, fmt.Errorf("decode step of %s: %w", orderID, err)
		}
		in.Steps = append(in.Steps, r)
	}
	return in, nil
}

func (l *IntentLog) Claim(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, fmt.Sprintf(KeySagaLock, orderID), "1", ttl).Result()
}

package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedOrders puts a read-through cache in front of an order store. Orders
// are immutable once placed, so cached copies never go stale.
type CachedOrders struct {
	orders.Store
	rdb redis.Cmdable
	log *zap.Logger
}

func NewCachedOrders(store orders.Store, rdb redis.Cmdable, log *zap.Logger) *CachedOrders {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedOrders{Store: store, rdb: rdb, log: log}
}

func (c *CachedOrders) Insert(ctx context.Context, o *orders.Order) error {
	if err := c.Store.Insert(ctx, o); err != nil {
		return err
	}
	c.put(ctx, o)
	return nil
}

func (c *CachedOrders) FindByID(ctx context.Context, id string) (*orders.Order, error) {
	key := fmt.Sprintf(KeyOrder, id)
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var o orders.Order
		if err := json.Unmarshal(b, &o); err == nil {
			return &o, nil
		}
		c.log.Warn("order_cache_corrupt", zap.String("order_id", id))
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("order_cache_get_failed", zap.String("order_id", id), zap.Error(err))
	}

	o, err := c.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, o)
	return o, nil
}

func (c *CachedOrders) put(ctx context.Context, o *orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err(); err != nil {
		c.log.Warn("order_cache_set_failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

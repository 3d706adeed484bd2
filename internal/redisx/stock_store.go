package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// decrementScript subtracts ARGV[2] from field ARGV[1] when it holds at
// least that much, bumps sold_count, and returns the whole hash. A missing
// field or short counter yields nil.
var decrementScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
local qty = tonumber(ARGV[2])
if not cur or tonumber(cur) < qty then
  return false
end
redis.call('HINCRBY', KEYS[1], ARGV[1], -qty)
redis.call('HINCRBY', KEYS[1], 'sold_count', qty)
return redis.call('HGETALL', KEYS[1])
`)

var restoreScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
local qty = tonumber(ARGV[2])
redis.call('HINCRBY', KEYS[1], ARGV[1], qty)
local sold = tonumber(redis.call('HGET', KEYS[1], 'sold_count') or '0')
redis.call('HSET', KEYS[1], 'sold_count', math.max(sold - qty, 0))
return 1
`)

// StockStore keeps each product in one hash so that a Lua script can check
// and decrement a counter atomically.
type StockStore struct {
	rdb redis.Cmdable
}

func NewStockStore(rdb redis.Cmdable) *StockStore {
	return &StockStore{rdb: rdb}
}

func (s *StockStore) ConditionalDecrement(ctx context.Context, productID string, quantity int, size string) (*inventory.Product, error) {
	if quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	res, err := decrementScript.Run(ctx, s.rdb, []string{productKey(productID)}, stockField(size), quantity).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, inventory.ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("redis decrement %s: %w", productID, err)
	}
	return decodeProduct(productID, pairs(res))
}

func (s *StockStore) Restore(ctx context.Context, productID string, quantity int, size string) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	n, err := restoreScript.Run(ctx, s.rdb, []string{productKey(productID)}, stockField(size), quantity).Int()
	if err != nil {
		return fmt.Errorf("redis restore %s: %w", productID, err)
	}
	if n == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// Put replaces the whole product record.
func (s *StockStore) Put(ctx context.Context, p *inventory.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	fields, err := encodeProduct(p)
	if err != nil {
		return err
	}
	key := productKey(p.ID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		return nil
	})
	return err
}

func (s *StockStore) Get(ctx context.Context, productID string) (*inventory.Product, error) {
	fields, err := s.rdb.HGetAll(ctx, productKey(productID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, inventory.ErrNotFound
	}
	return decodeProduct(productID, fields)
}

func productKey(id string) string { return fmt.Sprintf(KeyProduct, id) }

func stockField(size string) string {
	if size == "" {
		return "stock"
	}
	return "variant:" + size + ":stock"
}

func priceField(size string) string { return "variant:" + size + ":price" }

func pairs(flat []string) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		m[flat[i]] = flat[i+1]
	}
	return m
}

func encodeProduct(p *inventory.Product) (map[string]any, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"name":       p.Name,
		"type":       p.Type,
		"images":     string(images),
		"sold_count": p.SoldCount,
	}
	switch st := p.Stock.(type) {
	case inventory.FlatStock:
		fields["price"] = st.Price.String()
		fields["stock"] = st.Stock
	case inventory.VariantList:
		sizes := make([]string, 0, len(st))
		for _, v := range st {
			sizes = append(sizes, v.Size)
			fields[priceField(v.Size)] = v.Price.String()
			fields[stockField(v.Size)] = v.Stock
		}
		b, err := json.Marshal(sizes)
		if err != nil {
			return nil, err
		}
		fields["sizes"] = string(b)
	}
	return fields, nil
}

func decodeProduct(id string, f map[string]string) (*inventory.Product, error) {
	p := &inventory.Product{ID: id, Name: f["name"], Type: f["type"]}
	if raw := f["images"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Images); err != nil {
			return nil, fmt.Errorf("decode images of %s: %w", id, err)
		}
	}
	var err error
	if p.SoldCount, err = atoi(f, "sold_count"); err != nil {
		return nil, err
	}

	if raw, ok := f["sizes"]; ok {
		var sizes []string
		if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
			return nil, fmt.Errorf("decode sizes of %s: %w", id, err)
		}
		list := make(inventory.VariantList, 0, len(sizes))
		for _, size := range sizes {
			stock, err := atoi(f, stockField(size))
			if err != nil {
				return nil, err
			}
			price, err := parsePrice(f[priceField(size)])
			if err != nil {
				return nil, err
			}
			list = append(list, inventory.Variant{Size: size, Price: price, Stock: stock})
		}
		p.Stock = list
		return p, nil
	}

	stock, err := atoi(f, "stock")
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(f["price"])
	if err != nil {
		return nil, err
	}
	p.Stock = inventory.FlatStock{Price: price, Stock: stock}
	return p, nil
}

func atoi(f map[string]string, field string) (int, error) {
	raw, ok := f[field]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

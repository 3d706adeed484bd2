package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/shopspring/decimal"
)

const productCols = `id, name, type, images, sold_count, price::text, stock, variants`

const decrementFlatSQL = `
	UPDATE products
	SET stock = stock - $2, sold_count = sold_count + $2, updated_at = now()
	WHERE id = $1 AND stock IS NOT NULL AND stock >= $2
	RETURNING ` + productCols

// The subquery finds the array position of the size; the outer WHERE is
// re-evaluated against the locked row, so two writers cannot both pass it.
const decrementVariantSQL = `
	UPDATE products p
	SET variants = jsonb_set(p.variants, ARRAY[v.idx::text, 'stock'],
	        to_jsonb((p.variants->v.idx->>'stock')::int - $3)),
	    sold_count = p.sold_count + $3,
	    updated_at = now()
	FROM (
	    SELECT (e.ord - 1)::int AS idx
	    FROM products q, jsonb_array_elements(q.variants) WITH ORDINALITY AS e(elem, ord)
	    WHERE q.id = $1 AND e.elem->>'size' = $2
	    LIMIT 1
	) v
	WHERE p.id = $1 AND (p.variants->v.idx->>'stock')::int >= $3
	RETURNING p.id, p.name, p.type, p.images, p.sold_count, p.price::text, p.stock, p.variants`

const restoreFlatSQL = `
	UPDATE products
	SET stock = stock + $2, sold_count = GREATEST(sold_count - $2, 0), updated_at = now()
	WHERE id = $1 AND stock IS NOT NULL`

const restoreVariantSQL = `
	UPDATE products p
	SET variants = jsonb_set(p.variants, ARRAY[v.idx::text, 'stock'],
	        to_jsonb((p.variants->v.idx->>'stock')::int + $3)),
	    sold_count = GREATEST(p.sold_count - $3, 0),
	    updated_at = now()
	FROM (
	    SELECT (e.ord - 1)::int AS idx
	    FROM products q, jsonb_array_elements(q.variants) WITH ORDINALITY AS e(elem, ord)
	    WHERE q.id = $1 AND e.elem->>'size' = $2
	    LIMIT 1
	) v
	WHERE p.id = $1`

type StockStore struct {
	db *pgxpool.Pool
}

func NewStockStore(db *pgxpool.Pool) *StockStore {
	return &StockStore{db: db}
}

func (s *StockStore) ConditionalDecrement(ctx context.Context, productID string, quantity int, size string) (*inventory.Product, error) {
	return decrementStock(ctx, s.db, productID, quantity, size)
}

func (s *StockStore) Restore(ctx context.Context, productID string, quantity int, size string) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	var (
		tag pgconn.CommandTag
		err error
	)
	if size == "" {
		tag, err = s.db.Exec(ctx, restoreFlatSQL, productID, quantity)
	} else {
		tag, err = s.db.Exec(ctx, restoreVariantSQL, productID, size, quantity)
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func (s *StockStore) Put(ctx context.Context, p *inventory.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var (
		price    *string
		stock    *int
		variants []byte
	)
	switch st := p.Stock.(type) {
	case inventory.FlatStock:
		ps := st.Price.String()
		n := st.Stock
		price, stock = &ps, &n
	case inventory.VariantList:
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		variants = b
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO products (id, name, type, images, sold_count, price, stock, variants)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, images = EXCLUDED.images,
			sold_count = EXCLUDED.sold_count, price = EXCLUDED.price,
			stock = EXCLUDED.stock, variants = EXCLUDED.variants, updated_at = now()`,
		p.ID, p.Name, p.Type, images, p.SoldCount, price, stock, variants,
	)
	return err
}

func (s *StockStore) Get(ctx context.Context, productID string) (*inventory.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	return p, err
}

// decrementStock runs the conditional update on q, which may be a pool or a
// transaction.
func decrementStock(ctx context.Context, q querier, productID string, quantity int, size string) (*inventory.Product, error) {
	if quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	var row pgx.Row
	if size == "" {
		row = q.QueryRow(ctx, decrementFlatSQL, productID, quantity)
	} else {
		row = q.QueryRow(ctx, decrementVariantSQL, productID, size, quantity)
	}
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("decrement %s: %w", productID, err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*inventory.Product, error) {
	var (
		p        inventory.Product
		price    *string
		stock    *int
		variants []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Images, &p.SoldCount, &price, &stock, &variants); err != nil {
		return nil, err
	}

	if variants != nil {
		var list inventory.VariantList
		if err := json.Unmarshal(variants, &list); err != nil {
			return nil, fmt.Errorf("decode variants of %s: %w", p.ID, err)
		}
		p.Stock = list
		return &p, nil
	}

	flat := inventory.FlatStock{}
	if stock != nil {
		flat.Stock = *stock
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("decode price of %s: %w", p.ID, err)
		}
		flat.Price = d
	}
	p.Stock = flat
	return &p, nil
}

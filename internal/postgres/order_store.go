package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/shopspring/decimal"
)

const orderCols = `id, user_id, items, total::text, status, created_at`

type OrderStore struct {
	db *pgxpool.Pool
}

func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Insert(ctx context.Context, o *orders.Order) error {
	return insertOrder(ctx, s.db, o)
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*orders.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	return o, err
}

func (s *OrderStore) FindByUser(ctx context.Context, userID string, limit int) ([]*orders.Order, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderCols+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func insertOrder(ctx context.Context, q querier, o *orders.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO orders (id, user_id, items, total, status, created_at)
		VALUES ($1, $2, $3, ($4::text)::numeric, $5, $6)`,
		o.ID, o.UserID, items, o.Total.String(), string(o.Status), o.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return orders.ErrConflict
	}
	return err
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o      orders.Order
		items  []byte
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &items, &total, &status, &o.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("decode total of %s: %w", o.ID, err)
	}
	o.Total = d
	o.Status = orders.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

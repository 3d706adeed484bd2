package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lMordhel/Poke-Web/internal/inventory"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"github.com/lMordhel/Poke-Web/internal/metrics"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"go.uber.org/zap"
)

// TxStrategy commits an order inside one database transaction: every
// decrement and the order insert land together or not at all, so no
// compensation is needed.
type TxStrategy struct {
	db      *pgxpool.Pool
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewTxStrategy(db *pgxpool.Pool, log *zap.Logger, m *metrics.Metrics) *TxStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &TxStrategy{db: db, log: log, metrics: m}
}

func (s *TxStrategy) Commit(ctx context.Context, o *orders.Order) error {
	log := logging.FromContext(ctx, s.log).With(zap.String("order_id", o.ID))

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", orders.ErrInventory, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Fixed lock order across transactions avoids deadlocks between carts
	// that share products.
	lines := o.Lines()
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].Size < lines[j].Size
	})

	for _, line := range lines {
		if _, err := decrementStock(ctx, tx, line.ProductID, line.Quantity, line.Size); err != nil {
			if errors.Is(err, inventory.ErrUnavailable) {
				s.metrics.Reserved("unavailable")
				log.Info("reservation_failed", zap.String("product_id", line.ProductID), zap.String("size", line.Size))
				return &orders.InsufficientStockError{Item: line.Ref(), ProductID: line.ProductID, Size: line.Size}
			}
			s.metrics.Reserved("error")
			return fmt.Errorf("%w: %w", orders.ErrInventory, err)
		}
		s.metrics.Reserved("success")
	}

	if err := insertOrder(ctx, tx, o); err != nil {
		log.Error("order_insert_failed", zap.Error(err))
		return fmt.Errorf("%w: %w", orders.ErrPersistence, err)
	}
	if err := tx.Commit(ctx); err != nil {
		log.Error("order_commit_failed", zap.Error(err))
		return fmt.Errorf("%w: commit: %w", orders.ErrPersistence, err)
	}
	return nil
}

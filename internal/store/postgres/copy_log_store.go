package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// CopyLogStore implements domain.CopyLogStore using PostgreSQL.
type CopyLogStore struct {
	pool *pgxpool.Pool
}

// NewCopyLogStore creates a new CopyLogStore backed by the given connection pool.
func NewCopyLogStore(pool *pgxpool.Pool) *CopyLogStore {
	return &CopyLogStore{pool: pool}
}

var _ domain.CopyLogStore = (*CopyLogStore)(nil)

// Insert appends one copy-trade audit row.
func (s *CopyLogStore) Insert(ctx context.Context, entry domain.CopyTradeLog) error {
	const query = `
		INSERT INTO copy_trade_log (
			source_trader, source_trade_id, our_order_id,
			size_usd, shares, price, status, rejection_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		entry.SourceTrader, entry.SourceTradeID, entry.OurOrderID,
		entry.SizeUSD, entry.Shares, entry.Price, entry.Status, entry.RejectionReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert copy trade log: %w", err)
	}
	return nil
}

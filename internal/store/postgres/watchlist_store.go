package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *pgxpool.Pool
}

// NewWatchlistStore creates a new WatchlistStore backed by the given connection pool.
func NewWatchlistStore(pool *pgxpool.Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// List returns every curated watchlist entry.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.WatchlistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, list_type, label, min_trade_size, alert_threshold_usd, added_at
		 FROM watchlist ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watchlist: %w", err)
	}
	defer rows.Close()

	var entries []domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		if err := rows.Scan(
			&e.Address, &e.ListType, &e.Label,
			&e.MinTradeSize, &e.AlertThresholdUSD, &e.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ domain.TradeStore = (*TradeStore)(nil)

const tradeSelectCols = `id, trade_id, trader, condition_id, asset_id,
	market_slug, event_slug, category, side, outcome, outcome_index,
	size, price, usd_value, executed_at, received_at, tx_hash,
	is_whale, is_watchlist, is_insider_suspect,
	trader_score, trader_source, processing_latency_ms`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.TradeID, &t.Trader, &t.ConditionID, &t.AssetID,
			&t.MarketSlug, &t.EventSlug, &t.Category, &t.Side, &t.Outcome,
			&t.OutcomeIndex, &t.Size, &t.Price, &t.USDValue,
			&t.ExecutedAt, &t.ReceivedAt, &t.TxHash,
			&t.IsWhale, &t.IsWatchlist, &t.IsInsiderSuspect,
			&t.TraderScore, &t.TraderSource, &t.ProcessingLatencyMs,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// UpsertBatch writes trades efficiently using pgx Batch. Rows are keyed by
// the venue trade_id; a conflicting row is overwritten so the latest
// enrichment wins.
func (s *TradeStore) UpsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO live_trades (
			trade_id, trader, condition_id, asset_id,
			market_slug, event_slug, category, side, outcome, outcome_index,
			size, price, usd_value, executed_at, received_at, tx_hash,
			is_whale, is_watchlist, is_insider_suspect,
			trader_score, trader_source, processing_latency_ms
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22
		) ON CONFLICT (trade_id) DO UPDATE SET
			trader = EXCLUDED.trader,
			condition_id = EXCLUDED.condition_id,
			asset_id = EXCLUDED.asset_id,
			market_slug = EXCLUDED.market_slug,
			event_slug = EXCLUDED.event_slug,
			category = EXCLUDED.category,
			side = EXCLUDED.side,
			outcome = EXCLUDED.outcome,
			outcome_index = EXCLUDED.outcome_index,
			size = EXCLUDED.size,
			price = EXCLUDED.price,
			usd_value = EXCLUDED.usd_value,
			executed_at = EXCLUDED.executed_at,
			tx_hash = EXCLUDED.tx_hash,
			is_whale = EXCLUDED.is_whale,
			is_watchlist = EXCLUDED.is_watchlist,
			is_insider_suspect = EXCLUDED.is_insider_suspect,
			trader_score = EXCLUDED.trader_score,
			trader_source = EXCLUDED.trader_source,
			processing_latency_ms = EXCLUDED.processing_latency_ms`

	for _, t := range trades {
		batch.Queue(query,
			t.TradeID, t.Trader, t.ConditionID, t.AssetID,
			t.MarketSlug, t.EventSlug, t.Category, t.Side, t.Outcome, t.OutcomeIndex,
			t.Size, t.Price, t.USDValue, t.ExecutedAt, t.ReceivedAt, t.TxHash,
			t.IsWhale, t.IsWatchlist, t.IsInsiderSuspect,
			t.TraderScore, t.TraderSource, t.ProcessingLatencyMs,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// MaxID returns the highest assigned row id, or 0 when the table is empty.
func (s *TradeStore) MaxID(ctx context.Context) (int64, error) {
	var max *int64
	err := s.pool.QueryRow(ctx, "SELECT MAX(id) FROM live_trades").Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("postgres: max trade id: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// ListAfterID returns trades with id strictly greater than afterID in
// ascending id order, for cursor-tailing consumers.
func (s *TradeStore) ListAfterID(ctx context.Context, afterID int64, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM live_trades WHERE id > $1 ORDER BY id ASC`
	args := []any{afterID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades after id: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades after id: %w", err)
	}
	return trades, nil
}

// ListBefore returns trades received strictly before the given time, for archiving.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM live_trades WHERE received_at < $1 ORDER BY received_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteBefore deletes trades received before the given time. Returns the number deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM live_trades WHERE received_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

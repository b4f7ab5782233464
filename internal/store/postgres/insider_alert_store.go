package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// InsiderAlertStore implements domain.InsiderAlertStore using PostgreSQL.
type InsiderAlertStore struct {
	pool *pgxpool.Pool
}

// NewInsiderAlertStore creates a new InsiderAlertStore backed by the given connection pool.
func NewInsiderAlertStore(pool *pgxpool.Pool) *InsiderAlertStore {
	return &InsiderAlertStore{pool: pool}
}

var _ domain.InsiderAlertStore = (*InsiderAlertStore)(nil)

const insiderAlertSelectCols = `trade_id, trader, condition_id, market_slug, side,
	price, usd_value, composite, scores, signals, profitability, created_at`

func scanInsiderAlertRows(rows pgx.Rows) ([]domain.InsiderAlert, error) {
	var alerts []domain.InsiderAlert
	for rows.Next() {
		var a domain.InsiderAlert
		if err := rows.Scan(
			&a.TradeID, &a.Trader, &a.ConditionID, &a.MarketSlug, &a.Side,
			&a.Price, &a.USDValue, &a.Composite, &a.Scores, &a.Signals,
			&a.Profitability, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Upsert writes the scorer output for one trade. Re-scoring the same trade
// overwrites the previous row.
func (s *InsiderAlertStore) Upsert(ctx context.Context, alert domain.InsiderAlert) error {
	const query = `
		INSERT INTO insider_alerts (
			trade_id, trader, condition_id, market_slug, side,
			price, usd_value, composite, scores, signals, profitability
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (trade_id) DO UPDATE SET
			composite = EXCLUDED.composite,
			scores = EXCLUDED.scores,
			signals = EXCLUDED.signals,
			profitability = EXCLUDED.profitability`

	signals := alert.Signals
	if signals == nil {
		signals = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		alert.TradeID, alert.Trader, alert.ConditionID, alert.MarketSlug, alert.Side,
		alert.Price, alert.USDValue, alert.Composite, alert.Scores, signals,
		alert.Profitability,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert insider alert %s: %w", alert.TradeID, err)
	}
	return nil
}

// ListBefore returns alerts created strictly before the given time, for archiving.
func (s *InsiderAlertStore) ListBefore(ctx context.Context, before time.Time) ([]domain.InsiderAlert, error) {
	query := `SELECT ` + insiderAlertSelectCols + ` FROM insider_alerts WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list insider alerts before: %w", err)
	}
	defer rows.Close()
	return scanInsiderAlertRows(rows)
}

// DeleteBefore deletes alerts created before the given time. Returns the number deleted.
func (s *InsiderAlertStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM insider_alerts WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete insider alerts before: %w", err)
	}
	return tag.RowsAffected(), nil
}

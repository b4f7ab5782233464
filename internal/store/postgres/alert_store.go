package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// AlertRuleStore implements domain.AlertRuleStore using PostgreSQL.
type AlertRuleStore struct {
	pool *pgxpool.Pool
}

// NewAlertRuleStore creates a new AlertRuleStore backed by the given connection pool.
func NewAlertRuleStore(pool *pgxpool.Pool) *AlertRuleStore {
	return &AlertRuleStore{pool: pool}
}

var _ domain.AlertRuleStore = (*AlertRuleStore)(nil)

// ListEnabled returns every enabled alerting rule.
func (s *AlertRuleStore) ListEnabled(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, rule_type, enabled, severity, conditions, created_at
		 FROM alert_rules WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list enabled alert rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		var r domain.AlertRule
		if err := rows.Scan(
			&r.ID, &r.RuleType, &r.Enabled, &r.Severity, &r.Conditions, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan alert rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// TradeAlertStore implements domain.TradeAlertStore using PostgreSQL.
type TradeAlertStore struct {
	pool *pgxpool.Pool
}

// NewTradeAlertStore creates a new TradeAlertStore backed by the given connection pool.
func NewTradeAlertStore(pool *pgxpool.Pool) *TradeAlertStore {
	return &TradeAlertStore{pool: pool}
}

var _ domain.TradeAlertStore = (*TradeAlertStore)(nil)

// Insert writes one rule match.
func (s *TradeAlertStore) Insert(ctx context.Context, alert domain.TradeAlert) error {
	const query = `
		INSERT INTO trade_alerts (
			rule_id, rule_type, trade_id, trader, condition_id,
			market_slug, side, usd_value, severity, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		alert.RuleID, alert.RuleType, alert.TradeID, alert.Trader, alert.ConditionID,
		alert.MarketSlug, alert.Side, alert.USDValue, alert.Severity, alert.Message,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade alert: %w", err)
	}
	return nil
}

// DeleteAcknowledgedBefore deletes acknowledged alerts created before the
// given time. Returns the number deleted.
func (s *TradeAlertStore) DeleteAcknowledgedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_alerts WHERE acknowledged AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete acknowledged alerts before: %w", err)
	}
	return tag.RowsAffected(), nil
}

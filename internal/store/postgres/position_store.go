package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// UserPositionStore implements domain.UserPositionStore using PostgreSQL.
type UserPositionStore struct {
	pool *pgxpool.Pool
}

// NewUserPositionStore creates a new UserPositionStore backed by the given connection pool.
func NewUserPositionStore(pool *pgxpool.Pool) *UserPositionStore {
	return &UserPositionStore{pool: pool}
}

var _ domain.UserPositionStore = (*UserPositionStore)(nil)

// Upsert inserts or replaces the position for a token id.
func (s *UserPositionStore) Upsert(ctx context.Context, pos domain.TrackedPosition) error {
	const query = `
		INSERT INTO user_positions (
			token_id, condition_id, side, size, avg_price, current_price, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_id) DO UPDATE SET
			side = EXCLUDED.side,
			size = EXCLUDED.size,
			avg_price = EXCLUDED.avg_price,
			current_price = EXCLUDED.current_price,
			updated_at = NOW()`
	_, err := s.pool.Exec(ctx, query,
		pos.TokenID, pos.ConditionID, pos.Side, pos.Size,
		pos.AvgPrice, pos.CurrentPrice, pos.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", pos.TokenID, err)
	}
	return nil
}

// Delete removes a fully closed position.
func (s *UserPositionStore) Delete(ctx context.Context, tokenID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_positions WHERE token_id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", tokenID, err)
	}
	return nil
}

// List returns every tracked position.
func (s *UserPositionStore) List(ctx context.Context) ([]domain.TrackedPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT token_id, condition_id, side, size, avg_price, current_price, opened_at, updated_at
		 FROM user_positions ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.TrackedPosition
	for rows.Next() {
		var p domain.TrackedPosition
		if err := rows.Scan(
			&p.TokenID, &p.ConditionID, &p.Side, &p.Size,
			&p.AvgPrice, &p.CurrentPrice, &p.OpenedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// CursorStore implements domain.CursorStore using PostgreSQL.
type CursorStore struct {
	pool *pgxpool.Pool
}

// NewCursorStore creates a new CursorStore backed by the given connection pool.
func NewCursorStore(pool *pgxpool.Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

var _ domain.CursorStore = (*CursorStore)(nil)

// Get returns the named cursor, or domain.ErrNotFound if it was never set.
func (s *CursorStore) Get(ctx context.Context, name string) (domain.Cursor, error) {
	var c domain.Cursor
	err := s.pool.QueryRow(ctx,
		`SELECT name, position, updated_at FROM cursors WHERE name = $1`, name,
	).Scan(&c.Name, &c.Position, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cursor{}, fmt.Errorf("postgres: get cursor %s: %w", name, domain.ErrNotFound)
		}
		return domain.Cursor{}, fmt.Errorf("postgres: get cursor %s: %w", name, err)
	}
	return c, nil
}

// Set writes the cursor position unconditionally.
func (s *CursorStore) Set(ctx context.Context, name string, position int64) error {
	const query = `
		INSERT INTO cursors (name, position) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET position = EXCLUDED.position, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, name, position); err != nil {
		return fmt.Errorf("postgres: set cursor %s: %w", name, err)
	}
	return nil
}

// CompareAndSwap advances the cursor only if the stored position still equals
// old, so two consumers with the same name cannot both win an advance.
func (s *CursorStore) CompareAndSwap(ctx context.Context, name string, old, new int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cursors SET position = $3, updated_at = NOW() WHERE name = $1 AND position = $2`,
		name, old, new,
	)
	if err != nil {
		return fmt.Errorf("postgres: cas cursor %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: cas cursor %s: %w", name, domain.ErrCursorConflict)
	}
	return nil
}

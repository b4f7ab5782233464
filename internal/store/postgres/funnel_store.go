package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// FunnelStore implements domain.FunnelStore using PostgreSQL.
type FunnelStore struct {
	pool *pgxpool.Pool
}

// NewFunnelStore creates a new FunnelStore backed by the given connection pool.
func NewFunnelStore(pool *pgxpool.Pool) *FunnelStore {
	return &FunnelStore{pool: pool}
}

var _ domain.FunnelStore = (*FunnelStore)(nil)

// CreateRun opens a new funnel run and returns its id.
func (s *FunnelStore) CreateRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pipeline_runs (status) VALUES ('running') RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create funnel run: %w", err)
	}
	return id, nil
}

// FinishRun closes the run with its final status.
func (s *FunnelStore) FinishRun(ctx context.Context, runID int64, status string, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $2, error = $3, finished_at = NOW() WHERE id = $1`,
		runID, status, errMsg,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish funnel run %d: %w", runID, err)
	}
	return nil
}

// RecordStage writes the per-stage counters.
func (s *FunnelStore) RecordStage(ctx context.Context, stats domain.StageStats) error {
	const query = `
		INSERT INTO pipeline_stats (run_id, stage, name, processed, qualified, eliminated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, stage) DO UPDATE SET
			processed = EXCLUDED.processed,
			qualified = EXCLUDED.qualified,
			eliminated = EXCLUDED.eliminated,
			finished_at = NOW()`
	_, err := s.pool.Exec(ctx, query,
		stats.RunID, stats.Stage, stats.Name,
		stats.Processed, stats.Qualified, stats.Eliminated,
	)
	if err != nil {
		return fmt.Errorf("postgres: record funnel stage %d: %w", stats.Stage, err)
	}
	return nil
}

// AppendLog writes one progress line for the run.
func (s *FunnelStore) AppendLog(ctx context.Context, runID int64, stage int, message string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_logs (run_id, stage, message) VALUES ($1, $2, $3)`,
		runID, stage, message,
	)
	if err != nil {
		return fmt.Errorf("postgres: append funnel log: %w", err)
	}
	return nil
}

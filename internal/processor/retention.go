package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

const sweepInterval = time.Hour

// TradeArchiver uploads expiring trades to cold storage. Optional; when nil
// the sweeper deletes without archiving.
type TradeArchiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}

// RetentionSweeper deletes trades and acknowledged alerts past their
// retention window. Unacknowledged alerts are kept indefinitely. When an
// archiver is configured, rows are uploaded before deletion and kept if the
// upload fails.
type RetentionSweeper struct {
	trades        domain.TradeStore
	alerts        domain.TradeAlertStore
	archiver      TradeArchiver
	retentionDays int
	logger        *slog.Logger
}

// NewRetentionSweeper creates a sweeper with the given retention in days.
func NewRetentionSweeper(
	trades domain.TradeStore,
	alerts domain.TradeAlertStore,
	archiver TradeArchiver,
	retentionDays int,
	logger *slog.Logger,
) *RetentionSweeper {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &RetentionSweeper{
		trades:        trades,
		alerts:        alerts,
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "retention")),
	}
}

// Run sweeps hourly until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	if s.archiver != nil {
		archived, err := s.archiver.ArchiveTrades(ctx, cutoff)
		if err != nil {
			s.logger.ErrorContext(ctx, "trade archive failed, skipping delete",
				slog.String("error", err.Error()),
			)
			return
		}
		if archived > 0 {
			s.logger.InfoContext(ctx, "trades archived", slog.Int64("count", archived))
		}
	}

	deleted, err := s.trades.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "trade retention delete failed",
			slog.String("error", err.Error()),
		)
	} else if deleted > 0 {
		s.logger.InfoContext(ctx, "trades expired", slog.Int64("count", deleted))
	}

	acked, err := s.alerts.DeleteAcknowledgedBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "alert retention delete failed",
			slog.String("error", err.Error()),
		)
	} else if acked > 0 {
		s.logger.InfoContext(ctx, "acknowledged alerts expired", slog.Int64("count", acked))
	}
}

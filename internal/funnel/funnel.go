// Package funnel is the batch analytics pipeline: six sequential stages over
// the wallet set, where stages 1-4 eliminate, stage 5 annotates and stage 6
// classifies. Per-stage counters are persisted for the dashboard.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

const (
	runLockKey = "funnel:run"
	runLockTTL = 30 * time.Minute
)

// StagePolicy is one stage's filter thresholds. Zero values mean "no
// constraint" for that predicate.
type StagePolicy struct {
	MinVolumeUSD    float64
	MinTradeCount   int
	MinWinRate      float64
	MinROI          float64
	MaxDrawdown     float64
	MinPnLUSD       float64
	MinProfitFactor float64
}

// passes evaluates every constraint the policy sets against the wallet's
// all-time metrics.
func (p StagePolicy) passes(w domain.Wallet) bool {
	m := w.AllTime
	switch {
	case p.MinVolumeUSD > 0 && m.Volume < p.MinVolumeUSD:
		return false
	case p.MinTradeCount > 0 && m.TradeCount < p.MinTradeCount:
		return false
	case p.MinWinRate > 0 && m.WinRate < p.MinWinRate:
		return false
	case p.MinROI > 0 && m.ROI < p.MinROI:
		return false
	case p.MaxDrawdown > 0 && m.MaxDrawdown > p.MaxDrawdown:
		return false
	case p.MinPnLUSD > 0 && m.PnL < p.MinPnLUSD:
		return false
	case p.MinProfitFactor > 0 && w.ProfitFactor30d < p.MinProfitFactor:
		return false
	}
	return true
}

var stageNames = [6]string{
	"volume",
	"activity",
	"consistency",
	"profitability",
	"behavior",
	"classification",
}

// Config holds the funnel schedule and the six stage policies.
type Config struct {
	Interval time.Duration
	Stages   [6]StagePolicy
}

// Notifier is the outbound alert surface. Optional.
type Notifier interface {
	FunnelComplete(ctx context.Context, runID int64, stats []domain.StageStats) error
}

// Runner executes the funnel on a schedule. A distributed lock keeps a run
// single-instance across deployments.
type Runner struct {
	cfg Config

	wallets  domain.WalletStore
	store    domain.FunnelStore
	locks    domain.LockManager
	notifier Notifier
	logger   *slog.Logger
}

// NewRunner creates a funnel runner. locks and notifier may be nil.
func NewRunner(
	cfg Config,
	wallets domain.WalletStore,
	store domain.FunnelStore,
	locks domain.LockManager,
	notifier Notifier,
	logger *slog.Logger,
) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &Runner{
		cfg:      cfg,
		wallets:  wallets,
		store:    store,
		locks:    locks,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "funnel")),
	}
}

// Run executes the funnel on the configured interval until ctx is cancelled.
// The first run happens one interval after startup.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
				r.logger.ErrorContext(ctx, "funnel run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce executes one complete funnel pass. Returns domain.ErrLockHeld when
// another instance is already running.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, runLockKey, runLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.InfoContext(ctx, "funnel run already in progress elsewhere")
			}
			return err
		}
		defer unlock()
	}

	runID, err := r.store.CreateRun(ctx)
	if err != nil {
		return fmt.Errorf("funnel: create run: %w", err)
	}
	r.logger.InfoContext(ctx, "funnel run started", slog.Int64("run_id", runID))

	stats, err := r.execute(ctx, runID)
	if err != nil {
		if finishErr := r.store.FinishRun(ctx, runID, "failed", err.Error()); finishErr != nil {
			r.logger.ErrorContext(ctx, "funnel run finalize failed",
				slog.String("error", finishErr.Error()),
			)
		}
		return err
	}

	if err := r.store.FinishRun(ctx, runID, "completed", ""); err != nil {
		return fmt.Errorf("funnel: finish run %d: %w", runID, err)
	}

	if r.notifier != nil {
		if err := r.notifier.FunnelComplete(ctx, runID, stats); err != nil {
			r.logger.WarnContext(ctx, "funnel notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// execute walks the candidate set through all six stages.
func (r *Runner) execute(ctx context.Context, runID int64) ([]domain.StageStats, error) {
	candidates, err := r.loadCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("funnel: load candidates: %w", err)
	}

	var stats []domain.StageStats
	survivors := candidates

	// Stages 1-4 eliminate.
	for stage := 1; stage <= 4; stage++ {
		policy := r.cfg.Stages[stage-1]
		var next []domain.Wallet
		for _, w := range survivors {
			if policy.passes(w) {
				next = append(next, w)
			}
		}
		st := domain.StageStats{
			RunID:      runID,
			Stage:      stage,
			Name:       stageNames[stage-1],
			Processed:  len(survivors),
			Qualified:  len(next),
			Eliminated: len(survivors) - len(next),
		}
		if err := r.recordStage(ctx, st); err != nil {
			return nil, err
		}
		stats = append(stats, st)
		survivors = next
	}

	// Stage 5 annotates without eliminating.
	st5 := r.annotate(ctx, runID, survivors)
	if err := r.recordStage(ctx, st5); err != nil {
		return nil, err
	}
	stats = append(stats, st5)

	// Stage 6 classifies the survivors.
	st6, err := r.classify(ctx, runID, survivors)
	if err != nil {
		return nil, err
	}
	if err := r.recordStage(ctx, st6); err != nil {
		return nil, err
	}
	stats = append(stats, st6)

	r.logger.InfoContext(ctx, "funnel run complete",
		slog.Int64("run_id", runID),
		slog.Int("candidates", len(candidates)),
		slog.Int("survivors", len(survivors)),
	)
	return stats, nil
}

func (r *Runner) loadCandidates(ctx context.Context) ([]domain.Wallet, error) {
	var all []domain.Wallet
	const pageSize = 1000
	for offset := 0; ; offset += pageSize {
		page, err := r.wallets.ListPage(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}
	return all, nil
}

func (r *Runner) recordStage(ctx context.Context, st domain.StageStats) error {
	if err := r.store.RecordStage(ctx, st); err != nil {
		return fmt.Errorf("funnel: record stage %d: %w", st.Stage, err)
	}
	return nil
}

// annotate surfaces behavioural traits of the survivors in the run log.
func (r *Runner) annotate(ctx context.Context, runID int64, survivors []domain.Wallet) domain.StageStats {
	var nightTraders, concentrated, flagged int
	for _, w := range survivors {
		if w.Behavior.NightTradeRatio > 0.5 {
			nightTraders++
		}
		if w.Behavior.PositionConcentration > 0.7 {
			concentrated++
		}
		if len(w.RedFlags) > 0 {
			flagged++
		}
	}

	msg := fmt.Sprintf("behavior: %d night traders, %d concentrated, %d red-flagged of %d",
		nightTraders, concentrated, flagged, len(survivors))
	if err := r.store.AppendLog(ctx, runID, 5, msg); err != nil {
		r.logger.WarnContext(ctx, "funnel log append failed",
			slog.String("error", err.Error()),
		)
	}

	return domain.StageStats{
		RunID:     runID,
		Stage:     5,
		Name:      stageNames[4],
		Processed: len(survivors),
		Qualified: len(survivors),
	}
}

// classify sorts stage-5 survivors into wallet classes and logs the census.
func (r *Runner) classify(ctx context.Context, runID int64, survivors []domain.Wallet) (domain.StageStats, error) {
	policy := r.cfg.Stages[5]

	census := make(map[domain.WalletClass]int)
	for _, w := range survivors {
		census[classify(w, policy)]++
	}

	msg := fmt.Sprintf("classes: %d insider, %d sharp, %d grinder, %d unprofiled",
		census[domain.WalletClassInsider],
		census[domain.WalletClassSharp],
		census[domain.WalletClassGrinder],
		census[domain.WalletClassUnprofiled],
	)
	if err := r.store.AppendLog(ctx, runID, 6, msg); err != nil {
		return domain.StageStats{}, fmt.Errorf("funnel: append classification log: %w", err)
	}

	qualified := len(survivors) - census[domain.WalletClassUnprofiled]
	return domain.StageStats{
		RunID:      runID,
		Stage:      6,
		Name:       stageNames[5],
		Processed:  len(survivors),
		Qualified:  qualified,
		Eliminated: census[domain.WalletClassUnprofiled],
	}, nil
}

// classify buckets one wallet: suspected insiders first, then consistent
// profitable traders by edge strength.
func classify(w domain.Wallet, policy StagePolicy) domain.WalletClass {
	minPF := policy.MinProfitFactor
	if minPF <= 0 {
		minPF = 1.5
	}

	switch {
	case w.InsiderScore >= 60:
		return domain.WalletClassInsider
	case w.ProfitFactor30d >= minPF && w.Last30d.ROI >= 20:
		return domain.WalletClassSharp
	case w.AllTime.PnL > 0 && w.AllTime.WinRate >= 55:
		return domain.WalletClassGrinder
	}
	return domain.WalletClassUnprofiled
}

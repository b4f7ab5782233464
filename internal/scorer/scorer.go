package scorer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/alanyoungcy/polysight/internal/platform/polymarket"
)

const (
	cursorName         = "insider_scorer"
	projectionRefresh  = 5 * time.Minute
	retentionInterval  = 24 * time.Hour
	establishedAgeDays = 365
)

// MarketSource resolves market metadata; found=false when the venue does not
// know the condition.
type MarketSource interface {
	Market(ctx context.Context, conditionID string) (polymarket.APIMarket, bool, error)
}

// NonceSource resolves on-chain transaction counts. Optional.
type NonceSource interface {
	TransactionCount(ctx context.Context, address string) (uint64, error)
}

// AlertArchiver uploads expiring insider alerts to cold storage. Optional.
type AlertArchiver interface {
	ArchiveInsiderAlerts(ctx context.Context, before time.Time) (int64, error)
}

// Notifier is the outbound alert surface. Optional.
type Notifier interface {
	InsiderAlert(ctx context.Context, a domain.InsiderAlert) error
}

// Config holds the scorer parameters.
type Config struct {
	PollInterval       time.Duration // ~3s
	BatchSize          int           // ~100
	MinTradeUSD        float64       // skip smaller trades, ~$200
	AlertThreshold     int           // write alerts at composite >= this, ~50
	AlertRetentionDays int           // ~30
}

// walletProj is the scorer's per-wallet projection, refreshed by paged full
// scan every few minutes.
type walletProj struct {
	copyScore        int
	profitFactor30d  float64
	pnlAll           float64
	resolvedAll      int
	winRateAll       float64
	tradeCountAll    int
	accountCreatedAt *time.Time
	nonce            uint64
}

// Scorer is the independent tailing consumer: it polls the trade store for
// rows past its cursor, grades each with the six-signal composite, and writes
// insider alerts.
type Scorer struct {
	cfg Config

	trades  domain.TradeStore
	wallets domain.WalletStore
	alerts  domain.InsiderAlertStore
	cursors domain.CursorStore

	volumes  domain.VolumeCache
	ages     domain.AgeCache
	markets  MarketSource
	nonces   NonceSource
	archiver AlertArchiver
	notifier Notifier

	conviction *ConvictionTracker
	projection atomic.Pointer[map[string]walletProj]
	logger     *slog.Logger

	cursor  int64
	scored  atomic.Uint64
	alerted atomic.Uint64
}

// New creates a Scorer. nonces, archiver and notifier may be nil.
func New(
	cfg Config,
	trades domain.TradeStore,
	wallets domain.WalletStore,
	alerts domain.InsiderAlertStore,
	cursors domain.CursorStore,
	volumes domain.VolumeCache,
	ages domain.AgeCache,
	markets MarketSource,
	nonces NonceSource,
	archiver AlertArchiver,
	notifier Notifier,
	logger *slog.Logger,
) *Scorer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MinTradeUSD <= 0 {
		cfg.MinTradeUSD = 200
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 50
	}
	if cfg.AlertRetentionDays <= 0 {
		cfg.AlertRetentionDays = 30
	}

	s := &Scorer{
		cfg:        cfg,
		trades:     trades,
		wallets:    wallets,
		alerts:     alerts,
		cursors:    cursors,
		volumes:    volumes,
		ages:       ages,
		markets:    markets,
		nonces:     nonces,
		archiver:   archiver,
		notifier:   notifier,
		conviction: NewConvictionTracker(),
		logger:     logger.With(slog.String("component", "scorer")),
	}
	empty := map[string]walletProj{}
	s.projection.Store(&empty)
	return s
}

// Scored returns the cumulative count of graded trades.
func (s *Scorer) Scored() uint64 { return s.scored.Load() }

// Alerted returns the cumulative count of written insider alerts.
func (s *Scorer) Alerted() uint64 { return s.alerted.Load() }

// Run initialises the cursor to the current head of the trade store and tails
// it until ctx is cancelled. The projection refresher and the retention sweep
// run alongside the poll loop.
func (s *Scorer) Run(ctx context.Context) error {
	if err := s.initCursor(ctx); err != nil {
		return err
	}
	if err := s.refreshProjection(ctx); err != nil {
		s.logger.WarnContext(ctx, "initial projection refresh failed",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pollLoop(ctx) })
	g.Go(func() error { return s.projectionLoop(ctx) })
	g.Go(func() error { return s.retentionLoop(ctx) })
	return g.Wait()
}

// initCursor starts at the present head: only trades arriving after startup
// are graded. The position is persisted so the cursor is observable.
func (s *Scorer) initCursor(ctx context.Context) error {
	maxID, err := s.trades.MaxID(ctx)
	if err != nil {
		return err
	}
	s.cursor = maxID
	if err := s.cursors.Set(ctx, cursorName, maxID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "cursor initialised", slog.Int64("position", maxID))
	return nil
}

func (s *Scorer) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fetches one batch past the cursor and grades it. A fetch error leaves
// the cursor in place; a failed row does not, so malformed rows are never
// retried.
func (s *Scorer) tick(ctx context.Context) {
	rows, err := s.trades.ListAfterID(ctx, s.cursor, s.cfg.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "trade fetch failed",
			slog.Int64("cursor", s.cursor),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(rows) == 0 {
		return
	}

	old := s.cursor
	for _, t := range rows {
		s.cursor = t.ID
		if t.USDValue < s.cfg.MinTradeUSD {
			continue
		}
		if err := s.score(ctx, t); err != nil {
			s.logger.WarnContext(ctx, "trade scoring failed",
				slog.String("trade_id", t.TradeID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.cursors.CompareAndSwap(ctx, cursorName, old, s.cursor); err != nil {
		if errors.Is(err, domain.ErrCursorConflict) {
			// Another instance moved the cursor; adopt its position to avoid
			// double-grading.
			if cur, getErr := s.cursors.Get(ctx, cursorName); getErr == nil && cur.Position > s.cursor {
				s.cursor = cur.Position
			}
			return
		}
		s.logger.ErrorContext(ctx, "cursor persist failed",
			slog.String("error", err.Error()),
		)
	}
}

// score grades one trade and writes an alert when the composite crosses the
// threshold.
func (s *Scorer) score(ctx context.Context, t domain.Trade) error {
	proj := *s.projection.Load()
	w, known := proj[t.Trader]

	ageDays, nonce := s.resolveAge(ctx, t.Trader, w, known)
	volume, volumeKnown := s.resolveVolume(ctx, t.ConditionID)

	scores := domain.SignalScores{
		WalletAge:       scoreWalletAge(ageDays, nonce),
		SizeVsLiquidity: scoreSizeVsLiquidity(t.USDValue, volume, volumeKnown),
		MarketNiche:     scoreMarketNiche(volume, volumeKnown),
		ExtremeOdds:     scoreExtremeOdds(t.Side, t.Price, t.USDValue),
		Conviction:      s.conviction.Observe(t.Trader, t.ConditionID, t.Side),
	}
	if known {
		scores.CategoryWinRate = scoreCategoryWinRate(w.winRateAll, w.tradeCountAll)
	}

	total, labels := composite(scores)
	s.scored.Add(1)

	if total < s.cfg.AlertThreshold {
		return nil
	}

	alert := domain.InsiderAlert{
		TradeID:       t.TradeID,
		Trader:        t.Trader,
		ConditionID:   t.ConditionID,
		MarketSlug:    t.MarketSlug,
		Side:          t.Side,
		Price:         t.Price,
		USDValue:      t.USDValue,
		Composite:     total,
		Scores:        scores,
		Signals:       labels,
		Profitability: profitability(w, known),
	}
	if err := s.alerts.Upsert(ctx, alert); err != nil {
		return err
	}
	s.alerted.Add(1)

	if s.notifier != nil {
		if err := s.notifier.InsiderAlert(ctx, alert); err != nil {
			s.logger.WarnContext(ctx, "insider notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if known {
		if err := s.wallets.UpdateInsiderScore(ctx, t.Trader, total); err != nil {
			s.logger.WarnContext(ctx, "insider score writeback failed",
				slog.String("address", t.Trader),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "insider alert",
		slog.String("trade_id", t.TradeID),
		slog.String("trader", t.Trader),
		slog.Int("composite", total),
		slog.Any("signals", labels),
	)
	return nil
}

// resolveAge returns the wallet's age in days and its nonce (nonceUnknown
// when unresolved). Resolution order: age cache, the wallet row's creation
// time, an "established" default for wallets with deep history, and finally
// the chain nonce translated to an age band.
func (s *Scorer) resolveAge(ctx context.Context, address string, w walletProj, known bool) (float64, int64) {
	nonce := nonceUnknown
	if known && w.nonce > 0 {
		nonce = int64(w.nonce)
	}

	if s.ages != nil {
		if ageDays, ok, err := s.ages.GetAge(ctx, address); err == nil && ok {
			return ageDays, nonce
		}
	}

	if known {
		if w.accountCreatedAt != nil {
			ageDays := time.Since(*w.accountCreatedAt).Hours() / 24
			s.cacheAge(ctx, address, ageDays)
			return ageDays, nonce
		}
		if w.tradeCountAll > 20 {
			s.cacheAge(ctx, address, establishedAgeDays)
			return establishedAgeDays, nonce
		}
	}

	if s.nonces != nil {
		if count, err := s.nonces.TransactionCount(ctx, address); err == nil {
			nonce = int64(count)
			ageDays := nonceAgeBand(count)
			s.cacheAge(ctx, address, ageDays)
			return ageDays, nonce
		}
	}

	// Unresolvable: treat as established so the signal stays quiet.
	return establishedAgeDays, nonce
}

// nonceAgeBand maps a transaction count to a coarse age in days.
func nonceAgeBand(nonce uint64) float64 {
	switch {
	case nonce <= 5:
		return 1
	case nonce <= 20:
		return 7
	case nonce <= 50:
		return 30
	}
	return establishedAgeDays
}

func (s *Scorer) cacheAge(ctx context.Context, address string, ageDays float64) {
	if s.ages == nil {
		return
	}
	if err := s.ages.SetAge(ctx, address, ageDays); err != nil {
		s.logger.DebugContext(ctx, "age cache write failed",
			slog.String("error", err.Error()),
		)
	}
}

// resolveVolume returns the market's 24h volume through the shared cache,
// falling back to the data API on a miss.
func (s *Scorer) resolveVolume(ctx context.Context, conditionID string) (float64, bool) {
	if s.volumes != nil {
		if volume, ok, err := s.volumes.GetVolume(ctx, conditionID); err == nil && ok {
			return volume, true
		}
	}

	market, found, err := s.markets.Market(ctx, conditionID)
	if err != nil || !found {
		return 0, false
	}
	if s.volumes != nil {
		if err := s.volumes.SetVolume(ctx, conditionID, market.Volume24h); err != nil {
			s.logger.DebugContext(ctx, "volume cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return market.Volume24h, true
}

// profitability snapshots the trader's standing at alert time.
func profitability(w walletProj, known bool) domain.ProfitabilityStatus {
	switch {
	case !known:
		return domain.ProfitabilityPending
	case w.copyScore >= 60 && w.profitFactor30d >= 1.5:
		return domain.ProfitabilityCopyable
	case w.pnlAll > 0:
		return domain.ProfitabilityProfitable
	case w.resolvedAll >= 15 && w.pnlAll <= 0:
		return domain.ProfitabilityUnprofitable
	}
	return domain.ProfitabilityUnknown
}

func (s *Scorer) projectionLoop(ctx context.Context) error {
	ticker := time.NewTicker(projectionRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.refreshProjection(ctx); err != nil {
				s.logger.WarnContext(ctx, "projection refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// refreshProjection rebuilds the wallet projection by paged full scan and
// publishes it atomically.
func (s *Scorer) refreshProjection(ctx context.Context) error {
	proj := make(map[string]walletProj)
	const pageSize = 1000
	for offset := 0; ; offset += pageSize {
		page, err := s.wallets.ListPage(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}
		for _, w := range page {
			proj[w.Address] = walletProj{
				copyScore:        w.CopyScore,
				profitFactor30d:  w.ProfitFactor30d,
				pnlAll:           w.AllTime.PnL,
				resolvedAll:      w.AllTime.Wins + w.AllTime.Losses,
				winRateAll:       w.AllTime.WinRate,
				tradeCountAll:    w.AllTime.TradeCount,
				accountCreatedAt: w.AccountCreatedAt,
				nonce:            w.Nonce,
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	s.projection.Store(&proj)
	return nil
}

func (s *Scorer) retentionLoop(ctx context.Context) error {
	ticker := time.NewTicker(retentionInterval)
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

// sweep archives and deletes alerts past retention. Rows are kept when the
// archive upload fails.
func (s *Scorer) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.AlertRetentionDays)

	if s.archiver != nil {
		archived, err := s.archiver.ArchiveInsiderAlerts(ctx, cutoff)
		if err != nil {
			s.logger.ErrorContext(ctx, "alert archive failed, skipping delete",
				slog.String("error", err.Error()),
			)
			return
		}
		if archived > 0 {
			s.logger.InfoContext(ctx, "insider alerts archived", slog.Int64("count", archived))
		}
	}

	deleted, err := s.alerts.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "alert retention delete failed",
			slog.String("error", err.Error()),
		)
	} else if deleted > 0 {
		s.logger.InfoContext(ctx, "insider alerts expired", slog.Int64("count", deleted))
	}
}

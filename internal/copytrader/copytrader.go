package copytrader

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/alanyoungcy/polysight/internal/platform/polymarket"
)

const (
	qualificationRefresh = 5 * time.Minute
	priceRefresh         = time.Minute
	defaultPrice         = 0.5
)

// Config holds the copy-trade evaluation parameters.
type Config struct {
	Enabled          bool
	Paper            bool
	WatchlistOnly    bool
	MinCopyScore     int           // ~60
	CopyFraction     float64       // of the source trade, ~0.10
	MinCopySizeUSD   float64       // ~$5
	MaxCopySizeUSD   float64       // ~$100
	MinTradeSizeUSD  float64       // ignore smaller source trades, ~$50
	MaxDelay         time.Duration // ignore older source trades, ~30s
	RecentCopyMemory int           // ~10000
}

// Notifier is the outbound alert surface. Optional.
type Notifier interface {
	CopyTradeExecuted(ctx context.Context, entry domain.CopyTradeLog) error
}

// qualification is the copy-on-write snapshot of qualified wallets and the
// watchlist set.
type qualification struct {
	scores map[string]int
	watch  map[string]struct{}
}

// Trader mirrors qualifying source trades through the CLOB client. It
// subscribes to the processor's enriched stream; evaluation runs inline on
// the stream goroutine and must stay cheap up to the point an order is
// actually placed.
type Trader struct {
	cfg Config

	live  polymarket.Clob
	paper polymarket.Clob

	risk    *RiskEngine
	tracker *PositionTracker
	books   polymarket.BookSource

	orders    domain.OrderStore
	copyLog   domain.CopyLogStore
	wallets   domain.WalletStore
	watchlist domain.WatchlistStore
	notifier  Notifier
	logger    *slog.Logger

	enabled  atomic.Bool
	useLive  atomic.Bool
	qual     atomic.Pointer[qualification]
	recent   *recentCopies
	copied   atomic.Uint64
	rejected atomic.Uint64
}

// New creates a Trader. live may be nil when only paper trading is
// configured; books and notifier may be nil.
func New(
	cfg Config,
	live, paper polymarket.Clob,
	risk *RiskEngine,
	tracker *PositionTracker,
	books polymarket.BookSource,
	orders domain.OrderStore,
	copyLog domain.CopyLogStore,
	wallets domain.WalletStore,
	watchlist domain.WatchlistStore,
	notifier Notifier,
	logger *slog.Logger,
) *Trader {
	if cfg.MinCopyScore <= 0 {
		cfg.MinCopyScore = 60
	}
	if cfg.CopyFraction <= 0 {
		cfg.CopyFraction = 0.10
	}
	if cfg.MinCopySizeUSD <= 0 {
		cfg.MinCopySizeUSD = 5
	}
	if cfg.MaxCopySizeUSD <= 0 {
		cfg.MaxCopySizeUSD = 100
	}
	if cfg.MinTradeSizeUSD <= 0 {
		cfg.MinTradeSizeUSD = 50
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.RecentCopyMemory <= 0 {
		cfg.RecentCopyMemory = 10_000
	}

	t := &Trader{
		cfg:       cfg,
		live:      live,
		paper:     paper,
		risk:      risk,
		tracker:   tracker,
		books:     books,
		orders:    orders,
		copyLog:   copyLog,
		wallets:   wallets,
		watchlist: watchlist,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "copytrader")),
		recent:    newRecentCopies(cfg.RecentCopyMemory),
	}
	t.enabled.Store(cfg.Enabled)
	t.useLive.Store(!cfg.Paper && live != nil)
	t.qual.Store(&qualification{
		scores: map[string]int{},
		watch:  map[string]struct{}{},
	})
	return t
}

// SetEnabled toggles copy trading at runtime.
func (t *Trader) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
	t.logger.Info("copy trading toggled", slog.Bool("enabled", enabled))
}

// SetPaper switches between paper and live execution. Switching to live
// without a live client is refused.
func (t *Trader) SetPaper(paper bool) {
	if !paper && t.live == nil {
		t.logger.Warn("live mode requested without a live CLOB client, staying paper")
		return
	}
	t.useLive.Store(!paper)
	t.logger.Info("execution mode switched", slog.Bool("paper", paper))
}

// SetKillSwitch flips the risk engine's manual kill switch.
func (t *Trader) SetKillSwitch(active bool, reason string) {
	t.risk.SetKillSwitch(active, reason)
}

// Copied returns the cumulative count of executed copies.
func (t *Trader) Copied() uint64 { return t.copied.Load() }

func (t *Trader) clob() polymarket.Clob {
	if t.useLive.Load() {
		return t.live
	}
	return t.paper
}

// Run loads the position book and keeps the qualification cache and position
// prices fresh until ctx is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.tracker.Load(ctx); err != nil {
		t.logger.WarnContext(ctx, "position restore failed, starting flat",
			slog.String("error", err.Error()),
		)
	}
	if err := t.refreshQualification(ctx); err != nil {
		t.logger.WarnContext(ctx, "initial qualification refresh failed",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.qualificationLoop(ctx) })
	if t.books != nil {
		g.Go(func() error { return t.priceLoop(ctx) })
	}
	return g.Wait()
}

// Handle evaluates one enriched trade. Qualification short-circuits are
// silent; risk rejections and executions are written to the copy log.
func (t *Trader) Handle(ctx context.Context, src domain.Trade) {
	if !t.enabled.Load() {
		return
	}

	q := t.qual.Load()
	if t.cfg.WatchlistOnly {
		if _, ok := q.watch[src.Trader]; !ok {
			return
		}
	}
	if t.recent.Contains(src.TradeID) {
		return
	}
	if src.USDValue < t.cfg.MinTradeSizeUSD {
		return
	}
	if time.Since(src.ExecutedAt) > t.cfg.MaxDelay {
		return
	}
	score, qualified := q.scores[src.Trader]
	if !qualified || score < t.cfg.MinCopyScore {
		return
	}

	sizeUSD, shares, price := t.size(src, score)

	if ok, reason := t.risk.CheckOrder(src.ConditionID, sizeUSD, src.Category); !ok {
		t.rejected.Add(1)
		t.record(ctx, domain.CopyTradeLog{
			SourceTrader:    src.Trader,
			SourceTradeID:   src.TradeID,
			SizeUSD:         sizeUSD,
			Shares:          shares,
			Price:           price,
			Status:          domain.CopyStatusRejected,
			RejectionReason: reason,
		})
		return
	}

	t.execute(ctx, src, sizeUSD, shares, price)
}

// size computes the copy order from the source trade: a fraction of the
// source notional, scaled by the wallet's score, clamped to the copy band
// and the single-order cap.
func (t *Trader) size(src domain.Trade, score int) (sizeUSD, shares, price float64) {
	price = src.Price
	if price <= 0 {
		price = defaultPrice
	}

	sizeUSD = src.USDValue * t.cfg.CopyFraction
	sizeUSD *= float64(score) / 100

	maxSize := t.cfg.MaxCopySizeUSD
	if single := t.risk.limits.MaxSingleOrderUSD; single > 0 && single < maxSize {
		maxSize = single
	}
	sizeUSD = math.Min(math.Max(sizeUSD, t.cfg.MinCopySizeUSD), maxSize)
	sizeUSD = math.Round(sizeUSD*100) / 100

	shares = math.Round(sizeUSD/price*100) / 100
	return sizeUSD, shares, price
}

// execute places the order and books the outcome.
func (t *Trader) execute(ctx context.Context, src domain.Trade, sizeUSD, shares, price float64) {
	order := domain.Order{
		TokenID:     src.AssetID,
		ConditionID: src.ConditionID,
		Side:        src.Side,
		Size:        shares,
		Price:       price,
		Status:      domain.OrderStatusPending,
		Type:        domain.OrderTypeGTC,
		Paper:       !t.useLive.Load(),
	}

	result, err := t.clob().PostOrder(ctx, order)
	entry := domain.CopyTradeLog{
		SourceTrader:  src.Trader,
		SourceTradeID: src.TradeID,
		OurOrderID:    result.OrderID,
		SizeUSD:       sizeUSD,
		Shares:        shares,
		Price:         price,
	}

	if err != nil {
		entry.Status = domain.CopyStatusFailed
		entry.RejectionReason = err.Error()
		t.record(ctx, entry)
		t.logger.ErrorContext(ctx, "copy order failed",
			slog.String("source_trade", src.TradeID),
			slog.String("error", err.Error()),
		)
		return
	}

	order.ID = result.OrderID
	order.Status = result.Status
	if order.Status == domain.OrderStatusFilled {
		order.FilledSize = shares
	}
	if err := t.orders.Create(ctx, order); err != nil {
		t.logger.ErrorContext(ctx, "order persist failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	t.recent.Add(src.TradeID)
	t.risk.RecordOrder(src.ConditionID, sizeUSD)

	if order.Status == domain.OrderStatusFilled {
		realized, closedUSD := t.tracker.ApplyFill(ctx, order.TokenID, order.ConditionID, order.Side, shares, price)
		if closedUSD > 0 {
			t.risk.RecordFill(order.ConditionID, closedUSD, realized)
		}
	}

	entry.Status = domain.CopyStatusCopied
	t.record(ctx, entry)
	t.copied.Add(1)

	if t.notifier != nil {
		if err := t.notifier.CopyTradeExecuted(ctx, entry); err != nil {
			t.logger.WarnContext(ctx, "copy notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	t.logger.InfoContext(ctx, "trade copied",
		slog.String("source_trader", src.Trader),
		slog.String("order_id", order.ID),
		slog.Float64("size_usd", sizeUSD),
		slog.Bool("paper", order.Paper),
	)
}

func (t *Trader) record(ctx context.Context, entry domain.CopyTradeLog) {
	if err := t.copyLog.Insert(ctx, entry); err != nil {
		t.logger.ErrorContext(ctx, "copy log insert failed",
			slog.String("source_trade", entry.SourceTradeID),
			slog.String("error", err.Error()),
		)
	}
}

func (t *Trader) qualificationLoop(ctx context.Context) error {
	ticker := time.NewTicker(qualificationRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.refreshQualification(ctx); err != nil {
				t.logger.WarnContext(ctx, "qualification refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// refreshQualification rebuilds the qualified-wallet and watchlist snapshot.
func (t *Trader) refreshQualification(ctx context.Context) error {
	qualified, err := t.wallets.ListQualified(ctx, t.cfg.MinCopyScore)
	if err != nil {
		return err
	}
	scores := make(map[string]int, len(qualified))
	for _, w := range qualified {
		scores[w.Address] = w.CopyScore
	}

	entries, err := t.watchlist.List(ctx)
	if err != nil {
		return err
	}
	watch := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		watch[e.Address] = struct{}{}
	}

	t.qual.Store(&qualification{scores: scores, watch: watch})
	return nil
}

// priceLoop marks the open book to fresh quotes.
func (t *Trader) priceLoop(ctx context.Context) error {
	ticker := time.NewTicker(priceRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.refreshPrices(ctx)
		}
	}
}

func (t *Trader) refreshPrices(ctx context.Context) {
	positions := t.tracker.Positions()
	if len(positions) == 0 {
		return
	}

	quotes := make(map[string]float64, len(positions))
	for _, pos := range positions {
		bid, ask, err := t.books.BestBidAsk(ctx, pos.TokenID)
		if err != nil {
			t.logger.DebugContext(ctx, "quote fetch failed",
				slog.String("token_id", pos.TokenID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if bid > 0 && ask > 0 {
			quotes[pos.TokenID] = (bid + ask) / 2
		}
	}
	if len(quotes) > 0 {
		t.tracker.UpdatePrices(ctx, quotes)
	}
}

// recentCopies is the LRU-ish memory of already-copied trade ids: a set plus
// insertion order, evicting the oldest past the cap.
type recentCopies struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
	order []string
}

func newRecentCopies(limit int) *recentCopies {
	return &recentCopies{
		limit: limit,
		seen:  make(map[string]struct{}, limit),
	}
}

func (r *recentCopies) Contains(tradeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[tradeID]
	return ok
}

func (r *recentCopies) Add(tradeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[tradeID]; ok {
		return
	}
	r.seen[tradeID] = struct{}{}
	r.order = append(r.order, tradeID)

	for len(r.order) > r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, oldest)
	}
}

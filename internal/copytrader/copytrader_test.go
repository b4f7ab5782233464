package copytrader

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/alanyoungcy/polysight/internal/platform/polymarket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOrderStore struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (f *fakeOrderStore) Create(_ context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return nil
}
func (f *fakeOrderStore) UpdateStatus(context.Context, string, domain.OrderStatus, float64, string) error {
	return nil
}
func (f *fakeOrderStore) GetByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}
func (f *fakeOrderStore) ListOpen(context.Context) ([]domain.Order, error) { return nil, nil }

type fakeCopyLog struct {
	mu      sync.Mutex
	entries []domain.CopyTradeLog
}

func (f *fakeCopyLog) Insert(_ context.Context, entry domain.CopyTradeLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

type fakeQualWalletStore struct {
	qualified []domain.Wallet
}

func (f *fakeQualWalletStore) Upsert(context.Context, domain.Wallet) error { return nil }
func (f *fakeQualWalletStore) UpdateInsiderScore(context.Context, string, int) error {
	return nil
}
func (f *fakeQualWalletStore) Get(context.Context, string) (domain.Wallet, error) {
	return domain.Wallet{}, domain.ErrNotFound
}
func (f *fakeQualWalletStore) ListAddresses(context.Context) ([]string, error) { return nil, nil }
func (f *fakeQualWalletStore) ListMetricsAges(context.Context) (map[string]time.Time, error) {
	return nil, nil
}
func (f *fakeQualWalletStore) ListPage(context.Context, domain.ListOpts) ([]domain.Wallet, error) {
	return nil, nil
}
func (f *fakeQualWalletStore) ListQualified(context.Context, int) ([]domain.Wallet, error) {
	return f.qualified, nil
}

type fakeWatchlist struct {
	entries []domain.WatchlistEntry
}

func (f *fakeWatchlist) List(context.Context) ([]domain.WatchlistEntry, error) {
	return f.entries, nil
}

func newTestTrader(t *testing.T, cfg Config, limits RiskLimits, qualified []domain.Wallet) (*Trader, *fakeOrderStore, *fakeCopyLog) {
	t.Helper()

	orders := &fakeOrderStore{}
	copyLog := &fakeCopyLog{}
	tracker := NewPositionTracker(newFakePositionStore(), discardLogger())

	trader := New(
		cfg,
		nil, polymarket.NewPaperClob(nil),
		NewRiskEngine(limits, nil),
		tracker,
		nil,
		orders,
		copyLog,
		&fakeQualWalletStore{qualified: qualified},
		&fakeWatchlist{},
		nil,
		discardLogger(),
	)
	require.NoError(t, trader.refreshQualification(context.Background()))
	return trader, orders, copyLog
}

func sourceTrade(trader string, usd float64) domain.Trade {
	return domain.Trade{
		TradeID:     "src-1",
		Trader:      trader,
		ConditionID: "c1",
		AssetID:     "tok1",
		Side:        domain.TradeSideBuy,
		Price:       0.40,
		USDValue:    usd,
		ExecutedAt:  time.Now().UTC(),
	}
}

func TestHandle_CopiesQualifyingTrade(t *testing.T) {
	cfg := Config{Enabled: true}
	trader, orders, copyLog := newTestTrader(t, cfg, permissiveLimits(), []domain.Wallet{
		{Address: "0xaa", CopyScore: 80},
	})

	trader.Handle(context.Background(), sourceTrade("0xaa", 1_000))

	require.Len(t, orders.orders, 1)
	order := orders.orders[0]
	assert.Equal(t, "tok1", order.TokenID)
	assert.True(t, order.Paper)
	// $1000 * 0.10 fraction * 0.80 score scaling = $80; 80 / 0.40 = 200 shares.
	assert.InDelta(t, 200, order.Size, 1e-9)

	require.Len(t, copyLog.entries, 1)
	entry := copyLog.entries[0]
	assert.Equal(t, domain.CopyStatusCopied, entry.Status)
	assert.InDelta(t, 80, entry.SizeUSD, 1e-9)
	assert.Equal(t, uint64(1), trader.Copied())

	// The same source trade is never copied twice.
	trader.Handle(context.Background(), sourceTrade("0xaa", 1_000))
	assert.Len(t, orders.orders, 1)
}

func TestHandle_SilentShortCircuits(t *testing.T) {
	cfg := Config{Enabled: true}
	trader, orders, copyLog := newTestTrader(t, cfg, permissiveLimits(), []domain.Wallet{
		{Address: "0xaa", CopyScore: 80},
	})

	// Below the source-size floor.
	small := sourceTrade("0xaa", 20)
	small.TradeID = "src-small"
	trader.Handle(context.Background(), small)

	// Too old.
	stale := sourceTrade("0xaa", 1_000)
	stale.TradeID = "src-stale"
	stale.ExecutedAt = time.Now().UTC().Add(-5 * time.Minute)
	trader.Handle(context.Background(), stale)

	// Unqualified trader.
	unknown := sourceTrade("0xzz", 1_000)
	unknown.TradeID = "src-unknown"
	trader.Handle(context.Background(), unknown)

	assert.Empty(t, orders.orders)
	assert.Empty(t, copyLog.entries)
}

func TestHandle_DisabledDoesNothing(t *testing.T) {
	cfg := Config{Enabled: false}
	trader, orders, copyLog := newTestTrader(t, cfg, permissiveLimits(), []domain.Wallet{
		{Address: "0xaa", CopyScore: 80},
	})

	trader.Handle(context.Background(), sourceTrade("0xaa", 1_000))
	assert.Empty(t, orders.orders)
	assert.Empty(t, copyLog.entries)
}

func TestHandle_RiskRejectionIsLogged(t *testing.T) {
	cfg := Config{Enabled: true}
	trader, orders, copyLog := newTestTrader(t, cfg, permissiveLimits(), []domain.Wallet{
		{Address: "0xaa", CopyScore: 80},
	})
	trader.SetKillSwitch(true, "drill")

	trader.Handle(context.Background(), sourceTrade("0xaa", 1_000))

	assert.Empty(t, orders.orders)
	require.Len(t, copyLog.entries, 1)
	entry := copyLog.entries[0]
	assert.Equal(t, domain.CopyStatusRejected, entry.Status)
	assert.Contains(t, entry.RejectionReason, "kill switch")
}

func TestHandle_WatchlistOnly(t *testing.T) {
	cfg := Config{Enabled: true, WatchlistOnly: true}
	trader, orders, _ := newTestTrader(t, cfg, permissiveLimits(), []domain.Wallet{
		{Address: "0xaa", CopyScore: 80},
	})

	// Qualified but not on the watchlist.
	trader.Handle(context.Background(), sourceTrade("0xaa", 1_000))
	assert.Empty(t, orders.orders)
}

func TestSize_Clamping(t *testing.T) {
	cfg := Config{Enabled: true}
	trader, _, _ := newTestTrader(t, cfg, permissiveLimits(), nil)

	// Large source clamps to MaxCopySizeUSD.
	sizeUSD, shares, price := trader.size(sourceTrade("0xaa", 50_000), 100)
	assert.InDelta(t, 100, sizeUSD, 1e-9)
	assert.InDelta(t, 250, shares, 1e-9)
	assert.InDelta(t, 0.40, price, 1e-9)

	// Tiny source clamps up to MinCopySizeUSD.
	sizeUSD, _, _ = trader.size(sourceTrade("0xaa", 60), 60)
	assert.InDelta(t, 5, sizeUSD, 1e-9)

	// A zero price falls back to the default midpoint.
	src := sourceTrade("0xaa", 1_000)
	src.Price = 0
	_, shares, price = trader.size(src, 100)
	assert.InDelta(t, defaultPrice, price, 1e-9)
	assert.InDelta(t, 200, shares, 1e-9) // $100 / 0.5
}

func TestSize_SingleOrderCapTightensBand(t *testing.T) {
	limits := permissiveLimits()
	limits.MaxSingleOrderUSD = 40
	cfg := Config{Enabled: true}
	trader, _, _ := newTestTrader(t, cfg, limits, nil)

	sizeUSD, _, _ := trader.size(sourceTrade("0xaa", 50_000), 100)
	assert.InDelta(t, 40, sizeUSD, 1e-9)
}

func TestRecentCopies_Eviction(t *testing.T) {
	r := newRecentCopies(3)
	r.Add("a")
	r.Add("b")
	r.Add("c")
	assert.True(t, r.Contains("a"))

	r.Add("d")
	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("b"))
	assert.True(t, r.Contains("d"))

	// Re-adding an existing id does not evict anything.
	r.Add("d")
	assert.True(t, r.Contains("b"))
	assert.True(t, r.Contains("c"))
}

func TestSetPaper_RefusesLiveWithoutClient(t *testing.T) {
	cfg := Config{Enabled: true, Paper: true}
	trader, _, _ := newTestTrader(t, cfg, permissiveLimits(), nil)

	trader.SetPaper(false)
	assert.False(t, trader.useLive.Load())
}

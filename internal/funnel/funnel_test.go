package funnel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWalletStore struct {
	wallets []domain.Wallet
}

func (f *fakeWalletStore) Upsert(context.Context, domain.Wallet) error           { return nil }
func (f *fakeWalletStore) UpdateInsiderScore(context.Context, string, int) error { return nil }
func (f *fakeWalletStore) Get(context.Context, string) (domain.Wallet, error) {
	return domain.Wallet{}, domain.ErrNotFound
}
func (f *fakeWalletStore) ListAddresses(context.Context) ([]string, error) { return nil, nil }
func (f *fakeWalletStore) ListMetricsAges(context.Context) (map[string]time.Time, error) {
	return nil, nil
}
func (f *fakeWalletStore) ListPage(_ context.Context, opts domain.ListOpts) ([]domain.Wallet, error) {
	if opts.Offset >= len(f.wallets) {
		return nil, nil
	}
	return f.wallets, nil
}
func (f *fakeWalletStore) ListQualified(context.Context, int) ([]domain.Wallet, error) {
	return nil, nil
}

type fakeFunnelStore struct {
	runID    int64
	status   string
	errMsg   string
	stages   []domain.StageStats
	logs     map[int]string
	createFn func() (int64, error)
}

func (f *fakeFunnelStore) CreateRun(context.Context) (int64, error) {
	if f.createFn != nil {
		return f.createFn()
	}
	f.runID++
	return f.runID, nil
}
func (f *fakeFunnelStore) FinishRun(_ context.Context, _ int64, status, errMsg string) error {
	f.status = status
	f.errMsg = errMsg
	return nil
}
func (f *fakeFunnelStore) RecordStage(_ context.Context, stats domain.StageStats) error {
	f.stages = append(f.stages, stats)
	return nil
}
func (f *fakeFunnelStore) AppendLog(_ context.Context, _ int64, stage int, message string) error {
	if f.logs == nil {
		f.logs = make(map[int]string)
	}
	f.logs[stage] = message
	return nil
}

type fakeLocks struct {
	held bool
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

func testWallet(address string, pnl, winRate, volume float64, trades int) domain.Wallet {
	return domain.Wallet{
		Address: address,
		AllTime: domain.PeriodMetrics{
			PnL:        pnl,
			WinRate:    winRate,
			Volume:     volume,
			TradeCount: trades,
			ROI:        20,
		},
	}
}

func TestStagePolicy_Passes(t *testing.T) {
	w := testWallet("0xaa", 2_000, 60, 50_000, 30)
	w.ProfitFactor30d = 1.8

	assert.True(t, StagePolicy{}.passes(w)) // no constraints
	assert.True(t, StagePolicy{MinVolumeUSD: 10_000, MinTradeCount: 20, MinWinRate: 55}.passes(w))
	assert.False(t, StagePolicy{MinVolumeUSD: 100_000}.passes(w))
	assert.False(t, StagePolicy{MinTradeCount: 50}.passes(w))
	assert.False(t, StagePolicy{MinWinRate: 70}.passes(w))
	assert.False(t, StagePolicy{MinROI: 30}.passes(w))
	assert.False(t, StagePolicy{MinPnLUSD: 5_000}.passes(w))
	assert.False(t, StagePolicy{MinProfitFactor: 2.0}.passes(w))

	w.AllTime.MaxDrawdown = 80
	assert.False(t, StagePolicy{MaxDrawdown: 60}.passes(w))
}

func TestClassify(t *testing.T) {
	insider := testWallet("0xaa", 100, 50, 0, 10)
	insider.InsiderScore = 75
	assert.Equal(t, domain.WalletClassInsider, classify(insider, StagePolicy{}))

	sharp := testWallet("0xbb", 100, 50, 0, 10)
	sharp.ProfitFactor30d = 2.0
	sharp.Last30d.ROI = 25
	assert.Equal(t, domain.WalletClassSharp, classify(sharp, StagePolicy{}))

	grinder := testWallet("0xcc", 100, 60, 0, 10)
	assert.Equal(t, domain.WalletClassGrinder, classify(grinder, StagePolicy{}))

	unprofiled := testWallet("0xdd", -100, 40, 0, 10)
	assert.Equal(t, domain.WalletClassUnprofiled, classify(unprofiled, StagePolicy{}))

	// The stage-6 policy raises the sharp bar.
	assert.Equal(t, domain.WalletClassGrinder, classify(sharp, StagePolicy{MinProfitFactor: 3.0}))
}

func TestRunOnce_FullPass(t *testing.T) {
	wallets := &fakeWalletStore{wallets: []domain.Wallet{
		testWallet("0xaa", 2_000, 60, 50_000, 30),  // survives everything
		testWallet("0xbb", 1_500, 58, 5_000, 25),   // eliminated at stage 1
		testWallet("0xcc", -500, 40, 50_000, 30),   // eliminated at stage 3
	}}
	store := &fakeFunnelStore{}

	r := NewRunner(Config{
		Stages: [6]StagePolicy{
			{MinVolumeUSD: 10_000},
			{MinTradeCount: 20},
			{MinWinRate: 55},
			{MinPnLUSD: 1_000},
			{},
			{},
		},
	}, wallets, store, nil, nil, discardLogger())

	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, "completed", store.status)
	require.Len(t, store.stages, 6)

	// Stage 1 drops the low-volume wallet.
	assert.Equal(t, 3, store.stages[0].Processed)
	assert.Equal(t, 2, store.stages[0].Qualified)
	assert.Equal(t, 1, store.stages[0].Eliminated)

	// Stage 3 drops the losing wallet.
	assert.Equal(t, 2, store.stages[2].Processed)
	assert.Equal(t, 1, store.stages[2].Qualified)

	// Stage 5 annotates without eliminating.
	assert.Equal(t, 1, store.stages[4].Processed)
	assert.Equal(t, 1, store.stages[4].Qualified)
	assert.Contains(t, store.logs[5], "behavior:")

	// Stage 6 classifies: a profitable 60% win-rate wallet is a grinder.
	assert.Equal(t, 1, store.stages[5].Qualified)
	assert.Contains(t, store.logs[6], "1 grinder")
}

func TestRunOnce_LockHeld(t *testing.T) {
	store := &fakeFunnelStore{}
	r := NewRunner(Config{}, &fakeWalletStore{}, store, &fakeLocks{held: true}, nil, discardLogger())

	err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Empty(t, store.stages)
}

func TestRunOnce_FailureFinishesRunAsFailed(t *testing.T) {
	store := &fakeFunnelStore{}
	boom := errors.New("create failed")
	store.createFn = func() (int64, error) { return 0, boom }

	r := NewRunner(Config{}, &fakeWalletStore{}, store, nil, nil, discardLogger())
	err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

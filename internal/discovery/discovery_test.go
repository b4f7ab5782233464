package discovery

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polysight/internal/domain"
)

func newTestEngine(queueSize int) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(Config{
		MinTradeUSD: 1_000,
		QueueSize:   queueSize,
		Cooldown:    24 * time.Hour,
	}, nil, nil, nil, logger)
}

func TestConsider_BelowThresholdIgnored(t *testing.T) {
	e := newTestEngine(10)

	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 500})

	assert.Empty(t, e.queue)
}

func TestConsider_QueuesUnknownWallet(t *testing.T) {
	e := newTestEngine(10)

	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 2_000})

	assert.Len(t, e.queue, 1)
	assert.Equal(t, "0xaaa", <-e.queue)
}

func TestConsider_PendingWalletNotRequeued(t *testing.T) {
	e := newTestEngine(10)

	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 2_000})
	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 3_000})

	assert.Len(t, e.queue, 1)
	assert.Zero(t, e.Dropped())
}

func TestConsider_KnownWalletInsideCooldownSkipped(t *testing.T) {
	e := newTestEngine(10)
	e.known["0xaaa"] = struct{}{}
	e.lastAnalyzed["0xaaa"] = time.Now().Add(-1 * time.Hour)

	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 2_000})

	assert.Empty(t, e.queue)
}

func TestConsider_StaleWalletRequeued(t *testing.T) {
	e := newTestEngine(10)
	e.known["0xaaa"] = struct{}{}
	e.lastAnalyzed["0xaaa"] = time.Now().Add(-48 * time.Hour)

	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 2_000})

	assert.Len(t, e.queue, 1)
}

func TestConsider_FullQueueDropsAndReleases(t *testing.T) {
	e := newTestEngine(1)

	e.Consider(domain.Trade{Trader: "0xaaa", USDValue: 2_000})
	e.Consider(domain.Trade{Trader: "0xbbb", USDValue: 2_000})

	assert.Len(t, e.queue, 1)
	assert.Equal(t, uint64(1), e.Dropped())

	// The dropped wallet is no longer pending, so its next trade requeues it.
	<-e.queue
	e.Consider(domain.Trade{Trader: "0xbbb", USDValue: 2_000})
	assert.Len(t, e.queue, 1)
}

func TestCashBalance(t *testing.T) {
	open := []domain.OpenPosition{
		{CurrentValue: 300},
		{CurrentValue: 200},
	}

	assert.InDelta(t, 500, cashBalance(1_000, open), 1e-9)

	// Marked value above total reads as zero cash, not negative.
	assert.Zero(t, cashBalance(400, open))
}

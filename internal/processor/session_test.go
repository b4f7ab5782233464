package processor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polysight/internal/domain"
)

var sessionNow = time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)

func sessionTestTrade(trader, conditionID string, side domain.TradeSide, usd float64) domain.Trade {
	return domain.Trade{
		Trader:      trader,
		ConditionID: conditionID,
		Side:        side,
		USDValue:    usd,
		ExecutedAt:  sessionNow,
		ReceivedAt:  sessionNow,
	}
}

func TestSessionScorer_LargeSingleTrade(t *testing.T) {
	s := NewSessionScorer()
	score, flags := s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 6_000))
	assert.Equal(t, 30, score)
	assert.Contains(t, flags, "Large Single Trade")
}

func TestSessionScorer_SmallQuietTrade(t *testing.T) {
	s := NewSessionScorer()
	score, flags := s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100))
	assert.Zero(t, score)
	assert.Empty(t, flags)
}

func TestSessionScorer_RepeatedMarket(t *testing.T) {
	s := NewSessionScorer()
	var score int
	var flags []string
	for i := 0; i < 5; i++ {
		// Alternate sides so the one-sided flag stays out of the way.
		side := domain.TradeSideBuy
		if i%2 == 1 {
			side = domain.TradeSideSell
		}
		score, flags = s.Observe(sessionTestTrade("0xaa", "c1", side, 100))
	}
	assert.Equal(t, 25, score)
	assert.Contains(t, flags, "Repeated Market Activity")
}

func TestSessionScorer_SessionVolume(t *testing.T) {
	s := NewSessionScorer()
	var score int
	var flags []string
	for i := 0; i < 3; i++ {
		side := domain.TradeSideBuy
		if i == 1 {
			side = domain.TradeSideSell
		}
		score, flags = s.Observe(sessionTestTrade("0xaa", fmt.Sprintf("c%d", i), side, 20_000))
	}
	// 60k session volume plus three $20k singles: volume + big-trade points.
	assert.Equal(t, 55, score)
	assert.Contains(t, flags, "High Session Volume")
}

func TestSessionScorer_OffHours(t *testing.T) {
	s := NewSessionScorer()
	trade := sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100)
	trade.ExecutedAt = time.Date(2026, 8, 20, 3, 30, 0, 0, time.UTC)

	score, flags := s.Observe(trade)
	assert.Equal(t, 10, score)
	assert.Contains(t, flags, "Off-Hours Trading")
}

func TestSessionScorer_OneSidedFlow(t *testing.T) {
	s := NewSessionScorer()
	var score int
	var flags []string
	for i := 0; i < 3; i++ {
		score, flags = s.Observe(sessionTestTrade("0xaa", fmt.Sprintf("c%d", i), domain.TradeSideBuy, 100))
	}
	assert.Equal(t, 10, score)
	assert.Contains(t, flags, "One-Sided Flow")
}

func TestSessionScorer_WindowExpiry(t *testing.T) {
	s := NewSessionScorer()
	old := sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100)
	old.ReceivedAt = sessionNow.Add(-3 * time.Hour)
	s.Observe(old)
	s.Observe(old)

	// The stale history is dropped before the new trade is scored, so no
	// one-sided or repeat flags survive.
	score, flags := s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100))
	assert.Zero(t, score)
	assert.Empty(t, flags)
}

func TestSessionScorer_Forget(t *testing.T) {
	s := NewSessionScorer()
	for i := 0; i < 3; i++ {
		s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100))
	}
	s.Forget("0xaa")

	score, _ := s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100))
	assert.Zero(t, score)
}

func TestSessionScorer_SessionsAreDistinct(t *testing.T) {
	s := NewSessionScorer()
	s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100))
	s.Observe(sessionTestTrade("0xaa", "c1", domain.TradeSideBuy, 100))

	score, _ := s.Observe(sessionTestTrade("0xbb", "c1", domain.TradeSideBuy, 100))
	assert.Zero(t, score)
}

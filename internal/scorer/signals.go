// Package scorer tails the trade store and grades every qualifying trade
// with a six-signal insider composite, writing an alert row per suspicious
// trade.
package scorer

import (
	"math"
	"sync"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// Signal weights. They sum to 1.0.
const (
	weightWalletAge       = 0.20
	weightSizeVsLiquidity = 0.20
	weightMarketNiche     = 0.15
	weightExtremeOdds     = 0.20
	weightConviction      = 0.15
	weightCategoryWinRate = 0.10
)

// Label per signal, attached to the alert when the sub-score reaches 60.
const (
	labelWalletAge       = "Fresh Wallet"
	labelSizeVsLiquidity = "Oversized"
	labelMarketNiche     = "Niche Market"
	labelExtremeOdds     = "Extreme Odds"
	labelConviction      = "High Conviction"
	labelCategoryWinRate = "Elite Win Rate"
)

const labelThreshold = 60

// nonceUnknown marks an unresolved transaction count; the age signal then
// rests on the age band alone.
const nonceUnknown = int64(-1)

// scoreWalletAge blends the account-age band with the on-chain nonce band
// 60/40. Younger and emptier wallets score higher.
func scoreWalletAge(ageDays float64, nonce int64) float64 {
	var ageScore float64
	switch {
	case ageDays <= 1:
		ageScore = 100
	case ageDays <= 7:
		ageScore = 70
	case ageDays <= 30:
		ageScore = 30
	}

	if nonce == nonceUnknown {
		return ageScore
	}

	var nonceScore float64
	switch {
	case nonce <= 5:
		nonceScore = 100
	case nonce <= 20:
		nonceScore = 60
	case nonce <= 50:
		nonceScore = 20
	}
	return 0.6*ageScore + 0.4*nonceScore
}

// scoreSizeVsLiquidity grades the trade's share of the market's 24h volume.
func scoreSizeVsLiquidity(usd, volume24h float64, volumeKnown bool) float64 {
	if !volumeKnown {
		return 50
	}
	if volume24h <= 0 {
		return 100
	}
	switch r := usd / volume24h; {
	case r > 0.20:
		return 100
	case r > 0.10:
		return 70
	case r > 0.05:
		return 40
	}
	return 0
}

// scoreMarketNiche grades how thinly traded the market is.
func scoreMarketNiche(volume24h float64, volumeKnown bool) float64 {
	if !volumeKnown {
		return 50
	}
	switch {
	case volume24h < 10_000:
		return 100
	case volume24h < 50_000:
		return 70
	case volume24h < 200_000:
		return 30
	}
	return 0
}

// scoreExtremeOdds grades conviction bets at long odds. Buying a heavy
// favourite is never suspicious, and anything under $500 is noise.
func scoreExtremeOdds(side domain.TradeSide, price, usd float64) float64 {
	if usd < 500 {
		return 0
	}

	switch side {
	case domain.TradeSideBuy:
		switch {
		case price <= 0.10:
			if usd >= 5_000 {
				return 100
			}
			if usd >= 1_000 {
				return 80
			}
			return 60
		case price <= 0.20:
			if usd >= 5_000 {
				return 70
			}
			if usd >= 1_000 {
				return 40
			}
		}
	case domain.TradeSideSell:
		if price >= 0.85 {
			if usd >= 5_000 {
				return 80
			}
			if usd >= 1_000 {
				return 50
			}
		}
	}
	return 0
}

// scoreCategoryWinRate grades an improbably strong historical record.
func scoreCategoryWinRate(winRate float64, tradeCount int) float64 {
	if tradeCount < 10 {
		return 0
	}
	switch {
	case winRate >= 90:
		return 100
	case winRate >= 80:
		return 60
	case winRate >= 70:
		return 30
	}
	return 0
}

const (
	convictionMaxPerKey = 50
	convictionMaxKeys   = 100_000
)

// ConvictionTracker remembers the recent side history per (trader, condition)
// and grades how one-sided it is. Histories are capped per key; the whole
// cache is dropped if the key count runs away.
type ConvictionTracker struct {
	mu    sync.Mutex
	sides map[string][]domain.TradeSide
}

// NewConvictionTracker creates an empty tracker.
func NewConvictionTracker() *ConvictionTracker {
	return &ConvictionTracker{sides: make(map[string][]domain.TradeSide)}
}

// Observe records the trade's side and returns the conviction score for the
// history including it. A single observation scores 0.
func (c *ConvictionTracker) Observe(trader, conditionID string, side domain.TradeSide) float64 {
	key := trader + "|" + conditionID

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sides) >= convictionMaxKeys {
		c.sides = make(map[string][]domain.TradeSide)
	}

	history := append(c.sides[key], side)
	if len(history) > convictionMaxPerKey {
		history = history[len(history)-convictionMaxPerKey:]
	}
	c.sides[key] = history

	total := len(history)
	if total < 2 {
		return 0
	}

	var buys int
	for _, s := range history {
		if s == domain.TradeSideBuy {
			buys++
		}
	}
	dominant := buys
	if sells := total - buys; sells > dominant {
		dominant = sells
	}

	switch r := float64(dominant) / float64(total); {
	case r == 1.0 && total >= 3:
		return 100
	case r >= 0.90 && total >= 3:
		return 60
	case r >= 0.80 && total >= 5:
		return 30
	}
	return 0
}

// composite folds the sub-scores into the rounded weighted total and the
// label set for sub-scores at or above the threshold.
func composite(s domain.SignalScores) (int, []string) {
	weighted := weightWalletAge*s.WalletAge +
		weightSizeVsLiquidity*s.SizeVsLiquidity +
		weightMarketNiche*s.MarketNiche +
		weightExtremeOdds*s.ExtremeOdds +
		weightConviction*s.Conviction +
		weightCategoryWinRate*s.CategoryWinRate

	var labels []string
	for _, l := range []struct {
		score float64
		label string
	}{
		{s.WalletAge, labelWalletAge},
		{s.SizeVsLiquidity, labelSizeVsLiquidity},
		{s.MarketNiche, labelMarketNiche},
		{s.ExtremeOdds, labelExtremeOdds},
		{s.Conviction, labelConviction},
		{s.CategoryWinRate, labelCategoryWinRate},
	} {
		if l.score >= labelThreshold {
			labels = append(labels, l.label)
		}
	}
	return int(math.Round(weighted)), labels
}

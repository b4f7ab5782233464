package discovery

import (
	"math"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/alanyoungcy/polysight/internal/platform/polymarket"
)

const (
	window7d  = 7 * 24 * time.Hour
	window30d = 30 * 24 * time.Hour
)

// WalletMetrics is everything ComputeMetrics derives for one wallet.
type WalletMetrics struct {
	AllTime         domain.PeriodMetrics
	Last7d          domain.PeriodMetrics
	Last30d         domain.PeriodMetrics
	ProfitFactor30d float64
}

// ComputeMetrics derives the all-time and windowed period metrics from the
// folded trades and the wallet's current cash balance.
//
// All-time accounting: with R the realized pnl, U the unrealized pnl,
// T = R + U and B the total bought across resolved trades, initial capital is
// balance - T, falling back to B when that is not positive. ROI is T over
// initial capital.
func ComputeMetrics(folded []domain.FoldedTrade, balance float64, now time.Time) WalletMetrics {
	var m WalletMetrics

	var realized, unrealized, bought float64
	var resolved []domain.FoldedTrade
	for _, t := range folded {
		if t.Resolved {
			realized += t.TotalPnL
			bought += t.TotalBought
			resolved = append(resolved, t)
		} else {
			unrealized += t.TotalPnL
		}
	}
	total := realized + unrealized

	initialCapital := balance - total
	if initialCapital <= 0 {
		initialCapital = bought
	}

	all := domain.PeriodMetrics{
		PnL:        total,
		Volume:     bought,
		TradeCount: len(folded),
	}
	switch {
	case initialCapital > 0:
		all.ROI = total / initialCapital * 100
	case total < 0 && balance == 0:
		all.ROI = -100
	default:
		all.ROI = 0
	}
	all.Wins, all.Losses, all.WinRate = winRate(resolved)

	sortByResolvedAt(resolved)
	all.MaxDrawdown = maxDrawdown(resolved, initialCapital, bought)

	m.AllTime = all
	m.Last7d = windowMetrics(resolved, now.Add(-window7d))
	m.Last30d = windowMetrics(resolved, now.Add(-window30d))
	m.ProfitFactor30d = profitFactor(resolved, now.Add(-window30d))
	return m
}

// windowMetrics applies the period formulae to resolved trades inside the
// window. ROI uses the window volume as the denominator; the drawdown replay
// is seeded with the window volume. trades must already be sorted by
// resolved time.
func windowMetrics(trades []domain.FoldedTrade, since time.Time) domain.PeriodMetrics {
	var inWindow []domain.FoldedTrade
	for _, t := range trades {
		if !t.ResolvedAt.Before(since) {
			inWindow = append(inWindow, t)
		}
	}

	var m domain.PeriodMetrics
	m.TradeCount = len(inWindow)
	for _, t := range inWindow {
		m.PnL += t.TotalPnL
		m.Volume += t.TotalBought
	}
	if m.Volume > 0 {
		m.ROI = m.PnL / m.Volume * 100
	}
	m.Wins, m.Losses, m.WinRate = winRate(inWindow)
	m.MaxDrawdown = maxDrawdown(inWindow, m.Volume, m.Volume)
	return m
}

func winRate(trades []domain.FoldedTrade) (wins, losses int, rate float64) {
	for _, t := range trades {
		switch {
		case t.TotalPnL > 0:
			wins++
		case t.TotalPnL < 0:
			losses++
		}
	}
	if wins+losses > 0 {
		rate = float64(wins) / float64(wins+losses) * 100
	}
	return wins, losses, rate
}

// maxDrawdown replays resolved trades in chronological order and returns the
// largest peak-to-trough decline as a percentage, capped at 100. The replay
// balance is seeded with initial capital when positive, otherwise with the
// resolved volume.
func maxDrawdown(trades []domain.FoldedTrade, initialCapital, volume float64) float64 {
	seed := initialCapital
	if seed <= 0 {
		seed = volume
	}
	if seed <= 0 {
		return 0
	}

	balance := seed
	peak := seed
	var maxDD float64
	for _, t := range trades {
		balance += t.TotalPnL
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return math.Min(maxDD*100, 100)
}

// profitFactor is gross wins over gross losses for resolved trades inside the
// window. No losses and some wins reads as 99 (effectively infinite); no
// resolved trades reads as 0.
func profitFactor(trades []domain.FoldedTrade, since time.Time) float64 {
	var grossWin, grossLoss float64
	for _, t := range trades {
		if t.ResolvedAt.Before(since) {
			continue
		}
		if t.TotalPnL > 0 {
			grossWin += t.TotalPnL
		} else {
			grossLoss += -t.TotalPnL
		}
	}
	if grossLoss == 0 {
		if grossWin > 0 {
			return 99
		}
		return 0
	}
	return grossWin / grossLoss
}

// ComputeBehavior derives trading-style features from the folded trades and
// the raw activity feed.
func ComputeBehavior(folded []domain.FoldedTrade, activity []polymarket.APIActivity, maxDD float64) domain.BehaviorMetrics {
	var b domain.BehaviorMetrics
	b.MaxDrawdown = maxDD

	markets := make(map[string]struct{})
	categoryVolume := make(map[string]float64)
	var totalBought, largestBought, weightedPrice float64
	var totalWins, largestWin float64
	for _, t := range folded {
		markets[t.ConditionID] = struct{}{}
		totalBought += t.TotalBought
		weightedPrice += t.AvgPrice * t.TotalBought
		if t.TotalBought > largestBought {
			largestBought = t.TotalBought
		}
		if t.TotalPnL > 0 {
			totalWins += t.TotalPnL
			if t.TotalPnL > largestWin {
				largestWin = t.TotalPnL
			}
		}
		if t.Category != "" {
			categoryVolume[t.Category] += t.TotalBought
		}
	}
	b.UniqueMarkets = len(markets)
	if totalBought > 0 {
		b.PositionConcentration = largestBought / totalBought
		b.AvgEntryPrice = weightedPrice / totalBought
		var largestCategory float64
		for _, v := range categoryVolume {
			if v > largestCategory {
				largestCategory = v
			}
		}
		b.CategoryConcentration = largestCategory / totalBought
	}
	if totalWins > 0 {
		b.PnLConcentration = largestWin / totalWins
	}
	b.PositionSizeVariance = variance(boughtSizes(folded))

	trades := tradeActivity(activity)
	if len(trades) == 0 {
		return b
	}

	first, last := trades[0].Timestamp.Time, trades[0].Timestamp.Time
	var night int
	hours := make([]float64, 0, len(trades))
	firstSeen := make(map[string]time.Time)
	for _, a := range trades {
		ts := a.Timestamp.Time
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
		h := ts.UTC().Hour()
		hours = append(hours, float64(h))
		if h >= 2 && h < 7 {
			night++
		}
		if prev, ok := firstSeen[a.ConditionID]; !ok || ts.Before(prev) {
			firstSeen[a.ConditionID] = ts
		}
	}

	spanDays := last.Sub(first).Hours() / 24
	if spanDays < 1 {
		spanDays = 1
	}
	b.TradeFrequency = float64(len(trades)) / spanDays
	b.NightTradeRatio = float64(night) / float64(len(trades))
	b.TradeTimeVariance = variance(hours)

	// Hold time approximated as entry-to-resolution per resolved trade.
	var holdHours float64
	var held int
	for _, t := range folded {
		if !t.Resolved {
			continue
		}
		entry, ok := firstSeen[t.ConditionID]
		if !ok || !t.ResolvedAt.After(entry) {
			continue
		}
		holdHours += t.ResolvedAt.Sub(entry).Hours()
		held++
	}
	if held > 0 {
		b.AvgHoldHours = holdHours / float64(held)
	}
	return b
}

func tradeActivity(activity []polymarket.APIActivity) []polymarket.APIActivity {
	out := activity[:0:0]
	for _, a := range activity {
		if a.Type == "TRADE" {
			out = append(out, a)
		}
	}
	return out
}

func boughtSizes(folded []domain.FoldedTrade) []float64 {
	out := make([]float64, 0, len(folded))
	for _, t := range folded {
		out = append(out, t.TotalBought)
	}
	return out
}

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return sq / float64(len(xs))
}

// copyScore grades copytrade suitability 0-100 from the 30-day window:
// consistency (win rate), edge (ROI and profit factor), sample size, and a
// stability bonus for low drawdown.
func copyScore(m WalletMetrics) int {
	score := 0

	switch wr := m.Last30d.WinRate; {
	case wr >= 70:
		score += 30
	case wr >= 60:
		score += 25
	case wr >= 50:
		score += 15
	}

	switch roi := m.Last30d.ROI; {
	case roi >= 50:
		score += 25
	case roi >= 20:
		score += 18
	case roi >= 10:
		score += 10
	case roi >= 0:
		score += 5
	}

	switch pf := m.ProfitFactor30d; {
	case pf >= 2:
		score += 20
	case pf >= 1.5:
		score += 15
	case pf >= 1.2:
		score += 8
	}

	switch n := m.Last30d.Wins + m.Last30d.Losses; {
	case n >= 20:
		score += 15
	case n >= 10:
		score += 10
	case n >= 5:
		score += 5
	}

	switch dd := m.Last30d.MaxDrawdown; {
	case dd > 0 && dd <= 20:
		score += 10
	case dd > 20 && dd <= 40:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// redFlags lists disqualifying traits surfaced alongside the scores.
func redFlags(m WalletMetrics, b domain.BehaviorMetrics) []string {
	var flags []string
	if m.AllTime.MaxDrawdown > 60 {
		flags = append(flags, "High Drawdown")
	}
	if m.AllTime.Wins+m.AllTime.Losses < 5 {
		flags = append(flags, "Thin History")
	}
	if b.NightTradeRatio > 0.5 {
		flags = append(flags, "Night Trader")
	}
	if b.PnLConcentration > 0.8 && m.AllTime.Wins > 1 {
		flags = append(flags, "Single-Win Dependent")
	}
	if b.PositionConcentration > 0.7 && m.AllTime.TradeCount > 3 {
		flags = append(flags, "Concentrated Exposure")
	}
	return flags
}

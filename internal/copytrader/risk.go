// Package copytrader mirrors qualifying trades from the enriched stream
// through the CLOB client, under hard risk limits.
package copytrader

import (
	"fmt"
	"sync"
	"time"
)

// RiskLimits are the configurable guard rails for the risk engine. Zero
// slices mean "no block-list" and "no category restriction".
type RiskLimits struct {
	MaxPositionSizeUSD  float64
	MaxTotalExposureUSD float64
	MaxSingleOrderUSD   float64
	MinOrderUSD         float64
	MaxDailyLossUSD     float64
	MaxDailyOrders      int
	BlockedMarkets      []string
	AllowedCategories   []string
}

// KillSwitchHook is called when the engine auto-trips the kill switch.
type KillSwitchHook func(reason string)

// RiskEngine enforces the order limits and keeps the exposure and daily
// accounting. All methods are safe for concurrent use.
type RiskEngine struct {
	limits RiskLimits
	onTrip KillSwitchHook

	now func() time.Time

	mu               sync.Mutex
	killSwitch       bool
	killReason       string
	totalExposure    float64
	marketExposure   map[string]float64
	dailyPnL         float64
	dailyOrders      int
	dayStart         time.Time
	blockedMarkets   map[string]struct{}
	allowedCategory  map[string]struct{}
	restrictCategory bool
}

// NewRiskEngine creates a risk engine with the given limits. onTrip may be
// nil.
func NewRiskEngine(limits RiskLimits, onTrip KillSwitchHook) *RiskEngine {
	blocked := make(map[string]struct{}, len(limits.BlockedMarkets))
	for _, m := range limits.BlockedMarkets {
		blocked[m] = struct{}{}
	}
	allowed := make(map[string]struct{}, len(limits.AllowedCategories))
	for _, c := range limits.AllowedCategories {
		allowed[c] = struct{}{}
	}
	return &RiskEngine{
		limits:           limits,
		onTrip:           onTrip,
		now:              time.Now,
		marketExposure:   make(map[string]float64),
		dayStart:         midnightUTC(time.Now()),
		blockedMarkets:   blocked,
		allowedCategory:  allowed,
		restrictCategory: len(allowed) > 0,
	}
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rolloverLocked resets the daily tallies when the UTC day has changed.
// Caller holds the mutex.
func (r *RiskEngine) rolloverLocked(now time.Time) {
	if today := midnightUTC(now); today.After(r.dayStart) {
		r.dayStart = today
		r.dailyPnL = 0
		r.dailyOrders = 0
	}
}

// CheckOrder decides whether an order of sizeUSD on the given market may be
// placed. The first failing limit names the rejection.
func (r *RiskEngine) CheckOrder(marketID string, sizeUSD float64, category string) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rolloverLocked(r.now())

	switch {
	case r.killSwitch:
		return false, "kill switch active: " + r.killReason
	case r.limits.MaxSingleOrderUSD > 0 && sizeUSD > r.limits.MaxSingleOrderUSD:
		return false, fmt.Sprintf("order $%.2f exceeds single-order cap $%.2f", sizeUSD, r.limits.MaxSingleOrderUSD)
	case sizeUSD < r.limits.MinOrderUSD:
		return false, fmt.Sprintf("order $%.2f below minimum $%.2f", sizeUSD, r.limits.MinOrderUSD)
	case r.limits.MaxTotalExposureUSD > 0 && r.totalExposure+sizeUSD > r.limits.MaxTotalExposureUSD:
		return false, fmt.Sprintf("total exposure $%.2f would exceed cap $%.2f", r.totalExposure+sizeUSD, r.limits.MaxTotalExposureUSD)
	case r.limits.MaxPositionSizeUSD > 0 && r.marketExposure[marketID]+sizeUSD > r.limits.MaxPositionSizeUSD:
		return false, fmt.Sprintf("market position $%.2f would exceed cap $%.2f", r.marketExposure[marketID]+sizeUSD, r.limits.MaxPositionSizeUSD)
	// The candidate order counts at its worst case: an order that could push
	// the day past the loss cap is refused before placement.
	case r.limits.MaxDailyLossUSD > 0 && r.dailyPnL-sizeUSD <= -r.limits.MaxDailyLossUSD:
		return false, fmt.Sprintf("daily loss $%.2f would reach cap $%.2f", sizeUSD-r.dailyPnL, r.limits.MaxDailyLossUSD)
	case r.limits.MaxDailyOrders > 0 && r.dailyOrders >= r.limits.MaxDailyOrders:
		return false, fmt.Sprintf("daily order count %d at cap %d", r.dailyOrders, r.limits.MaxDailyOrders)
	}

	if _, blocked := r.blockedMarkets[marketID]; blocked {
		return false, "market blocked"
	}
	if r.restrictCategory {
		if _, ok := r.allowedCategory[category]; !ok {
			return false, fmt.Sprintf("category %q not allowed", category)
		}
	}
	return true, ""
}

// RecordOrder books a placed order into the exposure accounting.
func (r *RiskEngine) RecordOrder(marketID string, sizeUSD float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rolloverLocked(r.now())

	r.totalExposure += sizeUSD
	r.marketExposure[marketID] += sizeUSD
	r.dailyOrders++
}

// RecordFill books a closed fill: exposure is released (floored at zero) and
// pnl joins the daily tally. Crossing the daily loss cap trips the kill
// switch.
func (r *RiskEngine) RecordFill(marketID string, sizeUSD, pnl float64) {
	r.mu.Lock()
	r.rolloverLocked(r.now())

	r.totalExposure -= sizeUSD
	if r.totalExposure < 0 {
		r.totalExposure = 0
	}
	r.marketExposure[marketID] -= sizeUSD
	if r.marketExposure[marketID] <= 0 {
		delete(r.marketExposure, marketID)
	}
	r.dailyPnL += pnl

	tripped := false
	var reason string
	if r.limits.MaxDailyLossUSD > 0 && r.dailyPnL <= -r.limits.MaxDailyLossUSD && !r.killSwitch {
		r.killSwitch = true
		reason = fmt.Sprintf("daily loss $%.2f crossed cap $%.2f", -r.dailyPnL, r.limits.MaxDailyLossUSD)
		r.killReason = reason
		tripped = true
	}
	r.mu.Unlock()

	if tripped && r.onTrip != nil {
		r.onTrip(reason)
	}
}

// SetKillSwitch flips the manual kill switch.
func (r *RiskEngine) SetKillSwitch(active bool, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.killSwitch = active
	if active {
		r.killReason = reason
	} else {
		r.killReason = ""
	}
}

// KillSwitchActive reports the kill switch state and its reason.
func (r *RiskEngine) KillSwitchActive() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killSwitch, r.killReason
}

// RiskSnapshot is the engine's observable state.
type RiskSnapshot struct {
	KillSwitch    bool
	KillReason    string
	TotalExposure float64
	DailyPnL      float64
	DailyOrders   int
	OpenMarkets   int
}

// Snapshot returns the current accounting for dashboards and logs.
func (r *RiskEngine) Snapshot() RiskSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RiskSnapshot{
		KillSwitch:    r.killSwitch,
		KillReason:    r.killReason,
		TotalExposure: r.totalExposure,
		DailyPnL:      r.dailyPnL,
		DailyOrders:   r.dailyOrders,
		OpenMarkets:   len(r.marketExposure),
	}
}

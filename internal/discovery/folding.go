// Package discovery maintains the wallet analytics rows: it notices
// qualifying traders on the live stream, fetches their full position history,
// folds positions into trades, and derives the period metrics everyone else
// reads.
package discovery

import (
	"sort"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

type leg struct {
	outcome    string
	pnl        float64
	bought     float64
	avgPrice   float64
	resolved   bool
	resolvedAt time.Time
	category   string
}

// FoldPositions collapses raw open and closed positions into the atomic
// units for win-rate accounting. Positions on one condition with different
// outcomes are a hedge and fold into a single trade; positions on the same
// outcome stay separate as sequential re-entries.
func FoldPositions(open []domain.OpenPosition, closed []domain.ClosedPosition) []domain.FoldedTrade {
	byCondition := make(map[string][]leg)
	var order []string

	add := func(cond string, l leg) {
		if _, seen := byCondition[cond]; !seen {
			order = append(order, cond)
		}
		byCondition[cond] = append(byCondition[cond], l)
	}

	for _, p := range closed {
		add(p.ConditionID, leg{
			outcome:    p.Outcome,
			pnl:        p.RealizedPnL,
			bought:     p.TotalBought,
			avgPrice:   p.AvgPrice,
			resolved:   true,
			resolvedAt: p.ResolvedAt,
			category:   p.Category,
		})
	}
	for _, p := range open {
		add(p.ConditionID, leg{
			outcome:  p.Outcome,
			pnl:      p.CashPnL,
			bought:   p.InitialValue,
			avgPrice: p.AvgPrice,
		})
	}

	var folded []domain.FoldedTrade
	for _, cond := range order {
		legs := byCondition[cond]

		outcomes := make(map[string]struct{}, len(legs))
		for _, l := range legs {
			outcomes[l.outcome] = struct{}{}
		}

		if len(outcomes) > 1 {
			// Hedge: all legs on this condition fold into one trade.
			folded = append(folded, foldLegs(cond, legs))
			continue
		}

		// Same outcome only: each leg is its own re-entry.
		for _, l := range legs {
			folded = append(folded, foldLegs(cond, []leg{l}))
		}
	}
	return folded
}

// foldLegs combines legs into one trade. The primary leg (largest bought)
// supplies the outcome and category; resolution is "resolved if any leg is".
func foldLegs(cond string, legs []leg) domain.FoldedTrade {
	t := domain.FoldedTrade{ConditionID: cond, Legs: len(legs)}

	var primary leg
	var weighted float64
	for _, l := range legs {
		t.TotalPnL += l.pnl
		t.TotalBought += l.bought
		weighted += l.avgPrice * l.bought
		if l.resolved {
			t.Resolved = true
			if l.resolvedAt.After(t.ResolvedAt) {
				t.ResolvedAt = l.resolvedAt
			}
		}
		if l.bought >= primary.bought {
			primary = l
		}
	}

	t.Outcome = primary.outcome
	t.Category = primary.category
	if t.TotalBought > 0 {
		t.AvgPrice = weighted / t.TotalBought
	}
	return t
}

// sortByResolvedAt orders resolved trades chronologically for the drawdown
// replay.
func sortByResolvedAt(trades []domain.FoldedTrade) {
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].ResolvedAt.Before(trades[j].ResolvedAt)
	})
}

package processor

import (
	"fmt"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// evaluateRules runs every enabled rule against one significant trade and
// returns the alerts to insert. watchlist maps address to its entries.
func evaluateRules(t domain.Trade, rules []domain.AlertRule, watchlist map[string][]domain.WatchlistEntry) []domain.TradeAlert {
	var alerts []domain.TradeAlert
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !ruleMatches(rule, t, watchlist) {
			continue
		}
		alerts = append(alerts, domain.TradeAlert{
			RuleID:      rule.ID,
			RuleType:    rule.RuleType,
			TradeID:     t.TradeID,
			Trader:      t.Trader,
			ConditionID: t.ConditionID,
			MarketSlug:  t.MarketSlug,
			Side:        t.Side,
			USDValue:    t.USDValue,
			Severity:    rule.Severity,
			Message:     ruleMessage(rule, t),
		})
	}
	return alerts
}

func ruleMatches(rule domain.AlertRule, t domain.Trade, watchlist map[string][]domain.WatchlistEntry) bool {
	switch rule.RuleType {
	case domain.RuleTypeWhale:
		if !t.IsWhale {
			return false
		}
	case domain.RuleTypeWatchlistActivity:
		entries, ok := watchlist[t.Trader]
		if !ok {
			return false
		}
		// Per-entry minimum trade size; any entry qualifying is a match.
		qualified := false
		for _, e := range entries {
			if t.USDValue >= e.MinTradeSize {
				qualified = true
				break
			}
		}
		if !qualified {
			return false
		}
	case domain.RuleTypeInsiderActivity:
		if !t.IsInsiderSuspect {
			return false
		}
	default:
		return false
	}
	return conditionsMatch(rule.Conditions, t)
}

func conditionsMatch(c domain.RuleConditions, t domain.Trade) bool {
	if c.MinUSDValue > 0 && t.USDValue < c.MinUSDValue {
		return false
	}
	if len(c.Categories) > 0 && !containsString(c.Categories, t.Category) {
		return false
	}
	if len(c.Hours) > 0 && !containsInt(c.Hours, t.ExecutedAt.UTC().Hour()) {
		return false
	}
	if len(c.Sides) > 0 {
		found := false
		for _, s := range c.Sides {
			if s == t.Side {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func ruleMessage(rule domain.AlertRule, t domain.Trade) string {
	switch rule.RuleType {
	case domain.RuleTypeWhale:
		return fmt.Sprintf("whale %s $%.0f on %s by %s", t.Side, t.USDValue, t.MarketSlug, t.Trader)
	case domain.RuleTypeWatchlistActivity:
		return fmt.Sprintf("watchlist wallet %s traded $%.0f on %s", t.Trader, t.USDValue, t.MarketSlug)
	case domain.RuleTypeInsiderActivity:
		return fmt.Sprintf("insider suspect %s (score %d) traded $%.0f on %s", t.Trader, t.TraderScore, t.USDValue, t.MarketSlug)
	}
	return ""
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}

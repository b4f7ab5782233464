package domain

import "time"

// RuleType selects which trades an alert rule applies to.
type RuleType string

const (
	RuleTypeWhale             RuleType = "whale"
	RuleTypeWatchlistActivity RuleType = "watchlist_activity"
	RuleTypeInsiderActivity   RuleType = "insider_activity"
)

// RuleConditions are the generic predicates every rule type supports. Zero
// values mean "no constraint".
type RuleConditions struct {
	MinUSDValue float64     `json:"min_usd_value,omitempty"`
	Categories  []string    `json:"categories,omitempty"`
	Hours       []int       `json:"hours,omitempty"` // UTC hours 0-23
	Sides       []TradeSide `json:"sides,omitempty"`
}

// AlertRule is one operator-configured alerting rule, refreshed together with
// the wallet cache and evaluated synchronously against significant trades.
type AlertRule struct {
	ID         int64
	RuleType   RuleType
	Enabled    bool
	Severity   string
	Conditions RuleConditions
	CreatedAt  time.Time
}

// TradeAlert is one rule match written to the alerts table.
type TradeAlert struct {
	ID           int64
	RuleID       int64
	RuleType     RuleType
	TradeID      string
	Trader       string
	ConditionID  string
	MarketSlug   string
	Side         TradeSide
	USDValue     float64
	Severity     string
	Message      string
	Acknowledged bool
	CreatedAt    time.Time
}

// SignalScores are the six insider sub-scores, each 0-100.
type SignalScores struct {
	WalletAge       float64 `json:"wallet_age"`
	SizeVsLiquidity float64 `json:"size_vs_liquidity"`
	MarketNiche     float64 `json:"market_niche"`
	ExtremeOdds     float64 `json:"extreme_odds"`
	Conviction      float64 `json:"conviction"`
	CategoryWinRate float64 `json:"category_win_rate"`
}

// InsiderAlert is the scorer's output, one per trade id.
type InsiderAlert struct {
	TradeID       string
	Trader        string
	ConditionID   string
	MarketSlug    string
	Side          TradeSide
	Price         float64
	USDValue      float64
	Composite     int
	Scores        SignalScores
	Signals       []string // human-readable labels for sub-scores >= 60
	Profitability ProfitabilityStatus
	CreatedAt     time.Time
}

// WatchlistEntry is one manually curated wallet to follow.
// Keyed by (Address, ListType).
type WatchlistEntry struct {
	Address           string
	ListType          string
	Label             string
	MinTradeSize      float64
	AlertThresholdUSD float64
	AddedAt           time.Time
}

package domain

import "time"

// OpenPosition is a venue-reported open position for a tracked wallet.
// Keyed by (Address, ConditionID, OutcomeIndex).
type OpenPosition struct {
	Address      string
	ConditionID  string
	Outcome      string
	OutcomeIndex int
	Size         float64
	AvgPrice     float64
	InitialValue float64
	CurrentValue float64
	CashPnL      float64
	Title        string
}

// ClosedPosition is a venue-reported resolved position.
// Keyed by (Address, ConditionID, Outcome).
type ClosedPosition struct {
	Address     string
	ConditionID string
	Outcome     string
	TotalBought float64
	AvgPrice    float64
	FinalPrice  float64
	RealizedPnL float64
	ResolvedAt  time.Time
	Category    string
}

// IsWin reports whether the resolved position ended profitable.
func (p ClosedPosition) IsWin() bool { return p.RealizedPnL > 0 }

// FoldedTrade is the atomic unit for win-rate accounting. Opposite-outcome
// positions on one condition (a hedge) fold into a single trade; same-outcome
// positions stay separate as sequential re-entries.
type FoldedTrade struct {
	ConditionID string
	Outcome     string // outcome of the primary (largest) leg
	TotalPnL    float64
	TotalBought float64
	AvgPrice    float64
	Resolved    bool
	ResolvedAt  time.Time
	Legs        int
	Category    string
}

// TrackedPosition is one of our own copy-trading positions, keyed by TokenID.
type TrackedPosition struct {
	TokenID      string
	ConditionID  string
	Side         TradeSide
	Size         float64 // shares
	AvgPrice     float64
	CurrentPrice float64
	OpenedAt     time.Time
	UpdatedAt    time.Time
}

// UnrealizedPnL marks the position to the given price.
func (p TrackedPosition) UnrealizedPnL() float64 {
	pnl := (p.CurrentPrice - p.AvgPrice) * p.Size
	if p.Side == TradeSideSell {
		return -pnl
	}
	return pnl
}

package processor

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

const (
	sessionWindow    = 2 * time.Hour
	sessionMaxTrades = 100

	bigTradeUSD      = 5_000
	repeatMarketMin  = 5
	sessionVolumeUSD = 50_000
	oneSidedMin      = 3

	bigTradePoints      = 30
	repeatMarketPoints  = 25
	sessionVolumePoints = 25
	offHoursPoints      = 10
	oneSidedPoints      = 10
)

type sessionTrade struct {
	conditionID string
	side        domain.TradeSide
	usd         float64
	at          time.Time
}

// SessionScorer computes an on-the-fly insider heuristic for traders with no
// wallet row yet. It keeps a bounded per-address history over a sliding
// window; the score is recomputed on every observed trade.
type SessionScorer struct {
	mu       sync.Mutex
	sessions map[string][]sessionTrade
}

// NewSessionScorer creates an empty SessionScorer.
func NewSessionScorer() *SessionScorer {
	return &SessionScorer{sessions: make(map[string][]sessionTrade)}
}

// Observe records the trade in the trader's session and returns the updated
// heuristic score (0-100) with human-readable flags.
func (s *SessionScorer) Observe(t domain.Trade) (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := t.ReceivedAt.Add(-sessionWindow)

	hist := s.sessions[t.Trader]
	kept := hist[:0]
	for _, st := range hist {
		if st.at.After(cutoff) {
			kept = append(kept, st)
		}
	}
	kept = append(kept, sessionTrade{
		conditionID: t.ConditionID,
		side:        t.Side,
		usd:         t.USDValue,
		at:          t.ReceivedAt,
	})
	if len(kept) > sessionMaxTrades {
		kept = kept[len(kept)-sessionMaxTrades:]
	}
	s.sessions[t.Trader] = kept

	return scoreSession(t, kept)
}

// Forget drops a trader's session, used once the wallet becomes known.
func (s *SessionScorer) Forget(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, address)
}

func scoreSession(t domain.Trade, hist []sessionTrade) (int, []string) {
	score := 0
	var flags []string

	if t.USDValue >= bigTradeUSD {
		score += bigTradePoints
		flags = append(flags, "Large Single Trade")
	}

	sameMarket := 0
	var volume float64
	buys, sells := 0, 0
	for _, st := range hist {
		volume += st.usd
		if st.conditionID == t.ConditionID {
			sameMarket++
		}
		switch st.side {
		case domain.TradeSideBuy:
			buys++
		case domain.TradeSideSell:
			sells++
		}
	}

	if sameMarket >= repeatMarketMin {
		score += repeatMarketPoints
		flags = append(flags, "Repeated Market Activity")
	}
	if volume >= sessionVolumeUSD {
		score += sessionVolumePoints
		flags = append(flags, "High Session Volume")
	}

	hour := t.ExecutedAt.UTC().Hour()
	if hour >= 2 && hour < 7 {
		score += offHoursPoints
		flags = append(flags, "Off-Hours Trading")
	}

	total := buys + sells
	if total >= oneSidedMin && (buys == total || sells == total) {
		score += oneSidedPoints
		flags = append(flags, "One-Sided Flow")
	}

	if score > 100 {
		score = 100
	}
	return score, flags
}

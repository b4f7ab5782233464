package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// Event types the notifier can filter on.
const (
	EventWhaleTrade     = "whale_trade"
	EventInsiderAlert   = "insider_alert"
	EventCopyTrade      = "copy_trade"
	EventKillSwitch     = "kill_switch"
	EventFunnelComplete = "funnel_complete"
)

// WhaleTrade formats and dispatches a whale trade notification.
func (n *Notifier) WhaleTrade(ctx context.Context, t domain.Trade) error {
	title := fmt.Sprintf("Whale %s $%.0f", t.Side, t.USDValue)
	msg := fmt.Sprintf("%s %s %.0f shares @ %.3f on %s\ntrader %s",
		t.Side, t.Outcome, t.Size, t.Price, t.MarketSlug, t.Trader)
	return n.Notify(ctx, EventWhaleTrade, title, msg)
}

// InsiderAlert formats and dispatches an insider alert notification.
func (n *Notifier) InsiderAlert(ctx context.Context, a domain.InsiderAlert) error {
	title := fmt.Sprintf("Insider suspect %d/100", a.Composite)
	msg := fmt.Sprintf("%s %s $%.0f @ %.3f on %s\ntrader %s\nsignals: %s",
		a.Side, "position", a.USDValue, a.Price, a.MarketSlug, a.Trader,
		strings.Join(a.Signals, ", "))
	return n.Notify(ctx, EventInsiderAlert, title, msg)
}

// CopyTradeExecuted formats and dispatches a copy execution notification.
func (n *Notifier) CopyTradeExecuted(ctx context.Context, entry domain.CopyTradeLog) error {
	title := fmt.Sprintf("Copy trade $%.0f", entry.SizeUSD)
	msg := fmt.Sprintf("copied %s: %.1f shares @ %.3f (order %s)",
		entry.SourceTrader, entry.Shares, entry.Price, entry.OurOrderID)
	return n.Notify(ctx, EventCopyTrade, title, msg)
}

// KillSwitch dispatches the trading-halt notification. It bypasses the event
// filter: an operator must always see this one.
func (n *Notifier) KillSwitch(ctx context.Context, reason string) error {
	return n.NotifyAll(ctx, "Kill switch engaged", reason)
}

// FunnelComplete formats and dispatches a funnel run summary.
func (n *Notifier) FunnelComplete(ctx context.Context, runID int64, stats []domain.StageStats) error {
	var b strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&b, "stage %d %s: %d in, %d out\n", s.Stage, s.Name, s.Processed, s.Qualified)
	}
	return n.Notify(ctx, EventFunnelComplete, fmt.Sprintf("Funnel run %d complete", runID), b.String())
}

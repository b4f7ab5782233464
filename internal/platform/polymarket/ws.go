package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// openTimeout bounds the WebSocket handshake.
	openTimeout = 15 * time.Second

	// reconnectBase is the first reconnect delay; doubling is capped at
	// reconnectCap.
	reconnectBase = 5 * time.Second
	reconnectCap  = 60 * time.Second

	// monitorInterval is how often the staleness monitor wakes.
	monitorInterval = 30 * time.Second

	// closeCodeStale is sent when the staleness monitor kills the socket.
	closeCodeStale = 4000
)

// TradeHandler receives every parsed trade from the live feed.
type TradeHandler func(TradeMessage, time.Time)

// StreamConfig holds the live feed parameters.
type StreamConfig struct {
	URL               string
	HeartbeatInterval time.Duration // ping period, ~30s
	StaleThreshold    time.Duration // no inbound message for this long kills the socket, ~120s
}

// StreamStats are cumulative feed counters.
type StreamStats struct {
	Received    uint64
	ParseErrors uint64
	Dropped     uint64
	Reconnects  uint64
}

// TradeStream consumes the venue's live trade feed. It owns the connection
// lifecycle: subscription on accept, heartbeat pings, a staleness monitor
// that force-closes a silent socket, and reconnection with exponential
// backoff. Messages are delivered to the handler in arrival order.
type TradeStream struct {
	cfg     StreamConfig
	handler TradeHandler
	logger  *slog.Logger

	lastMsg atomic.Int64 // unix nanos of last inbound message

	received    atomic.Uint64
	parseErrors atomic.Uint64
	dropped     atomic.Uint64
	reconnects  atomic.Uint64
}

// NewTradeStream creates a TradeStream delivering trades to handler.
func NewTradeStream(cfg StreamConfig, handler TradeHandler, logger *slog.Logger) *TradeStream {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 120 * time.Second
	}
	return &TradeStream{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(slog.String("component", "trade_stream")),
	}
}

// Stats returns a snapshot of the feed counters.
func (s *TradeStream) Stats() StreamStats {
	return StreamStats{
		Received:    s.received.Load(),
		ParseErrors: s.parseErrors.Load(),
		Dropped:     s.dropped.Load(),
		Reconnects:  s.reconnects.Load(),
	}
}

// Run connects and consumes the feed until ctx is cancelled. Connection
// failures reconnect with backoff; the attempt counter resets on every
// clean accept.
func (s *TradeStream) Run(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := s.connect(ctx)
		if err != nil {
			failures++
			delay := backoffDelay(failures)
			s.logger.WarnContext(ctx, "connect failed",
				slog.Int("attempt", failures),
				slog.Duration("retry_in", delay),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		failures = 0
		s.logger.InfoContext(ctx, "connected", slog.String("url", s.cfg.URL))

		s.consume(ctx, conn)
		s.reconnects.Add(1)
	}
}

// backoffDelay computes min(base * 2^min(n-1, 4), cap) for the nth
// consecutive failure.
func backoffDelay(n int) time.Duration {
	exp := n - 1
	if exp > 4 {
		exp = 4
	}
	d := reconnectBase * time.Duration(1<<exp)
	if d > reconnectCap {
		d = reconnectCap
	}
	return d
}

func (s *TradeStream) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: openTimeout}

	dialCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	if err := s.subscribe(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

type subscription struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

// subscribe sends the trade-feed subscription frame.
func (s *TradeStream) subscribe(conn *websocket.Conn) error {
	frame := struct {
		Action        string         `json:"action"`
		Subscriptions []subscription `json:"subscriptions"`
	}{
		Action:        "subscribe",
		Subscriptions: []subscription{{Topic: "activity", Type: "trades"}},
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal subscription: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// consume reads the socket until it dies or ctx is cancelled. The heartbeat
// and staleness monitor goroutines live only as long as the connection.
func (s *TradeStream) consume(ctx context.Context, conn *websocket.Conn) {
	s.lastMsg.Store(time.Now().UnixNano())

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.cfg.StaleThreshold))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.StaleThreshold))
		return nil
	})

	go s.pingLoop(connCtx, conn)
	go s.staleMonitor(connCtx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.WarnContext(ctx, "read failed", slog.String("error", err.Error()))
			}
			return
		}

		s.lastMsg.Store(time.Now().UnixNano())
		conn.SetReadDeadline(time.Now().Add(s.cfg.StaleThreshold))
		s.handleMessage(raw)
	}
}

func (s *TradeStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// staleMonitor force-closes the socket when nothing has arrived within the
// stale threshold, which unblocks the read loop and triggers a reconnect.
func (s *TradeStream) staleMonitor(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastMsg.Load())
			if age := time.Since(last); age > s.cfg.StaleThreshold {
				s.logger.Warn("stale connection, closing",
					slog.Duration("age", age),
				)
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(closeCodeStale, "stale"),
					time.Now().Add(writeWait),
				)
				conn.Close()
				return
			}
		}
	}
}

// wsEnvelope is the outer shape of feed messages. Payload may itself be a
// single trade or an array.
type wsEnvelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleMessage flattens single-or-array frames into per-trade handler calls.
// Unknown message types and parse failures are counted and dropped, never
// fatal to the connection.
func (s *TradeStream) handleMessage(raw []byte) {
	now := time.Now().UTC()

	envelopes, err := decodeOneOrMany[wsEnvelope](raw)
	if err != nil {
		s.parseErrors.Add(1)
		return
	}

	// Frames without an envelope are bare trade objects.
	if len(envelopes) == 0 || len(envelopes[0].Payload) == 0 {
		s.deliver(raw, now)
		return
	}

	for _, env := range envelopes {
		if env.Type != "" && env.Type != "trades" && env.Type != "trade" {
			s.logger.Debug("unknown message type", slog.String("type", env.Type))
			s.dropped.Add(1)
			continue
		}
		s.deliver(env.Payload, now)
	}
}

func (s *TradeStream) deliver(payload []byte, now time.Time) {
	msgs, err := decodeOneOrMany[TradeMessage](payload)
	if err != nil {
		s.parseErrors.Add(1)
		return
	}
	for _, msg := range msgs {
		s.received.Add(1)
		s.handler(msg, now)
	}
}

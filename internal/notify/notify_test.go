package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_EventFilter(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, []string{EventInsiderAlert}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventWhaleTrade, "whale", "msg"))
	require.NoError(t, n.Notify(context.Background(), EventInsiderAlert, "insider", "msg"))

	assert.Equal(t, []string{"insider"}, sender.titles)
}

func TestNotify_EmptyFilterAllowsEverything(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventWhaleTrade, "whale", "msg"))
	assert.Len(t, sender.titles, 1)
}

func TestNotifyAll_BypassesFilter(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, []string{EventInsiderAlert}, testLogger())

	require.NoError(t, n.KillSwitch(context.Background(), "daily loss"))
	assert.Equal(t, []string{"Kill switch engaged"}, sender.titles)
}

func TestDispatch_OneFailureDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1)
}

func TestDiscordSender_Send(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "Whale BUY $15000", "details"))
	assert.Contains(t, payload["content"], "**Whale BUY $15000**")
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad webhook", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	err := d.Send(context.Background(), "title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWhaleTrade_Formatting(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	trade := domain.Trade{
		Side:       domain.TradeSideBuy,
		USDValue:   15_000,
		MarketSlug: "will-it-rain",
		Trader:     "0xabc",
	}
	require.NoError(t, n.WhaleTrade(context.Background(), trade))
	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.titles[0], "15000")
}

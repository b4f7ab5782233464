package polymarket

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffDelay(1))
	assert.Equal(t, 10*time.Second, backoffDelay(2))
	assert.Equal(t, 20*time.Second, backoffDelay(3))
	assert.Equal(t, 40*time.Second, backoffDelay(4))
	// Doubling caps out at the ceiling.
	assert.Equal(t, 60*time.Second, backoffDelay(5))
	assert.Equal(t, 60*time.Second, backoffDelay(100))
}

func collectStream() (*TradeStream, *[]TradeMessage) {
	var got []TradeMessage
	s := NewTradeStream(StreamConfig{URL: "ws://test"}, func(m TradeMessage, _ time.Time) {
		got = append(got, m)
	}, discardLogger())
	return s, &got
}

func TestHandleMessage_EnvelopedSingleTrade(t *testing.T) {
	s, got := collectStream()

	s.handleMessage([]byte(`{"topic":"activity","type":"trades","payload":{"id":"t1","proxyWallet":"0xabc"}}`))

	require.Len(t, *got, 1)
	assert.Equal(t, "t1", (*got)[0].ID)
	assert.Equal(t, uint64(1), s.Stats().Received)
}

func TestHandleMessage_EnvelopedTradeArray(t *testing.T) {
	s, got := collectStream()

	s.handleMessage([]byte(`{"topic":"activity","type":"trades","payload":[{"id":"t1"},{"id":"t2"}]}`))

	require.Len(t, *got, 2)
	assert.Equal(t, "t2", (*got)[1].ID)
}

func TestHandleMessage_BareTradeObject(t *testing.T) {
	s, got := collectStream()

	s.handleMessage([]byte(`{"id":"t1","proxyWallet":"0xabc","size":10,"price":0.5}`))

	require.Len(t, *got, 1)
	assert.Equal(t, "t1", (*got)[0].ID)
}

func TestHandleMessage_UnknownTypeDropped(t *testing.T) {
	s, got := collectStream()

	s.handleMessage([]byte(`{"topic":"activity","type":"comments","payload":{"id":"x"}}`))

	assert.Empty(t, *got)
	assert.Equal(t, uint64(1), s.Stats().Dropped)
}

func TestHandleMessage_GarbageCountsParseError(t *testing.T) {
	s, got := collectStream()

	s.handleMessage([]byte(`not json at all`))

	assert.Empty(t, *got)
	assert.Equal(t, uint64(1), s.Stats().ParseErrors)
}

func TestHandleMessage_EnvelopeArray(t *testing.T) {
	s, got := collectStream()

	s.handleMessage([]byte(`[
		{"type":"trades","payload":{"id":"t1"}},
		{"type":"trades","payload":{"id":"t2"}}
	]`))

	require.Len(t, *got, 2)
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]any
	require.NoError(t, c.ReadJSON(&out))
	return out
}

func TestHub_SubscribeBroadcastUnsubscribe(t *testing.T) {
	var subs atomic.Int64
	hub := NewHub(func(*http.Request) bool { return true }, nil)
	hub.OnSubscriptions = func(n int) { subs.Store(int64(n)) }

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)

	require.NoError(t, a.WriteJSON(ClientMsg{Type: "subscribe", MarketID: "m1"}))
	assert.Equal(t, "subscribed", readMsg(t, a)["type"])
	require.NoError(t, b.WriteJSON(ClientMsg{Type: "subscribe", MarketID: "m2"}))
	assert.Equal(t, "subscribed", readMsg(t, b)["type"])
	assert.Equal(t, int64(2), subs.Load())

	require.NoError(t, a.WriteJSON(ClientMsg{Type: "ping"}))
	assert.Equal(t, "pong", readMsg(t, a)["type"])

	n := hub.Broadcast(Update{Type: "market_resolved", MarketID: "m1", Payload: json.RawMessage(`{"outcome":"yes"}`)})
	assert.Equal(t, 1, n)
	got := readMsg(t, a)
	assert.Equal(t, "market_resolved", got["type"])
	assert.Equal(t, "yes", got["payload"].(map[string]any)["outcome"])

	require.NoError(t, a.WriteJSON(ClientMsg{Type: "unsubscribe", MarketID: "m1"}))
	// o ping garante que o unsubscribe já foi processado
	require.NoError(t, a.WriteJSON(ClientMsg{Type: "ping"}))
	assert.Equal(t, "pong", readMsg(t, a)["type"])
	assert.Equal(t, 0, hub.Broadcast(Update{Type: "bet_placed", MarketID: "m1", Payload: json.RawMessage(`{}`)}))
}

func TestHub_SubscribeRequiresMarket(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true }, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe"}))
	assert.Equal(t, "error", readMsg(t, c)["type"])
}

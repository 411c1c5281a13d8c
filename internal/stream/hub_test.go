package stream_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"geprices/internal/prices"
	"geprices/internal/stream"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(b, &msg))
	return msg
}

func TestHub_PublishReachesClient(t *testing.T) {
	t.Parallel()

	// Arrange: a hub behind a test server with one client
	hub := stream.NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	// Act
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	hub.Publish(prices.NewSnapshot(map[int]prices.Price{4151: {High: 100, Low: 90}}, time.Time{}), at)

	// Assert: the client sees the snapshot in the upstream shape
	msg := readMessage(t, conn)
	require.Equal(t, "snapshot", msg["type"])
	require.Equal(t, "2025-01-02T03:04:05Z", msg["completed_at"])
	item := msg["snapshot"].(map[string]any)["data"].(map[string]any)["4151"].(map[string]any)
	require.EqualValues(t, 100, item["high"])
	require.EqualValues(t, 90, item["low"])
}

func TestHub_NewClientGetsLastSnapshot(t *testing.T) {
	t.Parallel()

	hub := stream.NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	hub.Publish(prices.NewSnapshot(map[int]prices.Price{2: {High: 180}}, time.Time{}), time.Now())

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	require.Equal(t, "snapshot", msg["type"])
}

func TestHub_PublishWithoutClients(t *testing.T) {
	t.Parallel()

	hub := stream.NewHub(zerolog.Nop())
	require.NotPanics(t, func() {
		hub.Publish(prices.NewSnapshot(nil, time.Time{}), time.Now())
	})
	require.Zero(t, hub.Clients())
}

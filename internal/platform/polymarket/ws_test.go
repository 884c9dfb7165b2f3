package polymarket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconnectDelay(t *testing.T) {
	max := 60 * time.Second

	assert.Equal(t, 2*time.Second, ReconnectDelay(1, max))
	assert.Equal(t, 4*time.Second, ReconnectDelay(2, max))
	assert.Equal(t, 32*time.Second, ReconnectDelay(5, max))
	assert.Equal(t, max, ReconnectDelay(10, max), "backoff caps at max")
	assert.Equal(t, 2*time.Second, ReconnectDelay(0, max), "attempts are 1-based")
}

// A server that accepts each websocket handshake and immediately drops the
// connection. The client sees a read error on every connection, so once the
// listener goes away too, the reconnect budget must run out.
func TestReconnectBudgetExhausted(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connected := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case connected <- struct{}{}:
		default:
		}
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(wsURL, WSOptions{
		PingInterval:         time.Hour,
		MaxReconnectAttempts: 2,
		MaxReconnectDelay:    time.Millisecond,
	}, testLogger())
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the connection")
	}
	srv.Close()

	select {
	case <-client.Stopped():
	case <-time.After(10 * time.Second):
		t.Fatal("client kept reconnecting past its budget")
	}
}

// The server drops the TCP socket right after the handshake, so restoring
// the queued subscription fails. A failed Connect must leave no connection
// behind for the ping and read loops.
func TestConnectFailedSubscribeLeavesNoConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(wsURL, WSOptions{PingInterval: time.Hour}, testLogger())
	defer client.Close()

	// A payload well past the socket buffers forces the write to surface
	// the reset.
	ids := make([]string, 0, 200000)
	for i := 0; i < 200000; i++ {
		ids = append(ids, fmt.Sprintf("asset-%06d-%s", i, strings.Repeat("x", 64)))
	}
	require.NoError(t, client.Subscribe(context.Background(), ids))

	err := client.Connect(context.Background())
	require.Error(t, err)

	client.mu.RLock()
	assert.Nil(t, client.conn)
	client.mu.RUnlock()
}

func TestConnectClosedClient(t *testing.T) {
	client := NewWSClient("ws://127.0.0.1:0", WSOptions{}, testLogger())
	require.NoError(t, client.Close())

	err := client.Connect(context.Background())
	require.Error(t, err)
}

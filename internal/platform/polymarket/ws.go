package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the time allowed between inbound messages before the
	// connection is considered dead. The server answers every PING, so a
	// healthy connection never goes quiet this long.
	readWait = 60 * time.Second

	// defaultPingInterval is how often the keepalive "PING" text frame is sent.
	defaultPingInterval = 10 * time.Second

	// defaultMaxReconnectAttempts bounds consecutive reconnect attempts
	// before the client gives up permanently.
	defaultMaxReconnectAttempts = 5

	// defaultMaxReconnectDelay caps the exponential backoff between attempts.
	defaultMaxReconnectDelay = 60 * time.Second
)

// BookHandler is called when a full orderbook snapshot is received.
type BookHandler func(domain.BookSnapshot)

// PriceChangeHandler is called when a top-of-book price move is received.
type PriceChangeHandler func(domain.PriceChange)

// LastTradeHandler is called when a last trade price message is received.
type LastTradeHandler func(domain.LastTrade)

// TickSizeHandler is called when the minimum price increment changes.
type TickSizeHandler func(domain.TickSizeChange)

// WSClient is a WebSocket client for the Polymarket CLOB market data feed.
// It manages the connection lifecycle, the market-channel subscription, and
// dispatches messages to registered handlers. Disconnects trigger
// exponential-backoff reconnection; after the attempt budget is exhausted
// the client stops permanently and signals via Stopped.
type WSClient struct {
	wsURL        string
	pingInterval time.Duration
	maxAttempts  int
	maxDelay     time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// assetIDs is the subscription to restore after reconnect.
	assetIDs []string

	handlerMu         sync.RWMutex
	bookHandlers      []BookHandler
	priceHandlers     []PriceChangeHandler
	lastTradeHandlers []LastTradeHandler
	tickSizeHandlers  []TickSizeHandler

	// events buffers inbound frames between the read loop and the handler
	// dispatch goroutine, so a slow handler cannot stall reads.
	events       chan []byte
	dispatchOnce sync.Once

	// done is closed on deliberate shutdown; stopped is closed when the
	// reconnect budget runs out.
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// WSOptions tunes the client's keepalive and reconnection behaviour. Zero
// values select the defaults.
type WSOptions struct {
	PingInterval         time.Duration
	MaxReconnectAttempts int
	MaxReconnectDelay    time.Duration
}

// NewWSClient creates a WebSocket client for the given market-channel URL,
// e.g. "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string, opts WSOptions, logger *slog.Logger) *WSClient {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if opts.MaxReconnectDelay <= 0 {
		opts.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	return &WSClient{
		wsURL:        wsURL,
		pingInterval: opts.PingInterval,
		maxAttempts:  opts.MaxReconnectAttempts,
		maxDelay:     opts.MaxReconnectDelay,
		logger:       logger.With(slog.String("component", "polymarket_ws")),
		events:       make(chan []byte, 256),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and restores the market
// subscription if one was registered before.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrStreamClosed)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn
	w.conn.SetReadDeadline(time.Now().Add(readWait))

	// Restore the subscription before any loops run on this connection, so
	// a failed write leaves no goroutines behind.
	if len(w.assetIDs) > 0 {
		if err := w.sendSubscription(w.assetIDs); err != nil {
			conn.Close()
			w.conn = nil
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}

	w.dispatchOnce.Do(func() { go w.dispatchLoop() })
	go w.readLoop(conn)
	go w.pingLoop(conn)

	return nil
}

// Subscribe subscribes to market data for the given outcome token IDs.
// Before Connect the IDs are only queued; Connect sends them.
func (w *WSClient) Subscribe(ctx context.Context, assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrStreamClosed)
	}

	// Track the union for (re)connection.
	seen := make(map[string]struct{}, len(w.assetIDs))
	for _, a := range w.assetIDs {
		seen[a] = struct{}{}
	}
	for _, a := range assetIDs {
		if _, ok := seen[a]; !ok {
			w.assetIDs = append(w.assetIDs, a)
		}
	}

	if w.conn == nil {
		return nil
	}
	if err := w.sendSubscription(w.assetIDs); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// Close shuts down the WebSocket connection and stops all loops.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// Stopped is closed when the client has permanently given up reconnecting.
func (w *WSClient) Stopped() <-chan struct{} {
	return w.stopped
}

// OnBook registers a handler for full orderbook snapshots.
func (w *WSClient) OnBook(handler BookHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.bookHandlers = append(w.bookHandlers, handler)
}

// OnPriceChange registers a handler for top-of-book price moves.
func (w *WSClient) OnPriceChange(handler PriceChangeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.priceHandlers = append(w.priceHandlers, handler)
}

// OnLastTrade registers a handler for last trade price messages.
func (w *WSClient) OnLastTrade(handler LastTradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.lastTradeHandlers = append(w.lastTradeHandlers, handler)
}

// OnTickSizeChange registers a handler for tick size changes.
func (w *WSClient) OnTickSizeChange(handler TickSizeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tickSizeHandlers = append(w.tickSizeHandlers, handler)
}

// ReconnectDelay returns the backoff before reconnect attempt n (1-based):
// 2^n seconds capped at max. The sequence for the default budget is
// 2s, 4s, 8s, 16s, 32s.
func ReconnectDelay(attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	secs := math.Pow(2, float64(attempt))
	d := time.Duration(secs * float64(time.Second))
	if d > max || d <= 0 {
		return max
	}
	return d
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscription writes the market-channel subscription payload. Caller
// must hold w.mu.
func (w *WSClient) sendSubscription(assetIDs []string) error {
	sub := WSSubscription{
		AssetIDs: assetIDs,
		Type:     "market",
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages from one connection and dispatches them until the
// connection dies, then hands off to reconnect.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.logger.Warn("read failed, reconnecting", slog.String("error", err.Error()))
			conn.Close()
			w.reconnect()
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
		select {
		case w.events <- message:
		default:
			w.logger.Warn("event buffer full, dropping frame", slog.Int("bytes", len(message)))
		}
	}
}

// dispatchLoop drains buffered frames and runs the registered handlers.
func (w *WSClient) dispatchLoop() {
	for {
		select {
		case <-w.done:
			return
		case message := <-w.events:
			w.handleMessage(message)
		}
	}
}

// pingLoop sends the keepalive "PING" text frame at the configured interval.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw frame and routes it by event_type. Keepalive
// responses and unparseable frames are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	if string(raw) == "PONG" {
		return
	}

	var envelope wsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		w.logger.Debug("dropping unparseable frame", slog.Int("bytes", len(raw)))
		return
	}

	switch envelope.EventType {
	case "book":
		var msg BookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		snap := msg.ToDomainSnapshot()

		w.handlerMu.RLock()
		handlers := w.bookHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(snap)
		}

	case "price_change":
		var msg PriceChangeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		change := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.priceHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(change)
		}

	case "last_trade_price":
		var msg LastTradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		trade := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.lastTradeHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(trade)
		}

	case "tick_size_change":
		var msg TickSizeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		change := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.tickSizeHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(change)
		}

	default:
		w.logger.Debug("dropping unknown event type",
			slog.String("event_type", envelope.EventType))
	}
}

// reconnect re-establishes the connection with exponential backoff. After
// maxAttempts consecutive failures it gives up permanently and closes the
// Stopped channel.
func (w *WSClient) reconnect() {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		delay := ReconnectDelay(attempt, w.maxDelay)
		w.logger.Info("reconnecting",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.maxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			w.logger.Info("reconnected", slog.Int("attempt", attempt))
			return
		}
		w.logger.Warn("reconnect attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}

	w.logger.Error("reconnect budget exhausted, stream stopped",
		slog.Int("attempts", w.maxAttempts))
	w.stopOnce.Do(func() { close(w.stopped) })
}

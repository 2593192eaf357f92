package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// PriceChangeHandler is called for each price_change event received on the
// market channel.
type PriceChangeHandler func(assetID string, price float64, at time.Time)

// WSClient is a WebSocket client for the Polymarket CLOB market data feed.
// It manages the connection lifecycle, the subscription, and dispatches
// price_change events to the registered handler.
type WSClient struct {
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	onPrice   PriceChangeHandler
	handlerMu sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
	// readDone is closed when the read loop exits, i.e. the connection dropped.
	readDone chan struct{}
}

// NewWSClient creates a new WebSocket client for the given endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL:    wsURL,
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// OnPriceChange registers the handler invoked for each price_change event.
func (w *WSClient) OnPriceChange(h PriceChangeHandler) {
	w.handlerMu.Lock()
	w.onPrice = h
	w.handlerMu.Unlock()
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	return nil
}

// Subscribe subscribes to the market channel for the given asset IDs.
func (w *WSClient) Subscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	cmd := WSCommand{
		Type:      "market",
		AssetsIDs: assetIDs,
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// readLoop consumes frames until the connection drops or the client closes.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer close(w.readDone)
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		w.dispatch(raw)
	}
}

// dispatch decodes a frame and invokes the price handler for price_change
// events. The market channel sends both single events and arrays of events.
func (w *WSClient) dispatch(raw []byte) {
	var events []WSPriceChange
	if err := json.Unmarshal(raw, &events); err != nil {
		var single WSPriceChange
		if err := json.Unmarshal(raw, &single); err != nil {
			return
		}
		events = []WSPriceChange{single}
	}

	w.handlerMu.RLock()
	handler := w.onPrice
	w.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	for _, ev := range events {
		if ev.EventType != "price_change" || ev.AssetID == "" {
			continue
		}
		price, err := parsePrice(ev.Price)
		if err != nil {
			continue
		}
		at := time.Now().UTC()
		if ms, err := parseMillis(ev.Timestamp); err == nil {
			at = ms
		}
		handler(ev.AssetID, price, at)
	}
}

// pingLoop keeps the connection alive until it drops or the client closes.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close shuts down the client and its connection.
func (w *WSClient) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		w.conn.Close()
	}
}

// Done is closed once the connection's read loop has exited.
func (w *WSClient) Done() <-chan struct{} {
	return w.readDone
}

func parsePrice(s string) (float64, error) {
	var p float64
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return 0, err
	}
	return p, nil
}

func parseMillis(s string) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal([]byte(s), &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer accepts CLOB-style connections and reports each subscription.
type wsTestServer struct {
	*httptest.Server
	subs chan []string
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{subs: make(chan []string, 8)}
	upgrader := websocket.Upgrader{}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd struct {
			Type      string   `json:"type"`
			AssetsIDs []string `json:"assets_ids"`
		}
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.subs <- cmd.AssetsIDs

		// Hold the connection open until the client drops it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitForSub(t *testing.T, s *wsTestServer) []string {
	t.Helper()
	select {
	case got := <-s.subs:
		return got
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription arrived")
		return nil
	}
}

// tokenList is a concurrency-safe mutable TokenSource for tests.
type tokenList struct {
	mu  sync.Mutex
	ids []string
}

func (l *tokenList) set(ids ...string) {
	l.mu.Lock()
	l.ids = ids
	l.mu.Unlock()
}

func (l *tokenList) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

func newTestFeed(srv *wsTestServer, tokens *tokenList, onPrice PriceHandler) *PolymarketWSFeed {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if onPrice == nil {
		onPrice = func(string, float64, time.Time) {}
	}
	f := NewPolymarketWSFeed(srv.wsURL(), tokens.get, onPrice, logger)
	f.checkInterval = 20 * time.Millisecond
	return f
}

func TestFeedSubscribesOnceTokensAppear(t *testing.T) {
	srv := newWSTestServer(t)
	tokens := &tokenList{}
	f := newTestFeed(srv, tokens, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	// A fresh start has no resolved token IDs yet; the feed must keep
	// re-checking the source instead of idling forever.
	tokens.set("tok-1")
	assert.Equal(t, []string{"tok-1"}, waitForSub(t, srv))

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}

func TestFeedResubscribesWhenTokenSetChanges(t *testing.T) {
	srv := newWSTestServer(t)
	tokens := &tokenList{}
	tokens.set("tok-1")
	f := newTestFeed(srv, tokens, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	assert.Equal(t, []string{"tok-1"}, waitForSub(t, srv))

	// A position added after startup brings a new token ID.
	tokens.set("tok-1", "tok-2")
	assert.ElementsMatch(t, []string{"tok-1", "tok-2"}, waitForSub(t, srv))
}

func TestSameTokenSetIgnoresOrder(t *testing.T) {
	assert.True(t, sameTokenSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameTokenSet([]string{"a"}, []string{"a", "b"}))
	assert.False(t, sameTokenSet([]string{"a", "b"}, []string{"a", "c"}))
	assert.True(t, sameTokenSet(nil, nil))
}

func TestFeedForwardsPriceChanges(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd struct {
			Type      string   `json:"type"`
			AssetsIDs []string `json:"assets_ids"`
		}
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		conn.WriteJSON(map[string]string{
			"event_type": "price_change",
			"asset_id":   "tok-1",
			"price":      "0.42",
			"timestamp":  "1700000000000",
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	tokens := &tokenList{}
	tokens.set("tok-1")

	type sample struct {
		tokenID string
		price   float64
	}
	got := make(chan sample, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := NewPolymarketWSFeed("ws"+strings.TrimPrefix(srv.URL, "http"), tokens.get,
		func(tokenID string, price float64, at time.Time) {
			got <- sample{tokenID: tokenID, price: price}
		}, logger)
	f.checkInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case s := <-got:
		require.Equal(t, "tok-1", s.tokenID)
		assert.InDelta(t, 0.42, s.price, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no price sample arrived")
	}
}

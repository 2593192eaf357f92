// Package feed streams live prices from the Polymarket CLOB WebSocket into
// the tracker between poll cycles.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/platform/polymarket"
)

const (
	// reconnectDelay paces reconnect attempts after a dropped connection.
	reconnectDelay = 2 * time.Second

	// subscriptionCheckInterval paces comparisons of the live subscription
	// against the current token set.
	subscriptionCheckInterval = 30 * time.Second
)

// errStaleSubscription signals that the token set changed and the connection
// must be rebuilt with a fresh subscription.
var errStaleSubscription = errors.New("feed: subscription out of date")

// TokenSource returns the CLOB token IDs the feed should be subscribed to.
// It is re-evaluated between connections and on a fixed interval, so tokens
// resolved after startup are picked up.
type TokenSource func() []string

// PriceHandler receives each live price sample for a subscribed token.
type PriceHandler func(tokenID string, price float64, at time.Time)

// PolymarketWSFeed connects to the CLOB WebSocket, subscribes to price
// changes for the tokens reported by the source, and invokes the handler on
// each sample. It reconnects on disconnect and rebuilds the subscription
// whenever the token set changes.
type PolymarketWSFeed struct {
	wsURL   string
	tokens  TokenSource
	onPrice PriceHandler
	logger  *slog.Logger

	checkInterval time.Duration
}

// NewPolymarketWSFeed creates a feed over the given token source.
func NewPolymarketWSFeed(wsURL string, tokens TokenSource, onPrice PriceHandler, logger *slog.Logger) *PolymarketWSFeed {
	return &PolymarketWSFeed{
		wsURL:         wsURL,
		tokens:        tokens,
		onPrice:       onPrice,
		logger:        logger.With(slog.String("component", "polymarket_ws_feed")),
		checkInterval: subscriptionCheckInterval,
	}
}

// Run connects and streams until ctx is cancelled. With no tokens to
// subscribe it waits and re-checks the source instead of connecting.
func (f *PolymarketWSFeed) Run(ctx context.Context) error {
	for {
		tokenIDs := f.tokens()
		if len(tokenIDs) == 0 {
			f.logger.Debug("no token IDs to subscribe, feed waiting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.checkInterval):
			}
			continue
		}

		err := f.runConnection(ctx, tokenIDs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errStaleSubscription) {
			f.logger.Info("token set changed, resubscribing")
			continue
		}
		f.logger.Warn("polymarket ws disconnected, reconnecting",
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// runConnection runs one connection until it drops, the token set changes,
// or ctx is cancelled.
func (f *PolymarketWSFeed) runConnection(ctx context.Context, tokenIDs []string) error {
	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnPriceChange(func(tokenID string, price float64, at time.Time) {
		f.onPrice(tokenID, price, at)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(tokenIDs); err != nil {
		return err
	}
	f.logger.Info("polymarket ws subscribed", slog.Int("tokens", len(tokenIDs)))

	ticker := time.NewTicker(f.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.Done():
			return domain.ErrWSDisconnect
		case <-ticker.C:
			if !sameTokenSet(tokenIDs, f.tokens()) {
				return errStaleSubscription
			}
		}
	}
}

// sameTokenSet compares two token ID lists ignoring order.
func sameTokenSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

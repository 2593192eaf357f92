package domain

import (
	"context"
	"time"
)

// MarketSource provides market discovery and metadata lookups.
type MarketSource interface {
	ListMarkets(ctx context.Context, limit, offset int) ([]MarketSnapshot, error)
	GetMarket(ctx context.Context, id string) (MarketSnapshot, error)
	GetMarketBySlug(ctx context.Context, slug string) (MarketSnapshot, error)
}

// BookSource provides order-book derived prices per instrument token.
type BookSource interface {
	GetBestPrices(ctx context.Context, tokenID string) (bestBid, bestAsk float64, err error)
}

// MarketResolver maps a user-supplied market reference (id, slug, or free
// text) to a market snapshot, recording which method succeeded.
type MarketResolver interface {
	Resolve(ctx context.Context, ref string) (MarketSnapshot, string, error)
}

// AlertSink receives candidate alert events; implementations decide whether
// each event survives deduplication and is recorded and dispatched.
type AlertSink interface {
	Raise(ctx context.Context, pos Position, event AlertEvent)
}

// SnapshotArchiver receives a copy of each durable snapshot for cold storage.
// Implementations are best-effort; failures must not affect the local write.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, name string, data []byte, at time.Time) error
}

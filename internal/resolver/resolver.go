package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/polytrack/internal/cache"
	"github.com/alanyoungcy/polytrack/internal/domain"
)

// Resolution methods recorded on the position after a successful resolve.
const (
	MethodID    = "id"
	MethodSlug  = "slug"
	MethodFuzzy = "fuzzy"
)

// Config tunes the resolver.
type Config struct {
	MinScore       int
	MaxSuggestions int
	ListingLimit   int
	MarketTTL      time.Duration
	ListingTTL     time.Duration
}

// Resolver resolves market references in order: direct id lookup, slug
// lookup, then fuzzy keyword scoring over the cached active market set.
type Resolver struct {
	source domain.MarketSource
	cache  *cache.Cache
	cfg    Config
	logger *slog.Logger
}

// New creates a Resolver reading markets from source through the shared
// stampede-protected cache.
func New(source domain.MarketSource, c *cache.Cache, cfg Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		source: source,
		cache:  c,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "resolver")),
	}
}

// Resolve maps ref to a market snapshot and reports which method succeeded
// ("id", "slug", or "fuzzy"). A fuzzy miss below the minimum score returns a
// domain.NoMatchError carrying alternative suggestions, distinct from
// network or not-found failures of the lookups themselves.
func (r *Resolver) Resolve(ctx context.Context, ref string) (domain.MarketSnapshot, string, error) {
	// 1. Direct ID lookup.
	snap, err := r.marketByID(ctx, ref)
	if err == nil {
		return snap, MethodID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrClient) {
		return domain.MarketSnapshot{}, "", err
	}

	// 2. Slug lookup.
	snap, err = r.marketBySlug(ctx, ref)
	if err == nil {
		return snap, MethodSlug, nil
	}
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrClient) {
		return domain.MarketSnapshot{}, "", err
	}

	// 3. Fuzzy keyword fallback over the active set.
	snap, err = r.fuzzy(ctx, ref)
	if err != nil {
		return domain.MarketSnapshot{}, "", err
	}
	return snap, MethodFuzzy, nil
}

// fuzzy scores every active market against the query and picks the best,
// provided it reaches the configured minimum. Ties keep the candidate seen
// first in upstream listing order.
func (r *Resolver) fuzzy(ctx context.Context, query string) (domain.MarketSnapshot, error) {
	markets, err := r.activeMarkets(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	ranked := make([]scored, 0, len(markets))
	for i := range markets {
		m := &markets[i]
		s := Score(query, Candidate{
			Question:        m.Question,
			Description:     m.Description,
			AcceptingOrders: m.AcceptingOrders,
			Closed:          m.Closed,
			Liquidity:       m.Liquidity,
			Volume24h:       m.Volume24h,
		})
		if s > 0 {
			ranked = append(ranked, scored{index: i, score: s})
		}
	}

	// Stable sort keeps upstream listing order for equal scores.
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if len(ranked) > 0 && ranked[0].score >= r.cfg.MinScore {
		best := markets[ranked[0].index]
		r.logger.DebugContext(ctx, "fuzzy resolution",
			slog.String("query", query),
			slog.String("market_id", best.ID),
			slog.Int("score", ranked[0].score),
		)
		return best, nil
	}

	n := r.cfg.MaxSuggestions
	if n > len(ranked) {
		n = len(ranked)
	}
	suggestions := make([]domain.Suggestion, 0, n)
	for _, sc := range ranked[:n] {
		m := markets[sc.index]
		suggestions = append(suggestions, domain.Suggestion{
			MarketID: m.ID,
			Slug:     m.Slug,
			Question: m.Question,
			Score:    sc.score,
			YesPrice: m.YesPrice,
		})
	}
	return domain.MarketSnapshot{}, &domain.NoMatchError{Query: query, Suggestions: suggestions}
}

// marketByID fetches a market by ID through the cache.
func (r *Resolver) marketByID(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	v, err := r.cache.Get(ctx, "market:id:"+id, r.cfg.MarketTTL, func(ctx context.Context) (any, error) {
		return r.source.GetMarket(ctx, id)
	})
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return v.(domain.MarketSnapshot), nil
}

// marketBySlug fetches a market by slug through the cache.
func (r *Resolver) marketBySlug(ctx context.Context, slug string) (domain.MarketSnapshot, error) {
	v, err := r.cache.Get(ctx, "market:slug:"+slug, r.cfg.MarketTTL, func(ctx context.Context) (any, error) {
		return r.source.GetMarketBySlug(ctx, slug)
	})
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return v.(domain.MarketSnapshot), nil
}

// activeMarkets returns the cached active market listing, paging through the
// upstream until the configured limit is reached.
func (r *Resolver) activeMarkets(ctx context.Context) ([]domain.MarketSnapshot, error) {
	v, err := r.cache.Get(ctx, "markets:active", r.cfg.ListingTTL, func(ctx context.Context) (any, error) {
		const pageSize = 100
		var all []domain.MarketSnapshot
		for offset := 0; offset < r.cfg.ListingLimit; offset += pageSize {
			page, err := r.source.ListMarkets(ctx, pageSize, offset)
			if err != nil {
				return nil, fmt.Errorf("resolver: list active markets: %w", err)
			}
			all = append(all, page...)
			if len(page) < pageSize {
				break
			}
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.MarketSnapshot), nil
}

// Compile-time interface check.
var _ domain.MarketResolver = (*Resolver)(nil)

package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// gammaGroup is the circuit-breaker group for Gamma API calls.
const gammaGroup = "gamma"

// GammaClient is the REST client for the Polymarket Gamma API, which provides
// market discovery, metadata, and search. All calls go through the shared
// resilient executor.
type GammaClient struct {
	baseURL  string
	executor *Executor
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, executor *Executor) *GammaClient {
	return &GammaClient{
		baseURL:  baseURL,
		executor: executor,
	}
}

// ListMarkets returns a page of currently active, open markets.
func (g *GammaClient) ListMarkets(ctx context.Context, limit, offset int) ([]domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := g.executor.Do(ctx, gammaGroup, http.MethodGet, g.baseURL, "/markets", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]domain.MarketSnapshot, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToSnapshot())
	}

	return markets, nil
}

// GetMarket returns a single market by its ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(id))

	body, err := g.executor.Do(ctx, gammaGroup, http.MethodGet, g.baseURL, path, nil)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return apiMarket.ToSnapshot(), nil
}

// GetMarketBySlug returns a single market looked up by its URL slug.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.executor.Do(ctx, gammaGroup, http.MethodGet, g.baseURL, "/markets", params)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	if len(apiMarkets) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	return apiMarkets[0].ToSnapshot(), nil
}

// Compile-time interface check.
var _ domain.MarketSource = (*GammaClient)(nil)

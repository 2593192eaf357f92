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

// clobGroup is the circuit-breaker group for CLOB API calls.
const clobGroup = "clob"

// ClobClient is the REST client for the public (read-only) endpoints of the
// Polymarket CLOB API: order books and instrument prices.
type ClobClient struct {
	baseURL  string
	executor *Executor
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, executor *Executor) *ClobClient {
	return &ClobClient{
		baseURL:  baseURL,
		executor: executor,
	}
}

// GetBestPrices returns the best bid and ask for the given instrument token.
func (c *ClobClient) GetBestPrices(ctx context.Context, tokenID string) (float64, float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.executor.Do(ctx, clobGroup, http.MethodGet, c.baseURL, "/book", params)
	if err != nil {
		return 0, 0, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return 0, 0, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	bestBid, bestAsk := book.BestPrices()
	return bestBid, bestAsk, nil
}

// GetPrice returns the current market price for the given instrument token
// and side ("BUY" or "SELL").
func (c *ClobClient) GetPrice(ctx context.Context, tokenID, side string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", side)

	body, err := c.executor.Do(ctx, clobGroup, http.MethodGet, c.baseURL, "/price", params)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get price %s: %w", tokenID, err)
	}

	var apiPrice APIPrice
	if err := json.Unmarshal(body, &apiPrice); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode price: %w", err)
	}

	price, err := strconv.ParseFloat(apiPrice.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: parse price %q: %w", apiPrice.Price, err)
	}
	return price, nil
}

// Compile-time interface check.
var _ domain.BookSource = (*ClobClient)(nil)

package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// dataGroup is the circuit-breaker group for Data API calls.
const dataGroup = "data"

// DataClient is the REST client for the Polymarket Data API, which lists
// on-chain positions and activity per wallet.
type DataClient struct {
	baseURL  string
	executor *Executor
}

// NewDataClient creates a new Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string, executor *Executor) *DataClient {
	return &DataClient{
		baseURL:  baseURL,
		executor: executor,
	}
}

// ListWalletPositions returns the on-chain positions held by the given wallet
// address. The address is validated and normalised to its checksummed form
// before the request is issued.
func (d *DataClient) ListWalletPositions(ctx context.Context, address string) ([]APIWalletPosition, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("polymarket/data: %w: %s", domain.ErrInvalidAddress, address)
	}
	checksummed := common.HexToAddress(address).Hex()

	params := url.Values{}
	params.Set("user", checksummed)

	body, err := d.executor.Do(ctx, dataGroup, http.MethodGet, d.baseURL, "/positions", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: list positions for %s: %w", checksummed, err)
	}

	var positions []APIWalletPosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	return positions, nil
}

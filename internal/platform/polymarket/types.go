package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string, both of which
// the Gamma API emits for volume and liquidity fields.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	Active          flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed          flexBool  `json:"closed"`
	AcceptingOrders flexBool  `json:"acceptingOrders"`
	OutcomePrices   string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs    string    `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Volume24h       flexFloat `json:"volume24hr"`
	Liquidity       flexFloat `json:"liquidityNum"`
	BestBid         flexFloat `json:"bestBid"`
	BestAsk         flexFloat `json:"bestAsk"`
	EndDate         string    `json:"endDate"`
}

// ToSnapshot converts an APIMarket to a domain.MarketSnapshot, decoding the
// JSON-encoded price and token arrays.
func (m *APIMarket) ToSnapshot() domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		ID:              m.ID,
		Slug:            m.Slug,
		Question:        m.Question,
		Description:     m.Description,
		Volume24h:       float64(m.Volume24h),
		Liquidity:       float64(m.Liquidity),
		BestBid:         float64(m.BestBid),
		BestAsk:         float64(m.BestAsk),
		Active:          bool(m.Active),
		Closed:          bool(m.Closed),
		AcceptingOrders: bool(m.AcceptingOrders),
	}

	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil && len(prices) >= 2 {
		snap.YesPrice, _ = strconv.ParseFloat(prices[0], 64)
		snap.NoPrice, _ = strconv.ParseFloat(prices[1], 64)
	}
	if snap.NoPrice == 0 && snap.YesPrice > 0 {
		snap.NoPrice = 1 - snap.YesPrice
	}

	var tokens []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokens); err == nil && len(tokens) >= 2 {
		snap.TokenIDs = [2]string{tokens[0], tokens[1]}
	}

	if m.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			snap.EndDate = t
		}
	}

	return snap
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is a single price level in a CLOB order book response.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the order book for one instrument token.
type APIBook struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []APIBookLevel `json:"bids"`
	Asks    []APIBookLevel `json:"asks"`
}

// BestPrices returns the best bid and ask from the book. The CLOB API sorts
// bids ascending and asks descending, so the best level is the last entry.
func (b *APIBook) BestPrices() (bestBid, bestAsk float64) {
	if n := len(b.Bids); n > 0 {
		bestBid, _ = strconv.ParseFloat(b.Bids[n-1].Price, 64)
	}
	if n := len(b.Asks); n > 0 {
		bestAsk, _ = strconv.ParseFloat(b.Asks[n-1].Price, 64)
	}
	return bestBid, bestAsk
}

// APIPrice is the response of the CLOB /price endpoint.
type APIPrice struct {
	Price string `json:"price"`
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIWalletPosition is one entry from the Data API wallet positions listing.
type APIWalletPosition struct {
	ProxyWallet  string    `json:"proxyWallet"`
	ConditionID  string    `json:"conditionId"`
	AssetID      string    `json:"asset"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Outcome      string    `json:"outcome"` // "Yes" or "No"
	Size         flexFloat `json:"size"`
	AvgPrice     flexFloat `json:"avgPrice"`
	InitialValue flexFloat `json:"initialValue"`
	CurrentValue flexFloat `json:"currentValue"`
	CurPrice     flexFloat `json:"curPrice"`
	EndDate      string    `json:"endDate"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is a subscription command sent to the CLOB WebSocket.
type WSCommand struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

// WSPriceChange is a price_change event from the market channel.
type WSPriceChange struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

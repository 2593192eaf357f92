package domain

import "time"

// MarketSnapshot is a transient view of a prediction market as reported by
// the upstream provider. It is consumed during a refresh cycle and never
// persisted independently.
type MarketSnapshot struct {
	ID              string
	Slug            string
	Question        string
	Description     string
	YesPrice        float64
	NoPrice         float64
	Volume24h       float64
	Liquidity       float64
	BestBid         float64
	BestAsk         float64
	Active          bool
	Closed          bool
	AcceptingOrders bool
	EndDate         time.Time
	TokenIDs        [2]string // [yes, no] CLOB token IDs
}

// PriceFor returns the market price for the given side.
func (m *MarketSnapshot) PriceFor(side Side) float64 {
	if side == SideNo {
		return m.NoPrice
	}
	return m.YesPrice
}

// DaysToResolution returns the fractional days until the market's end date,
// or 0 when no end date is known or it has passed.
func (m *MarketSnapshot) DaysToResolution(now time.Time) float64 {
	if m.EndDate.IsZero() || !m.EndDate.After(now) {
		return 0
	}
	return m.EndDate.Sub(now).Hours() / 24
}

// Suggestion is one alternative offered when fuzzy market resolution fails
// to reach the minimum score.
type Suggestion struct {
	MarketID string  `json:"market_id"`
	Slug     string  `json:"slug"`
	Question string  `json:"question"`
	Score    int     `json:"score"`
	YesPrice float64 `json:"yes_price"`
}

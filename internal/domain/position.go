package domain

import "time"

// PositionStatus tracks whether a position is active or closed.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
)

// Side is the outcome a position is held on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Position represents a tracked prediction-market position. Status only ever
// moves active -> closed; a closed position is never reopened or deleted.
type Position struct {
	ID               string         `json:"id"`
	MarketRef        string         `json:"market_ref"` // id, slug, or free-text query
	MarketID         string         `json:"market_id"`  // resolved market ID, empty until first refresh
	MarketQuestion   string         `json:"market_question,omitempty"`
	TokenID          string         `json:"token_id,omitempty"` // CLOB token for the held side
	Side             Side           `json:"side"`
	Invested         float64        `json:"invested"`
	EntryPrice       float64        `json:"entry_price"`
	CurrentPrice     float64        `json:"current_price"`
	CurrentValue     float64        `json:"current_value"`
	PnL              float64        `json:"pnl"`
	PnLPercent       float64        `json:"pnl_percent"`
	DaysToResolution float64        `json:"days_to_resolution"`
	Status           PositionStatus `json:"status"`
	ResolvedBy       string         `json:"resolved_by,omitempty"` // id, slug, or fuzzy
	UpdateError      string         `json:"update_error,omitempty"`
	UpdateErrorAt    *time.Time     `json:"update_error_at,omitempty"`
	OpenedAt         time.Time      `json:"opened_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ClosedAt         *time.Time     `json:"closed_at,omitempty"`
	ExitPrice        *float64       `json:"exit_price,omitempty"`
	RealizedPnL      *float64       `json:"realized_pnl,omitempty"`
}

// MarketKey returns the identity used for per-market locking and alert
// fingerprints: the resolved market ID when known, the raw reference before
// the first successful resolution.
func (p *Position) MarketKey() string {
	if p.MarketID != "" {
		return p.MarketID
	}
	return p.MarketRef
}

// PortfolioSummary aggregates the full position set.
type PortfolioSummary struct {
	ActivePositions int       `json:"active_positions"`
	ClosedPositions int       `json:"closed_positions"`
	FailedUpdates   int       `json:"failed_updates"`
	TotalInvested   float64   `json:"total_invested"`
	TotalValue      float64   `json:"total_value"`
	TotalPnL        float64   `json:"total_pnl"`
	PnLPercent      float64   `json:"pnl_percent"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PricePoint is one sample in a market's bounded price history.
type PricePoint struct {
	MarketKey string    `json:"market_key"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

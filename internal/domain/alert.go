package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// AlertType classifies the condition that raised an alert.
type AlertType string

const (
	AlertPriceMove    AlertType = "PRICE_MOVE"
	AlertTakeProfit   AlertType = "TAKE_PROFIT"
	AlertStopLoss     AlertType = "STOP_LOSS"
	AlertTimeDecay    AlertType = "TIME_DECAY"
	AlertLowLiquidity AlertType = "LOW_LIQUIDITY"
)

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "LOW"
	SeverityMedium AlertSeverity = "MEDIUM"
	SeverityHigh   AlertSeverity = "HIGH"
)

// AlertEvent is a single actionable condition detected during a refresh.
type AlertEvent struct {
	Type      AlertType     `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	MarketKey string        `json:"market_key"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// Fingerprint derives the deduplication key for the event. Severity is part
// of the key, so a MEDIUM and a later HIGH alert of the same type are
// separate alerts.
func (e *AlertEvent) Fingerprint() string {
	h := sha1.New()
	h.Write([]byte(e.MarketKey))
	h.Write([]byte{0})
	h.Write([]byte(e.Type))
	h.Write([]byte{0})
	h.Write([]byte(e.Severity))
	return hex.EncodeToString(h.Sum(nil))
}

// AlertRecord is an immutable persisted AlertEvent linked to the position
// that produced it.
type AlertRecord struct {
	ID         string        `json:"id"`
	PositionID string        `json:"position_id"`
	Type       AlertType     `json:"type"`
	Severity   AlertSeverity `json:"severity"`
	MarketKey  string        `json:"market_key"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AlertFilter selects a subset of alert history.
type AlertFilter struct {
	PositionID string
	Type       AlertType
	Severity   AlertSeverity
	Since      time.Time
	Limit      int
}

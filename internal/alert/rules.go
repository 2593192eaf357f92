// Package alert evaluates alert rules over refreshed positions and manages
// deduplication, history, and dispatch of the resulting events.
package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// RuleConfig holds the alert rule thresholds. Every threshold is
// configuration, not a hardcoded contract.
type RuleConfig struct {
	PriceMovePercent    float64 // absolute % move that raises PRICE_MOVE
	PriceMoveHighFactor float64 // multiple of PriceMovePercent that upgrades severity to HIGH
	TakeProfitPercent   float64 // PnL% at or above raises TAKE_PROFIT
	StopLossPercent     float64 // PnL% at or below raises STOP_LOSS (negative)
	TimeDecayDays       float64 // days-to-resolution at or below raises TIME_DECAY
	LowLiquidity        float64 // liquidity below raises LOW_LIQUIDITY
}

// Input bundles everything rule evaluation needs for one position. Baseline
// is the market price from the far edge of the history window; HasBaseline
// is false while the window has not filled yet.
type Input struct {
	Position     domain.Position
	Liquidity    float64
	CurrentPrice float64
	Baseline     float64
	HasBaseline  bool
}

// Evaluate runs every rule independently over the input and returns zero or
// more alert events. It is a pure function of its arguments.
func Evaluate(in Input, cfg RuleConfig, now time.Time) []domain.AlertEvent {
	var events []domain.AlertEvent
	key := in.Position.MarketKey()

	if in.HasBaseline && in.Baseline > 0 {
		movePct := (in.CurrentPrice - in.Baseline) / in.Baseline * 100
		if math.Abs(movePct) >= cfg.PriceMovePercent {
			severity := domain.SeverityMedium
			if math.Abs(movePct) >= cfg.PriceMovePercent*cfg.PriceMoveHighFactor {
				severity = domain.SeverityHigh
			}
			events = append(events, domain.AlertEvent{
				Type:      domain.AlertPriceMove,
				Severity:  severity,
				MarketKey: key,
				Message:   fmt.Sprintf("price moved %+.1f%% (%.3f -> %.3f)", movePct, in.Baseline, in.CurrentPrice),
				Timestamp: now,
			})
		}
	}

	if in.Position.PnLPercent >= cfg.TakeProfitPercent {
		events = append(events, domain.AlertEvent{
			Type:      domain.AlertTakeProfit,
			Severity:  domain.SeverityHigh,
			MarketKey: key,
			Message:   fmt.Sprintf("position up %.1f%%, take-profit threshold %.1f%% reached", in.Position.PnLPercent, cfg.TakeProfitPercent),
			Timestamp: now,
		})
	}

	if in.Position.PnLPercent <= cfg.StopLossPercent {
		events = append(events, domain.AlertEvent{
			Type:      domain.AlertStopLoss,
			Severity:  domain.SeverityHigh,
			MarketKey: key,
			Message:   fmt.Sprintf("position down %.1f%%, stop-loss threshold %.1f%% breached", in.Position.PnLPercent, cfg.StopLossPercent),
			Timestamp: now,
		})
	}

	if d := in.Position.DaysToResolution; d > 0 && d <= cfg.TimeDecayDays {
		events = append(events, domain.AlertEvent{
			Type:      domain.AlertTimeDecay,
			Severity:  domain.SeverityMedium,
			MarketKey: key,
			Message:   fmt.Sprintf("market resolves in %.1f days", d),
			Timestamp: now,
		})
	}

	if in.Liquidity < cfg.LowLiquidity {
		events = append(events, domain.AlertEvent{
			Type:      domain.AlertLowLiquidity,
			Severity:  domain.SeverityLow,
			MarketKey: key,
			Message:   fmt.Sprintf("liquidity $%.0f below $%.0f", in.Liquidity, cfg.LowLiquidity),
			Timestamp: now,
		})
	}

	return events
}

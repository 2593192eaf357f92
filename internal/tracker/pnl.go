package tracker

import "github.com/alanyoungcy/polytrack/internal/domain"

// PnL is the valuation of a position at a given market price.
type PnL struct {
	Shares    float64
	Value     float64
	Profit    float64
	PctProfit float64
}

// ComputePnL values a position. entryPrice and currentPrice are quoted for
// the YES outcome; a NO position is valued on the complement of both, since
// its shares were bought at 1-entry and are worth 1-current each.
func ComputePnL(side domain.Side, invested, entryPrice, currentPrice float64) PnL {
	entry := entryPrice
	current := currentPrice
	if side == domain.SideNo {
		entry = 1 - entryPrice
		current = 1 - currentPrice
	}
	if invested <= 0 || entry <= 0 {
		return PnL{}
	}

	shares := invested / entry
	value := shares * current
	profit := value - invested

	return PnL{
		Shares:    shares,
		Value:     value,
		Profit:    profit,
		PctProfit: profit / invested * 100,
	}
}

package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

func TestComputePnLYes(t *testing.T) {
	pnl := ComputePnL(domain.SideYes, 100, 0.30, 0.40)

	assert.InDelta(t, 333.33, pnl.Shares, 0.01)
	assert.InDelta(t, 133.33, pnl.Value, 0.01)
	assert.InDelta(t, 33.33, pnl.Profit, 0.01)
	assert.InDelta(t, 33.33, pnl.PctProfit, 0.01)
}

func TestComputePnLNoValuesComplement(t *testing.T) {
	// Prices are YES-denominated: a NO position bought when YES traded at
	// 0.30 cost 0.70 per share; YES rising to 0.40 makes NO worth 0.60.
	pnl := ComputePnL(domain.SideNo, 100, 0.30, 0.40)

	assert.InDelta(t, 142.86, pnl.Shares, 0.01)
	assert.InDelta(t, 85.71, pnl.Value, 0.01)
	assert.InDelta(t, -14.29, pnl.Profit, 0.01)
	assert.InDelta(t, -14.29, pnl.PctProfit, 0.01)
}

func TestComputePnLFlatPriceIsZeroProfit(t *testing.T) {
	pnl := ComputePnL(domain.SideYes, 50, 0.25, 0.25)

	assert.InDelta(t, 200, pnl.Shares, 1e-9)
	assert.InDelta(t, 50, pnl.Value, 1e-9)
	assert.InDelta(t, 0, pnl.Profit, 1e-9)
	assert.InDelta(t, 0, pnl.PctProfit, 1e-9)
}

func TestComputePnLDegenerateInputs(t *testing.T) {
	assert.Zero(t, ComputePnL(domain.SideYes, 0, 0.5, 0.6))
	assert.Zero(t, ComputePnL(domain.SideYes, 100, 0, 0.6))
	// A NO position with YES entry at 1.0 has a zero-cost share; undefined.
	assert.Zero(t, ComputePnL(domain.SideNo, 100, 1.0, 0.6))
}

package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSize_RiskBudget(t *testing.T) {
	// risk 1% of 10000 = 100 quote, stop distance 5 → qty 20
	qty, notional := ComputeSize(100, 95, 10000, 0.01, SizerConstraints{QtyStep: 0.001})
	assert.InDelta(t, 20.0, qty, 1e-9)
	assert.InDelta(t, 2000.0, notional, 1e-9)
}

func TestComputeSize_FlooredToQtyStep(t *testing.T) {
	// raw qty 100/7 = 14.2857... → floors to 14.28 on a 0.01 step
	qty, _ := ComputeSize(100, 93, 10000, 0.01, SizerConstraints{QtyStep: 0.01})
	assert.InDelta(t, 14.28, qty, 1e-9)
}

func TestComputeSize_DegenerateInputs(t *testing.T) {
	t.Run("zero stop distance", func(t *testing.T) {
		qty, notional := ComputeSize(100, 100, 10000, 0.01, SizerConstraints{})
		assert.Zero(t, qty)
		assert.Zero(t, notional)
	})
	t.Run("zero balance", func(t *testing.T) {
		qty, _ := ComputeSize(100, 95, 0, 0.01, SizerConstraints{})
		assert.Zero(t, qty)
	})
	t.Run("negative risk pct", func(t *testing.T) {
		qty, _ := ComputeSize(100, 95, 10000, -0.01, SizerConstraints{})
		assert.Zero(t, qty)
	})
}

func TestComputeSize_MinNotionalFloor(t *testing.T) {
	// risk sizing yields 0.2 qty = 20 notional, below the 50 minimum
	qty, notional := ComputeSize(100, 95, 100, 0.01, SizerConstraints{QtyStep: 0.1, MinNotional: 50})
	assert.InDelta(t, 0.5, qty, 1e-9)
	assert.InDelta(t, 50.0, notional, 1e-9)
}

func TestFloorStep(t *testing.T) {
	assert.InDelta(t, 0.123, floorStep(0.12345, 0.001), 1e-12)
	assert.InDelta(t, 14.28, floorStep(14.2857, 0.01), 1e-12)
	// zero step passes the value through
	assert.InDelta(t, 1.23456, floorStep(1.23456, 0), 1e-12)
}

// Package trading holds the pure sizing and planning math that turns a gate
// verdict into an actionable entry plan.
package trading

import (
	"math"

	"github.com/shopspring/decimal"
)

// SizerConstraints 描述交易所的精度与最小名义价值约束。
type SizerConstraints struct {
	PriceStep   float64
	QtyStep     float64
	MinNotional float64
}

// floorStep floors x down to a multiple of step using decimal arithmetic so
// lot-size granularity never drifts by a float epsilon.
func floorStep(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	xd := decimal.NewFromFloat(x)
	sd := decimal.NewFromFloat(step)
	f, _ := xd.Div(sd).Floor().Mul(sd).Float64()
	return f
}

// ComputeSize converts a risk budget and stop distance into a trade quantity.
//
// Risk sizing is the primary driver: quantity = balance×riskPct / |entry-sl|,
// floored to the lot step. The minimum-notional floor applies only afterwards,
// when risk sizing would produce a dust order. Degenerate inputs (zero stop
// distance, zero budget) yield (0, 0) rather than an error.
func ComputeSize(entry, sl, balanceQuote, riskPct float64, c SizerConstraints) (qty, notional float64) {
	riskAmt := math.Max(0, balanceQuote*math.Max(0, riskPct))
	r := math.Abs(entry - sl)
	if r <= 0 || riskAmt <= 0 {
		return 0, 0
	}
	qty = riskAmt / r
	if c.QtyStep > 0 {
		qty = floorStep(qty, c.QtyStep)
	}
	notional = qty * entry
	if notional < c.MinNotional {
		target := c.MinNotional / math.Max(1e-12, entry)
		if c.QtyStep > 0 {
			target = floorStep(target, c.QtyStep)
		}
		qty = target
		notional = qty * entry
	}
	return qty, notional
}

package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }

// crossedLimit reports whether the current price crossed a resting limit
// order: LONG fills when price trades at or under the limit, SHORT at or over.
func crossedLimit(side string, price, limit float64) bool {
	if side == "SHORT" {
		return decimalGTE(price, limit)
	}
	return decimalLTE(price, limit)
}

func hitTakeProfit(side string, price, tp float64) bool {
	if tp <= 0 {
		return false
	}
	if side == "SHORT" {
		return decimalLTE(price, tp)
	}
	return decimalGTE(price, tp)
}

func hitStopLoss(side string, price, sl float64) bool {
	if sl <= 0 {
		return false
	}
	if side == "SHORT" {
		return decimalGTE(price, sl)
	}
	return decimalLTE(price, sl)
}

// tightensStop reports whether candidate moves the stop in the protective
// direction. Adjustments must never loosen risk.
func tightensStop(side string, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	if side == "SHORT" {
		return decimalCompare(candidate, current) < 0
	}
	return decimalCompare(candidate, current) > 0
}

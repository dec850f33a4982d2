package trading

import "sharkbot/internal/signal"

// PlanConfig 汇总制定入场计划需要的全部配置。
type PlanConfig struct {
	SLATRMult    float64
	RRTarget     float64
	BalanceQuote float64
	RiskPct      float64
	ProbePct     float64
	FullPct      float64
	TTLSec       int64
	Constraints  SizerConstraints
}

// Plan is the entry/SL/TP/size bundle the execution engine consumes.
type Plan struct {
	EntryPrice   float64 `json:"entry_price"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
	RValue       float64 `json:"r_value"`
	SizeFull     float64 `json:"size_full"`
	SizeProbe    float64 `json:"size_probe"`
	NotionalFull float64 `json:"notional_full"`
	TTLSec       int64   `json:"ttl_sec"`
}

// PlanProbeAndTopup builds the staged entry plan for one side.
//
// Entry is the most recent close rather than a lagging average. Stop sits
// slATRMult×ATR away, take-profit at rrTarget R from
// entry. Sizing is delegated to ComputeSize; the probe stage gets probePct of
// the full quantity.
func PlanProbeAndTopup(side signal.Direction, lastClose, atr float64, cfg PlanConfig) Plan {
	entry := lastClose
	if atr <= 0 {
		// missing ATR: fall back to 1% of price so the stop is never at entry
		atr = entry * 0.01
	}
	slMult := cfg.SLATRMult
	if slMult <= 0 {
		slMult = 1.2
	}
	rr := cfg.RRTarget
	if rr <= 0 {
		rr = 2.0
	}

	var sl, tp, r float64
	if side == signal.DirectionLong {
		sl = entry - slMult*atr
		r = entry - sl
		tp = entry + rr*r
	} else {
		sl = entry + slMult*atr
		r = sl - entry
		tp = entry - rr*r
	}

	qtyFull, notional := ComputeSize(entry, sl, cfg.BalanceQuote, cfg.RiskPct, cfg.Constraints)
	if cfg.FullPct > 0 && cfg.FullPct < 1 {
		qtyFull = floorStep(qtyFull*cfg.FullPct, cfg.Constraints.QtyStep)
		notional = qtyFull * entry
	}
	probePct := cfg.ProbePct
	if probePct <= 0 || probePct > 1 {
		probePct = 0.3
	}
	ttl := cfg.TTLSec
	if ttl <= 0 {
		ttl = 30
	}
	return Plan{
		EntryPrice:   entry,
		SL:           sl,
		TP:           tp,
		RValue:       r,
		SizeFull:     qtyFull,
		SizeProbe:    floorStep(qtyFull*probePct, cfg.Constraints.QtyStep),
		NotionalFull: notional,
		TTLSec:       ttl,
	}
}

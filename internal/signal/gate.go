package signal

import (
	"fmt"
	"math"
	"time"
)

// heavySet 是慢周期上的重趋势指标集合：与 side 同向的数量必须达到
// heavy_required 才放行。
var heavySet = []Indicator{IndicatorEMA200, IndicatorSupertrend, IndicatorRange}

// GateConfig carries the thresholds of one evaluation gate.
type GateConfig struct {
	// Epsilon is the hysteresis band around a tied score: the side stays
	// neutral unless one score leads by more than this.
	Epsilon float64
	// FastScoreThreshold is the absolute fast-timeframe score floor.
	FastScoreThreshold float64
	// FastScoreActivePct, when >0, derives a second threshold as a fraction
	// of the active total weight; the effective threshold is the smaller of
	// the two.
	FastScoreActivePct float64
	SlowADXThreshold   float64
	HeavyRequired      int
	AntiChaseATRMult   float64
	CooldownSec        int64
}

// GateInput is one cycle's view of a pair: fast-timeframe tally, slow
// timeframe directions plus the auxiliary snapshot values the filters need.
type GateInput struct {
	Symbol    string
	Timeframe string

	Fast           VoteResult
	SlowDirections map[Indicator]Direction
	SlowADX        float64

	Price float64
	VWAP  float64
	ATR   float64
}

// GateDecision reports every sub-condition individually so a blocked entry is
// always explainable.
type GateDecision struct {
	Side       Direction `json:"side"`
	GatePass   bool      `json:"gate_pass"`
	Stable     bool      `json:"stable"`
	InCooldown bool      `json:"in_cooldown"`
	EntryReady bool      `json:"entry_ready"`

	SlowOK      bool    `json:"slow_ok"`
	FastOK      bool    `json:"fast_ok"`
	AntiChaseOK bool    `json:"anti_chase_ok"`
	HeavyHits   int     `json:"heavy_hits"`
	FastScore   float64 `json:"fast_score"`
	FastCutoff  float64 `json:"fast_cutoff"`
	ChaseDist   float64 `json:"chase_dist"`

	Reasons []string `json:"reasons,omitempty"`
}

// Evaluator combines the gates with the stability tracker and the cooldown
// manager into the final entry-ready verdict.
type Evaluator struct {
	cfg       GateConfig
	stability *StablePassTracker
	cooldown  *CooldownManager
}

func NewEvaluator(cfg GateConfig, stability *StablePassTracker, cooldown *CooldownManager) *Evaluator {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.1
	}
	return &Evaluator{cfg: cfg, stability: stability, cooldown: cooldown}
}

func (e *Evaluator) Cooldown() *CooldownManager { return e.cooldown }

// DecideSide picks the provisional side with an epsilon hysteresis band so
// near-tied scores do not flip-flop between cycles.
func DecideSide(scoreLong, scoreShort, eps float64) Direction {
	if scoreLong-scoreShort > eps {
		return DirectionLong
	}
	if scoreShort-scoreLong > eps {
		return DirectionShort
	}
	return DirectionNeutral
}

// HeavyHits counts the heavy trend indicators agreeing with side on the slow
// timeframe.
func HeavyHits(dirs map[Indicator]Direction, side Direction) int {
	if side == DirectionNeutral {
		return 0
	}
	hits := 0
	for _, id := range heavySet {
		if dirs[id] == side {
			hits++
		}
	}
	return hits
}

// AntiChaseOK rejects entries whose distance from the volume-weighted
// reference exceeds mult×ATR. Returns the measured distance too.
func AntiChaseOK(price, vwap, atr, mult float64) (bool, float64) {
	dist := math.Abs(price - vwap)
	return dist <= mult*atr, dist
}

// fastCutoff resolves the effective fast-score threshold: the configured
// absolute value, optionally lowered to a fraction of the active weight when
// fast_score_active_pct is set. 取两者较小值。
func (e *Evaluator) fastCutoff(activeTotal float64) float64 {
	cutoff := e.cfg.FastScoreThreshold
	if e.cfg.FastScoreActivePct > 0 && activeTotal > 0 {
		dyn := e.cfg.FastScoreActivePct * activeTotal
		if dyn < cutoff {
			cutoff = dyn
		}
	}
	return cutoff
}

// Evaluate runs all gates for one pair and feeds the outcome through the
// stability tracker and cooldown check.
func (e *Evaluator) Evaluate(in GateInput, now time.Time) GateDecision {
	d := GateDecision{
		Side:      DecideSide(in.Fast.ScoreLong, in.Fast.ScoreShort, e.cfg.Epsilon),
		FastScore: 0,
	}

	d.HeavyHits = HeavyHits(in.SlowDirections, d.Side)
	d.SlowOK = d.Side != DirectionNeutral &&
		in.SlowADX >= e.cfg.SlowADXThreshold &&
		d.HeavyHits >= e.cfg.HeavyRequired

	d.FastScore = in.Fast.SideScore(d.Side)
	d.FastCutoff = e.fastCutoff(in.Fast.ActiveTotalWeight)
	d.FastOK = d.Side != DirectionNeutral && d.FastScore >= d.FastCutoff

	d.AntiChaseOK, d.ChaseDist = AntiChaseOK(in.Price, in.VWAP, in.ATR, e.cfg.AntiChaseATRMult)

	d.GatePass = d.SlowOK && d.FastOK && d.AntiChaseOK && d.Side != DirectionNeutral

	d.Stable = e.stability.Update(in.Symbol, in.Timeframe, d.Side, d.GatePass, now)
	d.InCooldown = e.cooldown.InCooldown(in.Symbol, in.Timeframe, e.cfg.CooldownSec, now)
	d.EntryReady = d.GatePass && d.Stable && !d.InCooldown

	if !d.SlowOK {
		d.Reasons = append(d.Reasons, fmt.Sprintf("H1 gate (adx=%.2f/%.2f heavy=%d/%d)",
			in.SlowADX, e.cfg.SlowADXThreshold, d.HeavyHits, e.cfg.HeavyRequired))
	}
	if !d.FastOK {
		d.Reasons = append(d.Reasons, fmt.Sprintf("M15 score (%.2f < %.2f)", d.FastScore, d.FastCutoff))
	}
	if !d.AntiChaseOK {
		d.Reasons = append(d.Reasons, fmt.Sprintf("Anti-chase (|%.4f-%.4f|=%.4f > %.2f*ATR(%.4f))",
			in.Price, in.VWAP, d.ChaseDist, e.cfg.AntiChaseATRMult, in.ATR))
	}
	if d.Side == DirectionNeutral {
		d.Reasons = append(d.Reasons, "Side neutral")
	}
	if d.InCooldown {
		d.Reasons = append(d.Reasons, "Cooldown")
	}
	if !d.Stable {
		d.Reasons = append(d.Reasons, fmt.Sprintf("Not stable (progress=%d)", e.stability.Progress(in.Symbol, in.Timeframe)))
	}
	return d
}

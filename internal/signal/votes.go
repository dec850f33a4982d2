package signal

// WeightTable 是指标→权重映射，键使用规范化标识。
type WeightTable map[Indicator]float64

// DefaultWeights is the built-in per-indicator weight set. Timeframe-specific
// overrides from configuration are layered on top via Merged.
var DefaultWeights = WeightTable{
	IndicatorEMA200:         2.65,
	IndicatorMA50:           1.27,
	IndicatorSupertrend:     2.12,
	IndicatorMACD:           1.80,
	IndicatorRSI:            1.16,
	IndicatorADX:            1.16,
	IndicatorVWAP:           1.38,
	IndicatorRange:          1.38,
	IndicatorChaikinMF:      1.06,
	IndicatorVolumeSpike:    1.06,
	IndicatorStochRSI:       1.06,
	IndicatorBollingerBands: 1.90,
}

// NewWeightTable normalizes raw config keys into a WeightTable. Negative
// weights are clamped to zero.
func NewWeightTable(raw map[string]float64) WeightTable {
	out := make(WeightTable, len(raw))
	for name, w := range raw {
		id := NormalizeIndicator(name)
		if id == "" {
			continue
		}
		if w < 0 {
			w = 0
		}
		out[id] = w
	}
	return out
}

// Merged returns a copy of the default table with overrides applied.
func (t WeightTable) Merged(overrides WeightTable) WeightTable {
	out := make(WeightTable, len(t)+len(overrides))
	for id, w := range t {
		out[id] = w
	}
	for id, w := range overrides {
		out[id] = w
	}
	return out
}

// Weight 返回指标权重，未知指标默认 1.0。
func (t WeightTable) Weight(id Indicator) float64 {
	if w, ok := t[id]; ok {
		return w
	}
	return 1.0
}

// Total sums every weight in the table.
func (t WeightTable) Total() float64 {
	sum := 0.0
	for _, w := range t {
		sum += w
	}
	return sum
}

// VoteResult is the derived outcome of one tally. It is recomputed every
// cycle and never persisted.
type VoteResult struct {
	VotesLong  int     `json:"votes_long"`
	VotesShort int     `json:"votes_short"`
	ScoreLong  float64 `json:"score_long"`
	ScoreShort float64 `json:"score_short"`

	LongList    []Indicator `json:"long_list"`
	ShortList   []Indicator `json:"short_list"`
	NeutralList []Indicator `json:"neutral_list"`

	BreakdownLong    map[Indicator]float64 `json:"breakdown_long"`
	BreakdownShort   map[Indicator]float64 `json:"breakdown_short"`
	BreakdownNeutral map[Indicator]float64 `json:"breakdown_neutral"`

	TotalWeight       float64 `json:"total_weight"`
	ActiveTotalWeight float64 `json:"active_total_weight"`
}

// SideScore returns the score of one side (0 for neutral).
func (r VoteResult) SideScore(side Direction) float64 {
	switch side {
	case DirectionLong:
		return r.ScoreLong
	case DirectionShort:
		return r.ScoreShort
	default:
		return 0
	}
}

// TallyVotes converts indicator votes into weighted directional scores.
// The breakdown maps cover every key of the weight table, breakdown value 0
// for indicators absent from the input, so reports always show the full
// vocabulary. Pure function: no side effects, no error conditions.
func TallyVotes(votes map[Indicator]Direction, weights WeightTable) VoteResult {
	if weights == nil {
		weights = DefaultWeights
	}
	res := VoteResult{
		BreakdownLong:    make(map[Indicator]float64, len(weights)),
		BreakdownShort:   make(map[Indicator]float64, len(weights)),
		BreakdownNeutral: make(map[Indicator]float64, len(weights)),
	}
	for id, dir := range votes {
		w := weights.Weight(id)
		switch dir {
		case DirectionLong:
			res.VotesLong++
			res.ScoreLong += w
			res.LongList = append(res.LongList, id)
			res.BreakdownLong[id] = w
			res.BreakdownShort[id] = 0
			res.BreakdownNeutral[id] = 0
		case DirectionShort:
			res.VotesShort++
			res.ScoreShort += w
			res.ShortList = append(res.ShortList, id)
			res.BreakdownShort[id] = w
			res.BreakdownLong[id] = 0
			res.BreakdownNeutral[id] = 0
		default:
			res.NeutralList = append(res.NeutralList, id)
			res.BreakdownNeutral[id] = w
			res.BreakdownLong[id] = 0
			res.BreakdownShort[id] = 0
		}
		// active total counts only indicators present in the weight table
		if w, ok := weights[id]; ok {
			res.ActiveTotalWeight += w
		}
	}
	res.TotalWeight = weights.Total()
	for id := range weights {
		if _, ok := res.BreakdownLong[id]; !ok {
			res.BreakdownLong[id] = 0
		}
		if _, ok := res.BreakdownShort[id]; !ok {
			res.BreakdownShort[id] = 0
		}
		if _, ok := res.BreakdownNeutral[id]; !ok {
			res.BreakdownNeutral[id] = 0
		}
	}
	return res
}

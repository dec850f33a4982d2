// Package indicator computes the per-timeframe snapshot the gate layer
// consumes. Raw numerical recipes come from go-talib; composite overlays
// (Supertrend, range filter, VWAP, Chaikin MF, volume spike) are derived here.
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"sharkbot/internal/market"
	"sharkbot/internal/signal"
)

// Settings 描述计算指标所需的最小配置。
type Settings struct {
	EMASlowPeriod  int
	MAFastPeriod   int
	RSIPeriod      int
	ADXPeriod      int
	ATRPeriod      int
	SupertrendMult float64
	VolSpikeMult   float64
}

func (s Settings) withDefaults() Settings {
	out := s
	if out.EMASlowPeriod <= 0 {
		out.EMASlowPeriod = 200
	}
	if out.MAFastPeriod <= 0 {
		out.MAFastPeriod = 50
	}
	if out.RSIPeriod <= 0 {
		out.RSIPeriod = 14
	}
	if out.ADXPeriod <= 0 {
		out.ADXPeriod = 14
	}
	if out.ATRPeriod <= 0 {
		out.ATRPeriod = 14
	}
	if out.SupertrendMult <= 0 {
		out.SupertrendMult = 3.0
	}
	if out.VolSpikeMult <= 0 {
		out.VolSpikeMult = 2.0
	}
	return out
}

// Snapshot 保存一个 symbol+interval 的最新指标值。
type Snapshot struct {
	Close  float64 `json:"close"`
	EMA200 float64 `json:"ema200"`
	MA50   float64 `json:"ma50"`

	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	RSI        float64 `json:"rsi"`
	ADX        float64 `json:"adx"`
	ATR        float64 `json:"atr"`
	VWAP       float64 `json:"vwap"`

	SupertrendUp bool    `json:"supertrend_up"`
	RangeUp      bool    `json:"range_up"`
	ChaikinMF    float64 `json:"chaikin_mf"`
	VolumeSpike  bool    `json:"volume_spike"`
	StochRSI     float64 `json:"stoch_rsi"`

	BollUpper float64 `json:"boll_upper"`
	BollLower float64 `json:"boll_lower"`
}

// Compute builds the snapshot from a closed-candle series. The caller must
// have checked minimum history; short series return an error instead of
// half-initialized values.
func Compute(candles []market.Candle, cfg Settings) (Snapshot, error) {
	cfg = cfg.withDefaults()
	if len(candles) < cfg.EMASlowPeriod {
		return Snapshot{}, fmt.Errorf("insufficient history: %d < %d", len(candles), cfg.EMASlowPeriod)
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	snap := Snapshot{Close: closes[n-1]}

	snap.EMA200 = last(talib.Ema(closes, cfg.EMASlowPeriod))
	snap.MA50 = last(talib.Sma(closes, cfg.MAFastPeriod))

	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)
	snap.MACD = last(macd)
	snap.MACDSignal = last(macdSignal)

	snap.RSI = last(talib.Rsi(closes, cfg.RSIPeriod))
	snap.ADX = last(talib.Adx(highs, lows, closes, cfg.ADXPeriod))

	atrSeries := talib.Atr(highs, lows, closes, cfg.ATRPeriod)
	snap.ATR = last(atrSeries)

	snap.VWAP = vwap(highs, lows, closes, volumes)
	snap.SupertrendUp = supertrendUp(highs, lows, closes, atrSeries, cfg.SupertrendMult)
	snap.RangeUp = rangeFilterUp(closes, atrSeries)
	snap.ChaikinMF = chaikinMoneyFlow(highs, lows, closes, volumes, 20)
	snap.VolumeSpike = volumeSpike(volumes, 20, cfg.VolSpikeMult)

	fastK, _ := talib.StochRsi(closes, cfg.RSIPeriod, 14, 3, talib.SMA)
	// scale to 0..1 like the classic StochRSI oscillator
	snap.StochRSI = last(fastK) / 100.0

	upper, _, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	snap.BollUpper = last(upper)
	snap.BollLower = last(lower)

	return snap, nil
}

// Directions maps the snapshot onto canonical per-indicator votes. This is
// the single place where raw values become LONG/SHORT/NEUTRAL; the voting
// engine never sees numbers.
func Directions(s Snapshot) map[signal.Indicator]signal.Direction {
	votes := map[signal.Indicator]signal.Direction{
		signal.IndicatorEMA200:     aboveBelow(s.Close, s.EMA200),
		signal.IndicatorMA50:       aboveBelow(s.Close, s.MA50),
		signal.IndicatorMACD:       aboveBelow(s.MACD, s.MACDSignal),
		signal.IndicatorVWAP:       aboveBelow(s.Close, s.VWAP),
		signal.IndicatorSupertrend: boolDir(s.SupertrendUp),
		signal.IndicatorRange:      boolDir(s.RangeUp),
		signal.IndicatorChaikinMF:  aboveBelow(s.ChaikinMF, 0),
	}

	switch {
	case s.RSI > 55:
		votes[signal.IndicatorRSI] = signal.DirectionLong
	case s.RSI < 45:
		votes[signal.IndicatorRSI] = signal.DirectionShort
	default:
		votes[signal.IndicatorRSI] = signal.DirectionNeutral
	}

	if s.ADX > 25 {
		votes[signal.IndicatorADX] = signal.DirectionLong
	} else {
		votes[signal.IndicatorADX] = signal.DirectionNeutral
	}

	if s.VolumeSpike {
		votes[signal.IndicatorVolumeSpike] = signal.DirectionLong
	} else {
		votes[signal.IndicatorVolumeSpike] = signal.DirectionNeutral
	}

	switch {
	case s.StochRSI > 0.8:
		votes[signal.IndicatorStochRSI] = signal.DirectionLong
	case s.StochRSI < 0.2:
		votes[signal.IndicatorStochRSI] = signal.DirectionShort
	default:
		votes[signal.IndicatorStochRSI] = signal.DirectionNeutral
	}

	switch {
	case s.Close > s.BollUpper:
		votes[signal.IndicatorBollingerBands] = signal.DirectionLong
	case s.Close < s.BollLower:
		votes[signal.IndicatorBollingerBands] = signal.DirectionShort
	default:
		votes[signal.IndicatorBollingerBands] = signal.DirectionNeutral
	}

	return votes
}

func aboveBelow(a, b float64) signal.Direction {
	if a > b {
		return signal.DirectionLong
	}
	return signal.DirectionShort
}

func boolDir(up bool) signal.Direction {
	if up {
		return signal.DirectionLong
	}
	return signal.DirectionShort
}

func last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

// vwap 以典型价加权的全窗口成交量均价作为公允参考价。
func vwap(highs, lows, closes, volumes []float64) float64 {
	var pv, vol float64
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3.0
		pv += typical * volumes[i]
		vol += volumes[i]
	}
	if vol <= 0 {
		return 0
	}
	return pv / vol
}

// supertrendUp runs a basic-band supertrend flip on the ATR series and
// returns the latest regime.
func supertrendUp(highs, lows, closes, atr []float64, mult float64) bool {
	n := len(closes)
	if n == 0 {
		return false
	}
	up := true
	var lowerBand, upperBand float64
	for i := 0; i < n; i++ {
		a := atr[i]
		if math.IsNaN(a) || a <= 0 {
			continue
		}
		mid := (highs[i] + lows[i]) / 2.0
		basicUpper := mid + mult*a
		basicLower := mid - mult*a
		if lowerBand == 0 || basicLower > lowerBand || closes[i-1] < lowerBand {
			lowerBand = basicLower
		}
		if upperBand == 0 || basicUpper < upperBand || closes[i-1] > upperBand {
			upperBand = basicUpper
		}
		if up && closes[i] < lowerBand {
			up = false
			lowerBand = basicLower
		} else if !up && closes[i] > upperBand {
			up = true
			upperBand = basicUpper
		}
	}
	return up
}

// rangeFilterUp is a smoothed-range breakout filter: price above the filter
// line means an up regime.
func rangeFilterUp(closes, atr []float64) bool {
	n := len(closes)
	if n == 0 {
		return false
	}
	filter := closes[0]
	for i := 1; i < n; i++ {
		band := atr[i]
		if math.IsNaN(band) || band <= 0 {
			continue
		}
		if closes[i] > filter+band {
			filter = closes[i] - band
		} else if closes[i] < filter-band {
			filter = closes[i] + band
		}
	}
	return closes[n-1] >= filter
}

func chaikinMoneyFlow(highs, lows, closes, volumes []float64, period int) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	if period <= 0 || period > n {
		period = n
	}
	var mfv, vol float64
	for i := n - period; i < n; i++ {
		span := highs[i] - lows[i]
		if span <= 0 {
			continue
		}
		mult := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / span
		mfv += mult * volumes[i]
		vol += volumes[i]
	}
	if vol <= 0 {
		return 0
	}
	return mfv / vol
}

func volumeSpike(volumes []float64, period int, mult float64) bool {
	n := len(volumes)
	if n < 2 {
		return false
	}
	if period <= 0 || period >= n {
		period = n - 1
	}
	var sum float64
	for i := n - 1 - period; i < n-1; i++ {
		sum += volumes[i]
	}
	avg := sum / float64(period)
	return avg > 0 && volumes[n-1] > mult*avg
}

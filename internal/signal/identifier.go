package signal

import "strings"

// Direction 表示单个指标的投票方向。
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// ParseDirection maps raw vote values onto a Direction. Synonyms from the
// upstream indicator layer (BUY/BULL, SELL/BEAR) are accepted; anything
// unrecognized counts as neutral.
func ParseDirection(raw string) Direction {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG", "BUY", "BULL":
		return DirectionLong
	case "SHORT", "SELL", "BEAR":
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// Indicator is the canonical identifier of a voting indicator: upper case,
// separators stripped. Producers normalize once at the ingestion boundary so
// weight tables and vote maps never disagree on spelling.
type Indicator string

// Canonical indicator identifiers used by the default weight table and the
// slow-timeframe heavy set.
const (
	IndicatorEMA200         Indicator = "EMA200"
	IndicatorMA50           Indicator = "MA50"
	IndicatorSupertrend     Indicator = "SUPERTREND"
	IndicatorMACD           Indicator = "MACD"
	IndicatorRSI            Indicator = "RSI"
	IndicatorADX            Indicator = "ADX"
	IndicatorVWAP           Indicator = "VWAP"
	IndicatorRange          Indicator = "RANGE"
	IndicatorChaikinMF      Indicator = "CHAIKINMF"
	IndicatorVolumeSpike    Indicator = "VOLUMESPIKE"
	IndicatorStochRSI       Indicator = "STOCHRSI"
	IndicatorBollingerBands Indicator = "BOLLINGERBANDS"
)

var separatorReplacer = strings.NewReplacer(" ", "", "-", "", "_", "")

// NormalizeIndicator converts a loosely spelled indicator name ("Chaikin_MF",
// "volume spike") into its canonical Indicator form.
func NormalizeIndicator(name string) Indicator {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return Indicator(strings.ToUpper(separatorReplacer.Replace(name)))
}

func pairKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

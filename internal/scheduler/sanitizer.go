package scheduler

import (
	"time"

	"sharkbot/internal/market"
)

// 收盘后的宽限期：交易所落盘该根K线可能有几秒延迟。
const DefaultBinanceKlineGrace = 10 * time.Second

// DropUnclosedBinanceKline 丢掉序列末尾仍在进行中的K线。币安风格的返回里，
// 最后一根可能是当前未收盘的蜡烛，喂给指标会造成重绘。
func DropUnclosedBinanceKline(klines []market.Candle, interval time.Duration) []market.Candle {
	return dropUnclosedBinanceKlineAt(klines, interval, time.Now().UTC(), DefaultBinanceKlineGrace)
}

// OpenTime 以毫秒计。
func dropUnclosedBinanceKlineAt(klines []market.Candle, interval time.Duration, now time.Time, grace time.Duration) []market.Candle {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	last := klines[len(klines)-1]
	if last.OpenTime <= 0 {
		return klines
	}
	if grace < 0 {
		grace = 0
	}
	closedBy := time.UnixMilli(last.OpenTime).Add(interval + grace)
	if now.Before(closedBy) {
		return klines[:len(klines)-1]
	}
	return klines
}

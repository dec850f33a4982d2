package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sharkbot/internal/market"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"1h", time.Hour, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{" 1H ", time.Hour, true},
		{"", 0, false},
		{"m", 0, false},
		{"0m", 0, false},
		{"-5m", 0, false},
		{"15x", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseIntervalDuration(tc.in)
		assert.Equal(t, tc.ok, ok, "input=%q", tc.in)
		assert.Equal(t, tc.want, got, "input=%q", tc.in)
	}
}

func TestDropUnclosedBinanceKline(t *testing.T) {
	interval := 15 * time.Minute
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	klines := []market.Candle{
		{OpenTime: base.UnixMilli()},
		{OpenTime: base.Add(interval).UnixMilli()},
	}

	t.Run("in-progress candle dropped", func(t *testing.T) {
		now := base.Add(interval + 5*time.Minute)
		out := dropUnclosedBinanceKlineAt(klines, interval, now, DefaultBinanceKlineGrace)
		assert.Len(t, out, 1)
	})

	t.Run("closed candle kept after grace", func(t *testing.T) {
		now := base.Add(2*interval + time.Minute)
		out := dropUnclosedBinanceKlineAt(klines, interval, now, DefaultBinanceKlineGrace)
		assert.Len(t, out, 2)
	})

	t.Run("inside grace window still dropped", func(t *testing.T) {
		now := base.Add(2 * interval).Add(5 * time.Second)
		out := dropUnclosedBinanceKlineAt(klines, interval, now, DefaultBinanceKlineGrace)
		assert.Len(t, out, 1)
	})

	t.Run("empty and zero interval pass through", func(t *testing.T) {
		assert.Empty(t, dropUnclosedBinanceKlineAt(nil, interval, base, 0))
		assert.Len(t, dropUnclosedBinanceKlineAt(klines, 0, base, 0), 2)
	})
}

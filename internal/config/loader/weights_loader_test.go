package loader

import (
	"os"
	"path/filepath"
	"testing"

	"sharkbot/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWeightsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewWeightsLoader(t *testing.T) {
	path := writeWeightsFile(t, `
weights_sets:
  15m:
    EMA200: 3.0
    RSI: 0.5
  1h:
    SUPERTREND: 1.0
`)
	l, err := NewWeightsLoader(path)
	require.NoError(t, err)

	t.Run("overrides merge onto defaults", func(t *testing.T) {
		tbl := l.Table("15m")
		assert.InDelta(t, 3.0, tbl.Weight(signal.IndicatorEMA200), 1e-9)
		assert.InDelta(t, 0.5, tbl.Weight(signal.IndicatorRSI), 1e-9)
		// 未覆盖的指标保持默认值。
		assert.InDelta(t, signal.DefaultWeights.Weight(signal.IndicatorMACD), tbl.Weight(signal.IndicatorMACD), 1e-9)
	})

	t.Run("timeframe lookup is case insensitive", func(t *testing.T) {
		tbl := l.Table(" 1H ")
		assert.InDelta(t, 1.0, tbl.Weight(signal.IndicatorSupertrend), 1e-9)
	})

	t.Run("unknown timeframe falls back to defaults", func(t *testing.T) {
		tbl := l.Table("4h")
		assert.InDelta(t, signal.DefaultWeights.Weight(signal.IndicatorEMA200), tbl.Weight(signal.IndicatorEMA200), 1e-9)
	})

	t.Run("snapshot is populated", func(t *testing.T) {
		snap := l.Snapshot()
		assert.Equal(t, int64(1), snap.Version)
		assert.Len(t, snap.Sets, 2)
		assert.False(t, snap.LoadedAt.IsZero())
	})
}

func TestNewWeightsLoaderRejectsBadInput(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := NewWeightsLoader("  ")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewWeightsLoader(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("negative weight violates schema", func(t *testing.T) {
		path := writeWeightsFile(t, "weights_sets:\n  15m:\n    RSI: -1\n")
		_, err := NewWeightsLoader(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema")
	})
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	path := writeWeightsFile(t, "weights_sets:\n  15m:\n    RSI: 2.0\n")
	l, err := NewWeightsLoader(path)
	require.NoError(t, err)

	got := make(chan Snapshot, 1)
	l.Subscribe(func(snap Snapshot) { got <- snap })

	snap := <-got
	assert.Equal(t, int64(1), snap.Version)
	assert.Contains(t, snap.Sets, "15m")
}

func TestTableFromConfig(t *testing.T) {
	t.Run("empty uses defaults", func(t *testing.T) {
		tbl := TableFromConfig(nil)
		assert.InDelta(t, signal.DefaultWeights.Weight(signal.IndicatorEMA200), tbl.Weight(signal.IndicatorEMA200), 1e-9)
	})

	t.Run("overrides win", func(t *testing.T) {
		tbl := TableFromConfig(map[string]float64{"ema200": 9.9})
		assert.InDelta(t, 9.9, tbl.Weight(signal.IndicatorEMA200), 1e-9)
	})
}

package decisionlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAppendAndRecent(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Append(Entry{
		TS: 100, Symbol: "BTC/USDT", Timeframe: "15m", Side: "LONG",
		ScoreLong: 7.5, ScoreShort: 1.2,
		GatePass: true, Stable: true, EntryReady: true,
	}))
	require.NoError(t, st.Append(Entry{
		TS: 160, Symbol: "BTC/USDT", Timeframe: "15m", Side: "NEUTRAL",
		InCooldown: true,
		Reasons:    []string{"cooldown_active", "fast_score_below_cutoff"},
	}))
	require.NoError(t, st.Append(Entry{
		TS: 160, Symbol: "ETH/USDT", Timeframe: "15m", Side: "SHORT",
		ScoreShort: 6.1,
	}))

	t.Run("newest first", func(t *testing.T) {
		got, err := st.Recent("", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "ETH/USDT", got[0].Symbol)
		assert.Equal(t, int64(100), got[2].TS)
	})

	t.Run("symbol filter", func(t *testing.T) {
		got, err := st.Recent("BTC/USDT", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, e := range got {
			assert.Equal(t, "BTC/USDT", e.Symbol)
		}
	})

	t.Run("reasons roundtrip", func(t *testing.T) {
		got, err := st.Recent("BTC/USDT", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].InCooldown)
		assert.Equal(t, []string{"cooldown_active", "fast_score_below_cutoff"}, got[0].Reasons)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := st.Recent("", 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestAppendFillsTimestamp(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Append(Entry{Symbol: "BTC/USDT", Timeframe: "15m", Side: "NEUTRAL"}))
	got, err := st.Recent("", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Greater(t, got[0].TS, int64(0))
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Close())

	assert.Error(t, st.Append(Entry{Symbol: "BTC/USDT"}))
	_, err := st.Recent("", 1)
	assert.Error(t, err)
	assert.NoError(t, st.Close())
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("   ")
	assert.Error(t, err)
}

package tradelog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "trades.db"))
	require.NoError(t, err)
	return st
}

func TestAppendAndRecent(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.Append(Record{
		TraceID: "t1", Symbol: "BTC/USDT", Timeframe: "15m", Side: "LONG", Stage: "full",
		Entry: 100, Exit: 110, PnL: 20, PnLR: 2, SL: 95, TP: 110, Size: 2,
		OpenedAt: 1000, ClosedAt: 2000,
		Context:  map[string]any{"exit_reason": "tp"},
	}))
	require.NoError(t, st.Append(Record{
		TraceID: "t2", Symbol: "ETH/USDT", Timeframe: "15m", Side: "SHORT", Stage: "probe",
		Entry: 50, Exit: 52, PnL: -2, PnLR: -1,
		OpenedAt: 3000, ClosedAt: 4000,
	}))

	got, err := st.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	t.Run("newest first", func(t *testing.T) {
		assert.Equal(t, "t2", got[0].TraceID)
		assert.Equal(t, "t1", got[1].TraceID)
	})

	t.Run("fields roundtrip", func(t *testing.T) {
		rec := got[1]
		assert.Equal(t, "BTC/USDT", rec.Symbol)
		assert.Equal(t, "LONG", rec.Side)
		assert.Equal(t, "full", rec.Stage)
		assert.Equal(t, 110.0, rec.Exit)
		assert.Equal(t, 2.0, rec.PnLR)
		assert.Equal(t, int64(2000), rec.ClosedAt)
	})

	t.Run("context roundtrip", func(t *testing.T) {
		assert.Equal(t, "tp", got[1].Context["exit_reason"])
		assert.Nil(t, got[0].Context)
	})
}

func TestRecentLimit(t *testing.T) {
	st := openTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Append(Record{TraceID: "x", Symbol: "BTC/USDT"}))
	}

	got, err := st.Recent(3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = st.Recent(0)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

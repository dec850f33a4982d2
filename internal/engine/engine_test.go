package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharkbot/internal/store/statestore"
	"sharkbot/internal/store/tradelog"
	"sharkbot/internal/trading"
)

// memStore 内存快照：engine 测试不落盘。
type memStore struct {
	data []byte
}

func (m *memStore) Save(v any) statestore.PersistResult {
	b, err := json.Marshal(v)
	if err != nil {
		return statestore.PersistResult{Err: err}
	}
	m.data = b
	return statestore.PersistResult{}
}

func (m *memStore) Load(out any) error {
	if m.data == nil {
		return nil
	}
	return json.Unmarshal(m.data, out)
}

type memTrades struct {
	recs []tradelog.Record
}

func (m *memTrades) Append(rec tradelog.Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

func testPlan() trading.Plan {
	return trading.Plan{
		EntryPrice: 100,
		SL:         95,
		TP:         110,
		RValue:     5,
		SizeFull:   2,
		SizeProbe:  1,
		TTLSec:     30,
	}
}

func newTestEngine(cfg Config) (*Engine, *memStore, *memTrades) {
	store := &memStore{}
	trades := &memTrades{}
	return New(cfg, store, trades, nil), store, trades
}

func TestTick_PlacesProbeOnce(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	require.Len(t, sum.Actions, 1)
	assert.Contains(t, sum.Actions[0], "place probe")

	snap := e.Snapshot()
	require.Len(t, snap.Orders, 1)
	od := snap.Orders["probe_1"]
	require.NotNil(t, od)
	assert.Equal(t, OrderStatusOpen, od.Status)
	assert.Equal(t, now.Unix()+30, od.ExpiresAt)

	// second tick with an outstanding order: price away from the limit, no new order
	sum = e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 101, now.Add(5*time.Second))
	assert.Empty(t, sum.Actions)
	assert.Len(t, e.Snapshot().Orders, 1)
}

func TestTick_ZeroSizePlanNeverPlaces(t *testing.T) {
	e, _, _ := newTestEngine(Config{})
	sum := e.Tick("BTC/USDT", "15m", "NEUTRAL", trading.Plan{}, 100, time.Unix(1000, 0))
	assert.Empty(t, sum.Actions)
	assert.Empty(t, e.Snapshot().Orders)
}

func TestTick_LimitFillsAtObservedPrice(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 99.9, now.Add(5*time.Second))

	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "fill probe")

	pos, ok := e.Position("BTC/USDT", "15m")
	require.True(t, ok)
	assert.Equal(t, StageProbe, pos.Stage)
	assert.InDelta(t, 99.9, pos.Entry, 1e-9) // fill at the observed price, not the limit
	assert.InDelta(t, 1.0, pos.Size, 1e-9)
	assert.InDelta(t, 95.0, pos.SL, 1e-9) // carried from the order placed with the plan
	assert.InDelta(t, 110.0, pos.TP, 1e-9)
}

func TestTick_FillOnBlockedCycleKeepsProtection(t *testing.T) {
	e, _, trades := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	// 放单的周期有完整计划
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	// 成交发生在被闸门拦下的周期：没有新计划可供回填
	sum := e.Tick("BTC/USDT", "15m", "NEUTRAL", trading.Plan{}, 99.9, now.Add(5*time.Second))
	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "fill probe")

	pos, ok := e.Position("BTC/USDT", "15m")
	require.True(t, ok)
	assert.InDelta(t, 95.0, pos.SL, 1e-9)
	assert.InDelta(t, 110.0, pos.TP, 1e-9)
	assert.InDelta(t, 5.0, pos.RValue, 1e-9)

	// 后续周期依旧无计划，价格击穿止损必须离场
	sum = e.Tick("BTC/USDT", "15m", "NEUTRAL", trading.Plan{}, 50, now.Add(10*time.Second))
	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[len(sum.Actions)-1], "close")
	_, ok = e.Position("BTC/USDT", "15m")
	assert.False(t, ok)
	require.Len(t, trades.recs, 1)
	assert.Less(t, trades.recs[0].PnL, 0.0)
}

func TestTick_SlippageGuardBlocksCrossedFill(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true, SlippageGuardPct: 0.2})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	// crossed (99 <= 100) but slip 1% exceeds the 0.2% guard: stay pending
	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 99, now.Add(5*time.Second))
	assert.Empty(t, sum.Actions)

	_, ok := e.Position("BTC/USDT", "15m")
	assert.False(t, ok)
}

func TestTick_TTLExpiryMarketFallback(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	// 31s later, price above the limit so never crossed, but within the guard
	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100.1, now.Add(31*time.Second))

	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "market fallback")

	pos, ok := e.Position("BTC/USDT", "15m")
	require.True(t, ok)
	assert.InDelta(t, 100.1, pos.Entry, 1e-9)

	snap := e.Snapshot()
	assert.Equal(t, OrderStatusMarketFallbackFilled, snap.Orders["probe_1"].Status)
}

func TestTick_TTLExpiryCancelWhenFallbackDisabled(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: false})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	sum := e.Tick("BTC/USDT", "15m", "LONG", trading.Plan{}, 100.1, now.Add(31*time.Second))

	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "cancel probe")

	snap := e.Snapshot()
	assert.Equal(t, OrderStatusCanceled, snap.Orders["probe_1"].Status)
	assert.Empty(t, snap.PairIndex)
	_, ok := e.Position("BTC/USDT", "15m")
	assert.False(t, ok)

	// pair is free again: the next ready plan may place a fresh probe
	sum = e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now.Add(60*time.Second))
	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "place probe")
	assert.Equal(t, "probe_2", e.Snapshot().PairIndex["BTC/USDT|15m"])
}

func TestTick_TTLExpiryCancelWhenSlippageTooLarge(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true, SlippageGuardPct: 0.2})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	sum := e.Tick("BTC/USDT", "15m", "LONG", trading.Plan{}, 105, now.Add(31*time.Second))

	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "cancel probe")
}

func TestPromoteToFull(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now.Add(5*time.Second))
	pos, ok := e.Position("BTC/USDT", "15m")
	require.True(t, ok)
	require.Equal(t, StageProbe, pos.Stage)

	promoted, msg := e.PromoteToFull("BTC/USDT", "15m", testPlan(), 110)
	assert.True(t, promoted)
	assert.Contains(t, msg, "promoted")

	pos, _ = e.Position("BTC/USDT", "15m")
	assert.Equal(t, StageFull, pos.Stage)
	assert.InDelta(t, 2.0, pos.Size, 1e-9)
	// size-weighted entry: (100*1 + 110*1) / 2
	assert.InDelta(t, 105.0, pos.Entry, 1e-9)

	t.Run("idempotent", func(t *testing.T) {
		promoted, reason := e.PromoteToFull("BTC/USDT", "15m", testPlan(), 120)
		assert.True(t, promoted)
		assert.Equal(t, "already_full", reason)
		again, _ := e.Position("BTC/USDT", "15m")
		assert.InDelta(t, 105.0, again.Entry, 1e-9) // no second mutation
	})
}

func TestPromoteToFull_NoProbe(t *testing.T) {
	e, _, _ := newTestEngine(Config{})
	promoted, reason := e.PromoteToFull("BTC/USDT", "15m", testPlan(), 100)
	assert.False(t, promoted)
	assert.Equal(t, "no_probe", reason)
}

func TestTick_TakeProfitExit(t *testing.T) {
	e, _, trades := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now.Add(5*time.Second))

	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 110, now.Add(10*time.Second))
	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[len(sum.Actions)-1], "close")

	_, ok := e.Position("BTC/USDT", "15m")
	assert.False(t, ok)

	require.Len(t, trades.recs, 1)
	rec := trades.recs[0]
	assert.Equal(t, "LONG", rec.Side)
	assert.Equal(t, "probe", rec.Stage)
	assert.InDelta(t, 10.0, rec.PnL, 1e-9)  // (110-100)*1
	assert.InDelta(t, 2.0, rec.PnLR, 1e-9)  // 10 / (5*1)
	assert.NotEmpty(t, rec.TraceID)
	assert.Equal(t, now.Add(10*time.Second).Unix(), rec.ClosedAt)
}

func TestTick_StopLossExitShort(t *testing.T) {
	e, _, trades := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)
	plan := trading.Plan{EntryPrice: 100, SL: 105, TP: 90, RValue: 5, SizeFull: 2, SizeProbe: 1, TTLSec: 30}

	e.Tick("BTC/USDT", "15m", "SHORT", plan, 100, now)
	e.Tick("BTC/USDT", "15m", "SHORT", plan, 100, now.Add(5*time.Second))

	e.Tick("BTC/USDT", "15m", "SHORT", plan, 105, now.Add(10*time.Second))
	require.Len(t, trades.recs, 1)
	assert.InDelta(t, -5.0, trades.recs[0].PnL, 1e-9) // (100-105)*1 for SHORT
	assert.InDelta(t, -1.0, trades.recs[0].PnLR, 1e-9)
}

func TestTick_BreakevenAndTrailing(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true, BreakevenAtR: 0.7, TrailingAtR: 1.0})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now.Add(5*time.Second))

	// gain 3.5 = 0.7R → stop to entry
	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 103.5, now.Add(10*time.Second))
	require.NotEmpty(t, sum.Actions)
	pos, _ := e.Position("BTC/USDT", "15m")
	assert.InDelta(t, 100.0, pos.SL, 1e-9)

	// gain 6 ≥ 1R → trail to price-R
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 106, now.Add(15*time.Second))
	pos, _ = e.Position("BTC/USDT", "15m")
	assert.InDelta(t, 101.0, pos.SL, 1e-9)

	// pullback: the stop never loosens
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 105.5, now.Add(20*time.Second))
	pos, _ = e.Position("BTC/USDT", "15m")
	assert.InDelta(t, 101.0, pos.SL, 1e-9)
}

func TestTick_DanglingIndexRecovered(t *testing.T) {
	store := &memStore{}
	// simulate a corrupt aggregate: the index points at an order that is gone
	broken := NewState()
	broken.PairIndex["BTC/USDT|15m"] = "probe_99"
	res := store.Save(broken)
	require.True(t, res.OK())

	e := New(Config{}, store, nil, nil)
	sum := e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, time.Unix(1000, 0))

	// recovered and immediately able to place again
	require.NotEmpty(t, sum.Actions)
	assert.Contains(t, sum.Actions[0], "place probe")
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true})
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now.Add(5*time.Second))

	snap := e.Snapshot()
	pos := snap.Positions["BTC/USDT|15m"]
	require.NotNil(t, pos)
	entryBefore := pos.Entry

	// 快照里改数据不能影响引擎
	pos.Entry = -1
	live, ok := e.Position("BTC/USDT", "15m")
	require.True(t, ok)
	assert.InDelta(t, entryBefore, live.Entry, 1e-9)

	// 引擎继续演进也不能改到已取出的快照
	e.PromoteToFull("BTC/USDT", "15m", testPlan(), 110)
	assert.Equal(t, StageProbe, snap.Positions["BTC/USDT|15m"].Stage)
}

func TestSnapshot_SafeWhileTicking(t *testing.T) {
	e, _, _ := newTestEngine(Config{AllowMarketFallback: true})
	start := time.Unix(1000, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			now := start.Add(time.Duration(i) * time.Second)
			e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100+float64(i%20), now)
			e.PromoteToFull("BTC/USDT", "15m", testPlan(), 110)
		}
	}()

	// 与循环并发读取：状态 API 的访问路径
	for i := 0; i < 500; i++ {
		snap := e.Snapshot()
		for _, p := range snap.Positions {
			_ = p.Entry + p.SL + p.TP
		}
		_, _ = e.Position("BTC/USDT", "15m")
	}
	<-done
}

func TestEngine_StateSurvivesRestart(t *testing.T) {
	store := &memStore{}
	e := New(Config{AllowMarketFallback: true}, store, nil, nil)
	now := time.Unix(1000, 0)

	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now)
	e.Tick("BTC/USDT", "15m", "LONG", testPlan(), 100, now.Add(5*time.Second))

	reborn := New(Config{AllowMarketFallback: true}, store, nil, nil)
	pos, ok := reborn.Position("BTC/USDT", "15m")
	require.True(t, ok)
	assert.InDelta(t, 100.0, pos.Entry, 1e-9)
	// order IDs stay monotonic across restarts
	assert.Equal(t, int64(2), reborn.Snapshot().NextOrderSeq)
}

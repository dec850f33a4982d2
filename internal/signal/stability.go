package signal

import (
	"time"

	"sharkbot/internal/logger"
	"sharkbot/internal/store/statestore"
)

// passState 是单个 symbol|timeframe 的确认进度。
type passState struct {
	LastSide string `json:"last_side"`
	Count    int    `json:"count"`
	LastTS   int64  `json:"last_ts"`
}

// StablePassTracker requires the same side to pass the gate repeatedly,
// spaced by a minimum time gap, before a signal counts as stable. Progress is
// persisted after every mutation so a restart does not reset confirmation.
//
// Not safe for concurrent use: the evaluation loop is the single writer.
type StablePassTracker struct {
	store    statestore.Store
	minGap   int64
	required int
	state    map[string]*passState
}

func NewStablePassTracker(store statestore.Store, minGapSec, requiredPasses int) *StablePassTracker {
	if requiredPasses < 1 {
		requiredPasses = 1
	}
	t := &StablePassTracker{
		store:    store,
		minGap:   int64(minGapSec),
		required: requiredPasses,
		state:    make(map[string]*passState),
	}
	if store != nil {
		if err := store.Load(&t.state); err != nil {
			logger.Warnf("稳定性状态加载失败，从空状态开始: %v", err)
			t.state = make(map[string]*passState)
		}
		if t.state == nil {
			t.state = make(map[string]*passState)
		}
	}
	return t
}

// Update feeds one gate evaluation into the tracker and reports whether the
// signal is stable. Rules:
//   - gate fail or neutral side: reset to zero;
//   - side flip: restart the count at 1 for the new side;
//   - same side: increment only when min_gap has elapsed since the last
//     increment, so bursty polling inside one bar cannot inflate confidence.
func (t *StablePassTracker) Update(symbol, timeframe string, side Direction, gatePass bool, now time.Time) bool {
	key := pairKey(symbol, timeframe)
	st := t.state[key]
	if st == nil {
		st = &passState{}
		t.state[key] = st
	}
	nowTS := now.Unix()

	if !gatePass || side == DirectionNeutral {
		st.LastSide = ""
		st.Count = 0
		st.LastTS = nowTS
		t.persist()
		return false
	}
	if st.LastSide != string(side) {
		st.LastSide = string(side)
		st.Count = 1
		st.LastTS = nowTS
	} else if nowTS-st.LastTS >= t.minGap {
		st.Count++
		st.LastTS = nowTS
	}
	t.persist()
	return st.Count >= t.required
}

// Progress returns the current confirmation count for a pair (0 if unseen).
func (t *StablePassTracker) Progress(symbol, timeframe string) int {
	if st := t.state[pairKey(symbol, timeframe)]; st != nil {
		return st.Count
	}
	return 0
}

func (t *StablePassTracker) persist() {
	if t.store == nil {
		return
	}
	if res := t.store.Save(t.state); !res.OK() {
		logger.Warnf("稳定性状态写入失败（内存状态仍然有效）: %s", res.Reason())
	}
}

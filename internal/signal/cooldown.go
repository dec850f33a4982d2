package signal

import (
	"time"

	"sharkbot/internal/logger"
	"sharkbot/internal/store/statestore"
)

type cooldownState struct {
	LastTradeTS int64 `json:"last_trade_ts"`
}

// CooldownManager blocks re-entry on a pair for a configured window after the
// last trade mark. Marks are recorded only when a trade is actually opened,
// not on mere gate passes. State survives restarts; absence of a record means
// never in cooldown.
//
// Single-writer, same as StablePassTracker.
type CooldownManager struct {
	store statestore.Store
	state map[string]*cooldownState
}

func NewCooldownManager(store statestore.Store) *CooldownManager {
	m := &CooldownManager{
		store: store,
		state: make(map[string]*cooldownState),
	}
	if store != nil {
		if err := store.Load(&m.state); err != nil {
			logger.Warnf("冷却状态加载失败，从空状态开始: %v", err)
			m.state = make(map[string]*cooldownState)
		}
		if m.state == nil {
			m.state = make(map[string]*cooldownState)
		}
	}
	return m
}

func (m *CooldownManager) InCooldown(symbol, timeframe string, cooldownSec int64, now time.Time) bool {
	st := m.state[pairKey(symbol, timeframe)]
	if st == nil || st.LastTradeTS <= 0 {
		return false
	}
	return now.Unix()-st.LastTradeTS < cooldownSec
}

// Mark 记录一次真实的交易事件时间戳并持久化。
func (m *CooldownManager) Mark(symbol, timeframe string, now time.Time) {
	key := pairKey(symbol, timeframe)
	st := m.state[key]
	if st == nil {
		st = &cooldownState{}
		m.state[key] = st
	}
	st.LastTradeTS = now.Unix()
	if m.store != nil {
		if res := m.store.Save(m.state); !res.OK() {
			logger.Warnf("冷却状态写入失败（内存状态仍然有效）: %s", res.Reason())
		}
	}
}

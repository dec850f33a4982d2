package signal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sharkbot/internal/store/statestore"
)

func TestCooldownManager_Window(t *testing.T) {
	m := NewCooldownManager(nil)

	// never marked: never in cooldown
	assert.False(t, m.InCooldown("BTC/USDT", "15m", 2700, time.Unix(1000, 0)))

	m.Mark("BTC/USDT", "15m", time.Unix(1000, 0))
	assert.True(t, m.InCooldown("BTC/USDT", "15m", 2700, time.Unix(1000, 0)))
	assert.True(t, m.InCooldown("BTC/USDT", "15m", 2700, time.Unix(1000+2699, 0)))
	assert.False(t, m.InCooldown("BTC/USDT", "15m", 2700, time.Unix(1000+2700, 0)))

	// other pairs are unaffected
	assert.False(t, m.InCooldown("ETH/USDT", "15m", 2700, time.Unix(1001, 0)))
	assert.False(t, m.InCooldown("BTC/USDT", "1h", 2700, time.Unix(1001, 0)))
}

func TestCooldownManager_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cooldown.json")
	store := statestore.NewFileStore(path)

	m := NewCooldownManager(store)
	m.Mark("BTC/USDT", "15m", time.Unix(1000, 0))

	reborn := NewCooldownManager(store)
	assert.True(t, reborn.InCooldown("BTC/USDT", "15m", 2700, time.Unix(1500, 0)))
}

package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9992"
	defaultAppLogPath        = "/data/logs/sharkbot-live.log"
	defaultAppCycleSeconds   = 15
	defaultKlineMaxCached    = 300
	defaultMarketName        = "binance"
	defaultMarketREST        = "https://fapi.binance.com"
	defaultFastInterval      = "15m"
	defaultSlowInterval      = "1h"
	defaultFastScore         = 4.0
	defaultFastActivePct     = 0.35
	defaultSlowADX           = 20.0
	defaultEpsilon           = 0.1
	defaultSLATRMult         = 1.2
	defaultRRTarget          = 2.0
	defaultAntiChaseATRMult  = 1.5
	defaultCooldownMinutes   = 45
	defaultHeavyRequired     = 2
	defaultSnapshotMinGapS   = 60
	defaultSnapshotConfirms  = 2
	defaultBreakevenAtR      = 0.7
	defaultTrailingAtR       = 1.0
	defaultSlippageGuardPct  = 0.2
	defaultProbePct          = 0.3
	defaultFullPct           = 1.0
	defaultProbeTTLSeconds   = 30
	defaultPaperBalanceQuote = 10000
	defaultPerTradeRiskPct   = 0.01
	defaultQtyStep           = 0.001
	defaultStatePath         = "/data/live/engine_state.json"
	defaultStabilityPath     = "/data/live/gate_stability.json"
	defaultCooldownPath      = "/data/live/trade_cooldown.json"
	defaultTradeLogPath      = "/data/live/trades.db"
	defaultDecisionLogPath   = "/data/live/decisions.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Kline.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Threshold.applyDefaults(keys)
	c.TightMode.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		fieldDefault{
			key:   "app.cycle_seconds",
			need:  func() bool { return a.CycleSeconds <= 0 },
			apply: func() { a.CycleSeconds = defaultAppCycleSeconds },
		},
	)
}

func (k *KlineConfig) applyDefaults(keys keySet) {
	if k == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "kline.max_cached",
			need:  func() bool { return k.MaxCached <= 0 },
			apply: func() { k.MaxCached = defaultKlineMaxCached },
		},
	)
}

func (t *ThresholdConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "thresholds.m15_score",
			need:  func() bool { return t.FastScore <= 0 },
			apply: func() { t.FastScore = defaultFastScore },
		},
		fieldDefault{
			key:   "thresholds.m15_active_pct",
			need:  func() bool { return t.FastActivePct < 0 },
			apply: func() { t.FastActivePct = defaultFastActivePct },
		},
		fieldDefault{
			key:   "thresholds.h1_adx",
			need:  func() bool { return t.SlowADX <= 0 },
			apply: func() { t.SlowADX = defaultSlowADX },
		},
		fieldDefault{
			key:   "thresholds.epsilon",
			need:  func() bool { return t.Epsilon <= 0 },
			apply: func() { t.Epsilon = defaultEpsilon },
		},
	)
	if keys != nil && !keys.isSet("thresholds.m15_active_pct") && t.FastActivePct == 0 {
		t.FastActivePct = defaultFastActivePct
	}
}

func (t *TightModeConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "tight_mode.sl_atr_mult",
			need:  func() bool { return t.SLATRMult <= 0 },
			apply: func() { t.SLATRMult = defaultSLATRMult },
		},
		fieldDefault{
			key:   "tight_mode.rr_target",
			need:  func() bool { return t.RRTarget <= 0 },
			apply: func() { t.RRTarget = defaultRRTarget },
		},
		fieldDefault{
			key:   "tight_mode.anti_chase_atr_mult",
			need:  func() bool { return t.AntiChaseATRMult <= 0 },
			apply: func() { t.AntiChaseATRMult = defaultAntiChaseATRMult },
		},
		fieldDefault{
			key:   "tight_mode.cooldown_m15_min",
			need:  func() bool { return t.CooldownMinutes <= 0 },
			apply: func() { t.CooldownMinutes = defaultCooldownMinutes },
		},
		fieldDefault{
			key:   "tight_mode.heavy_required",
			need:  func() bool { return t.HeavyRequired <= 0 },
			apply: func() { t.HeavyRequired = defaultHeavyRequired },
		},
		fieldDefault{
			key:   "tight_mode.snapshot_min_gap_sec",
			need:  func() bool { return t.SnapshotMinGapS <= 0 },
			apply: func() { t.SnapshotMinGapS = defaultSnapshotMinGapS },
		},
		fieldDefault{
			key:   "tight_mode.snapshot_confirmations",
			need:  func() bool { return t.SnapshotConfirms <= 0 },
			apply: func() { t.SnapshotConfirms = defaultSnapshotConfirms },
		},
		fieldDefault{
			key:   "tight_mode.breakeven_at_r",
			need:  func() bool { return t.BreakevenAtR <= 0 },
			apply: func() { t.BreakevenAtR = defaultBreakevenAtR },
		},
		fieldDefault{
			key:   "tight_mode.trailing_at_r",
			need:  func() bool { return t.TrailingAtR <= 0 },
			apply: func() { t.TrailingAtR = defaultTrailingAtR },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("trading.allow_market_fallback", &t.AllowMarketFallback, true),
		fieldDefault{
			key:   "trading.slippage_guard_pct",
			need:  func() bool { return t.SlippageGuardPct <= 0 },
			apply: func() { t.SlippageGuardPct = defaultSlippageGuardPct },
		},
		fieldDefault{
			key:   "trading.probe_pct",
			need:  func() bool { return t.ProbePct <= 0 || t.ProbePct > 1 },
			apply: func() { t.ProbePct = defaultProbePct },
		},
		fieldDefault{
			key:   "trading.full_pct",
			need:  func() bool { return t.FullPct <= 0 || t.FullPct > 1 },
			apply: func() { t.FullPct = defaultFullPct },
		},
		fieldDefault{
			key:   "trading.probe_ttl_sec",
			need:  func() bool { return t.ProbeTTLSeconds <= 0 },
			apply: func() { t.ProbeTTLSeconds = defaultProbeTTLSeconds },
		},
		fieldDefault{
			key:   "trading.paper_balance_quote",
			need:  func() bool { return t.PaperBalanceQuote <= 0 },
			apply: func() { t.PaperBalanceQuote = defaultPaperBalanceQuote },
		},
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.per_trade_risk_pct",
			need:  func() bool { return r.PerTradeRiskPct <= 0 },
			apply: func() { r.PerTradeRiskPct = defaultPerTradeRiskPct },
		},
		fieldDefault{
			key:   "risk.qty_step",
			need:  func() bool { return r.QtyStep <= 0 },
			apply: func() { r.QtyStep = defaultQtyStep },
		},
	)
	if r.PriceStep < 0 {
		r.PriceStep = 0
	}
	if r.MinNotional < 0 {
		r.MinNotional = 0
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.state_path", &s.StatePath, defaultStatePath),
		stringFieldDefault("store.stability_path", &s.StabilityPath, defaultStabilityPath),
		stringFieldDefault("store.cooldown_path", &s.CooldownPath, defaultCooldownPath),
		stringFieldDefault("store.trade_log_path", &s.TradeLogPath, defaultTradeLogPath),
		stringFieldDefault("store.decision_log_path", &s.DecisionLogPath, defaultDecisionLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultMarketREST,
		}}
	}
	for i := range m.Sources {
		src := &m.Sources[i]
		if strings.TrimSpace(src.Name) == "" {
			if i == 0 {
				src.Name = defaultMarketName
			} else {
				src.Name = fmt.Sprintf("market_%d", i)
			}
		}
		if src.RESTBaseURL == "" {
			src.RESTBaseURL = defaultMarketREST
		}
	}
	if strings.TrimSpace(m.ActiveSource) == "" {
		m.ActiveSource = firstEnabledMarket(m.Sources)
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.fast_interval", &m.FastInterval, defaultFastInterval),
		stringFieldDefault("market.slow_interval", &m.SlowInterval, defaultSlowInterval),
	)
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"BTC/USDT"}
	}
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledMarket(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}

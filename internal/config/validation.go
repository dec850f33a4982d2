package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Kline.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Threshold.validate(); err != nil {
		return err
	}
	if err := c.TightMode.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (k *KlineConfig) validate() error {
	if k.MaxCached < 50 || k.MaxCached > 1000 {
		return fmt.Errorf("kline.max_cached must be in [50,1000]")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("market.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(src.RESTBaseURL) == "" {
			return fmt.Errorf("market source %s missing rest_base_url", src.Name)
		}
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if activeName == "" || name == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled market.active_source=%s not found", m.ActiveSource)
	}
	if !IsValidInterval(m.FastInterval) {
		return fmt.Errorf("market.fast_interval invalid: %s", m.FastInterval)
	}
	if !IsValidInterval(m.SlowInterval) {
		return fmt.Errorf("market.slow_interval invalid: %s", m.SlowInterval)
	}
	if len(m.Symbols) == 0 {
		return fmt.Errorf("market.symbols requires at least one symbol")
	}
	for _, s := range m.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("market.symbols contains empty symbol")
		}
	}
	return nil
}

func (t *ThresholdConfig) validate() error {
	if t.FastScore <= 0 {
		return fmt.Errorf("thresholds.m15_score must be > 0")
	}
	if t.FastActivePct < 0 || t.FastActivePct > 1 {
		return fmt.Errorf("thresholds.m15_active_pct must be in [0,1]")
	}
	if t.SlowADX <= 0 {
		return fmt.Errorf("thresholds.h1_adx must be > 0")
	}
	if t.Epsilon < 0 {
		return fmt.Errorf("thresholds.epsilon must be >= 0")
	}
	return nil
}

func (t *TightModeConfig) validate() error {
	if t.SLATRMult <= 0 {
		return fmt.Errorf("tight_mode.sl_atr_mult must be > 0")
	}
	if t.RRTarget <= 0 {
		return fmt.Errorf("tight_mode.rr_target must be > 0")
	}
	if t.HeavyRequired < 0 || t.HeavyRequired > 3 {
		return fmt.Errorf("tight_mode.heavy_required must be in [0,3]")
	}
	if t.SnapshotConfirms <= 0 {
		return fmt.Errorf("tight_mode.snapshot_confirmations must be > 0")
	}
	if t.SnapshotMinGapS < 0 {
		return fmt.Errorf("tight_mode.snapshot_min_gap_sec must be >= 0")
	}
	if t.TrailingAtR < t.BreakevenAtR {
		return fmt.Errorf("tight_mode.trailing_at_r must be >= breakeven_at_r")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.SlippageGuardPct <= 0 {
		return fmt.Errorf("trading.slippage_guard_pct must be > 0")
	}
	if t.ProbePct <= 0 || t.ProbePct > 1 {
		return fmt.Errorf("trading.probe_pct must be in (0,1]")
	}
	if t.FullPct <= 0 || t.FullPct > 1 {
		return fmt.Errorf("trading.full_pct must be in (0,1]")
	}
	if t.ProbePct > t.FullPct {
		return fmt.Errorf("trading.probe_pct cannot exceed full_pct")
	}
	if t.PaperBalanceQuote <= 0 {
		return fmt.Errorf("trading.paper_balance_quote must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.PerTradeRiskPct <= 0 || r.PerTradeRiskPct > 0.1 {
		return fmt.Errorf("risk.per_trade_risk_pct must be in (0,0.1]")
	}
	if r.QtyStep <= 0 {
		return fmt.Errorf("risk.qty_step must be > 0")
	}
	if r.MinNotional < 0 {
		return fmt.Errorf("risk.min_notional must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	if n.Discord.Enabled && strings.TrimSpace(n.Discord.WebhookURL) == "" {
		return fmt.Errorf("discord notification enabled but missing webhook_url")
	}
	return nil
}

// IsValidInterval 简易校验：以数字开头，以 m/h/d/w 结尾
func IsValidInterval(s string) bool {
	if s == "" {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

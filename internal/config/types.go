package config

import "strings"

// Config 是 Sharkbot 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Kline     KlineConfig     `toml:"kline"`
	Market    MarketConfig    `toml:"market"`
	Threshold ThresholdConfig `toml:"thresholds"`
	TightMode TightModeConfig `toml:"tight_mode"`
	Trading   TradingConfig   `toml:"trading"`
	Risk      RiskConfig      `toml:"risk"`
	Weights   WeightsConfig   `toml:"weights_sets"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env          string `toml:"env"`
	LogLevel     string `toml:"log_level"`
	HTTPAddr     string `toml:"http_addr"`
	LogPath      string `toml:"log_path"`
	CycleSeconds int    `toml:"cycle_seconds"`
}

type KlineConfig struct {
	MaxCached int `toml:"max_cached"`
}

// ThresholdConfig 控制快/慢两条时间框的放行阈值。
type ThresholdConfig struct {
	FastScore     float64 `toml:"m15_score"`
	FastActivePct float64 `toml:"m15_active_pct"`
	SlowADX       float64 `toml:"h1_adx"`
	Epsilon       float64 `toml:"epsilon"`
}

// TightModeConfig 收敛入场条件：重权确认、反追价、冷却与稳定通过。
type TightModeConfig struct {
	SLATRMult        float64 `toml:"sl_atr_mult"`
	RRTarget         float64 `toml:"rr_target"`
	AntiChaseATRMult float64 `toml:"anti_chase_atr_mult"`
	CooldownMinutes  int     `toml:"cooldown_m15_min"`
	HeavyRequired    int     `toml:"heavy_required"`
	SnapshotMinGapS  int     `toml:"snapshot_min_gap_sec"`
	SnapshotConfirms int     `toml:"snapshot_confirmations"`
	BreakevenAtR     float64 `toml:"breakeven_at_r"`
	TrailingAtR      float64 `toml:"trailing_at_r"`
}

// TradingConfig 控制下单阶段（试探/加满）与兜底策略。
type TradingConfig struct {
	AllowMarketFallback bool    `toml:"allow_market_fallback"`
	SlippageGuardPct    float64 `toml:"slippage_guard_pct"`
	ProbePct            float64 `toml:"probe_pct"`
	FullPct             float64 `toml:"full_pct"`
	ProbeTTLSeconds     int     `toml:"probe_ttl_sec"`
	PaperBalanceQuote   float64 `toml:"paper_balance_quote"`
}

// RiskConfig 定义每笔风险预算与交易所过滤器。
type RiskConfig struct {
	PerTradeRiskPct float64 `toml:"per_trade_risk_pct"`
	PriceStep       float64 `toml:"price_step"`
	QtyStep         float64 `toml:"qty_step"`
	MinNotional     float64 `toml:"min_notional"`
}

// WeightsConfig 为每条时间框挂一张指标权重表；未列出的指标回落到内置默认。
type WeightsConfig struct {
	Fast         map[string]float64 `toml:"m15"`
	Slow         map[string]float64 `toml:"h1"`
	ProfilesPath string             `toml:"profiles_path"`
}

type StoreConfig struct {
	StatePath       string `toml:"state_path"`
	StabilityPath   string `toml:"stability_path"`
	CooldownPath    string `toml:"cooldown_path"`
	TradeLogPath    string `toml:"trade_log_path"`
	DecisionLogPath string `toml:"decision_log_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

type MarketConfig struct {
	ActiveSource string         `toml:"active_source"`
	Symbols      []string       `toml:"symbols"`
	FastInterval string         `toml:"fast_interval"`
	SlowInterval string         `toml:"slow_interval"`
	Sources      []MarketSource `toml:"sources"`
}

type MarketSource struct {
	Name        string `toml:"name"`
	Enabled     bool   `toml:"enabled"`
	RESTBaseURL string `toml:"rest_base_url"`
}

func (m MarketConfig) ResolveActiveSource() MarketSource {
	if len(m.Sources) == 0 {
		return MarketSource{
			Name:        "binance",
			Enabled:     true,
			RESTBaseURL: "https://fapi.binance.com",
		}
	}
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	var fallback MarketSource
	for _, src := range m.Sources {
		if fallback.Name == "" {
			fallback = src
		}
		if !src.Enabled {
			continue
		}
		if active == "" || strings.ToLower(src.Name) == active {
			return src
		}
	}
	return fallback
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

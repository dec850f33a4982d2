package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	sbcfg "sharkbot/internal/config"
	cfgloader "sharkbot/internal/config/loader"
	"sharkbot/internal/engine"
	"sharkbot/internal/gateway/binance"
	"sharkbot/internal/gateway/notifier"
	"sharkbot/internal/logger"
	"sharkbot/internal/signal"
	"sharkbot/internal/store/decisionlog"
	"sharkbot/internal/store/statestore"
	"sharkbot/internal/store/tradelog"
	apihttp "sharkbot/internal/transport/http"
)

// AppBuilder 把配置翻译成可运行的 App。构造函数字段可在测试里替换。
type AppBuilder struct {
	cfg *sbcfg.Config

	sourceFn    func(sbcfg.MarketSource) *binance.Source
	weightsFn   func(string) (*cfgloader.WeightsLoader, error)
	tradeLogFn  func(string) (*tradelog.Store, error)
	decisionsFn func(string) (*decisionlog.Store, error)
	httpFn      func(apihttp.ServerConfig) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *sbcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		sourceFn:    buildKlineSource,
		weightsFn:   cfgloader.NewWeightsLoader,
		tradeLogFn:  tradelog.Open,
		decisionsFn: decisionlog.Open,
		httpFn:      apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildKlineSource(src sbcfg.MarketSource) *binance.Source {
	return binance.New(binance.Config{RESTBaseURL: src.RESTBaseURL})
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	src := cfg.Market.ResolveActiveSource()
	source := b.sourceFn(src)
	logger.Infof("✓ 行情源: %s (%s)", src.Name, src.RESTBaseURL)

	weightsLoader, fastTable, slowTable, err := b.resolveWeights(cfg)
	if err != nil {
		return nil, err
	}
	if weightsLoader != nil {
		// 热更新生效后的运维可见性：版本号变化即说明新表已被后续周期拿到。
		weightsLoader.Subscribe(func(snap cfgloader.Snapshot) {
			logger.Infof("权重快照已生效 version=%d sets=%d", snap.Version, len(snap.Sets))
		})
	}

	stability := signal.NewStablePassTracker(
		statestore.NewFileStore(cfg.Store.StabilityPath),
		cfg.TightMode.SnapshotMinGapS,
		cfg.TightMode.SnapshotConfirms,
	)
	cooldown := signal.NewCooldownManager(statestore.NewFileStore(cfg.Store.CooldownPath))
	gate := signal.NewEvaluator(signal.GateConfig{
		Epsilon:            cfg.Threshold.Epsilon,
		FastScoreThreshold: cfg.Threshold.FastScore,
		FastScoreActivePct: cfg.Threshold.FastActivePct,
		SlowADXThreshold:   cfg.Threshold.SlowADX,
		HeavyRequired:      cfg.TightMode.HeavyRequired,
		AntiChaseATRMult:   cfg.TightMode.AntiChaseATRMult,
		CooldownSec:        int64(cfg.TightMode.CooldownMinutes) * 60,
	}, stability, cooldown)

	trades, err := b.tradeLogFn(cfg.Store.TradeLogPath)
	if err != nil {
		return nil, fmt.Errorf("open trade log failed: %w", err)
	}
	decisions, err := b.decisionsFn(cfg.Store.DecisionLogPath)
	if err != nil {
		return nil, fmt.Errorf("open decision log failed: %w", err)
	}

	sink := buildNotifier(cfg.Notify)

	eng := engine.New(engine.Config{
		AllowMarketFallback: cfg.Trading.AllowMarketFallback,
		SlippageGuardPct:    cfg.Trading.SlippageGuardPct,
		BreakevenAtR:        cfg.TightMode.BreakevenAtR,
		TrailingAtR:         cfg.TightMode.TrailingAtR,
	}, statestore.NewFileStore(cfg.Store.StatePath), trades, sink)

	svc := &CycleService{
		cfg:            cfg,
		source:         source,
		weights:        weightsLoader,
		fastTable:      fastTable,
		slowTable:      slowTable,
		gate:           gate,
		engine:         eng,
		decisions:      decisions,
		minHistoryBars: minHistoryBars(cfg),
		nowFn:          defaultNow,
	}

	httpSrv, err := b.httpFn(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Engine:    eng,
		Trades:    trades,
		Decisions: decisions,
	})
	if err != nil {
		return nil, fmt.Errorf("build http server failed: %w", err)
	}

	return &App{
		cfg:     cfg,
		svc:     svc,
		httpSrv: httpSrv,
		Summary: buildStartupSummary(cfg, weightsLoader != nil),
	}, nil
}

// resolveWeights 优先使用独立 profile 文件（支持热更新）；文件缺失时回落到
// 主配置内联的 weights_sets。
func (b *AppBuilder) resolveWeights(cfg *sbcfg.Config) (*cfgloader.WeightsLoader, signal.WeightTable, signal.WeightTable, error) {
	path := strings.TrimSpace(cfg.Weights.ProfilesPath)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loader, err := b.weightsFn(path)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("load weights profile failed: %w", err)
			}
			logger.Infof("✓ 权重 profile: %s（热更新已启用）", path)
			return loader, nil, nil, nil
		}
		logger.Warnf("权重 profile 不存在 (%s)，使用主配置内联权重", path)
	}
	fast := cfgloader.TableFromConfig(cfg.Weights.Fast)
	slow := cfgloader.TableFromConfig(cfg.Weights.Slow)
	return nil, fast, slow, nil
}

func buildNotifier(cfg sbcfg.NotifyConfig) notifier.TextNotifier {
	var sinks notifier.Multi
	if cfg.Telegram.Enabled {
		sinks = append(sinks, notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
		logger.Infof("✓ Telegram 通知已启用")
	}
	if cfg.Discord.Enabled {
		sinks = append(sinks, notifier.NewDiscord(cfg.Discord.WebhookURL))
		logger.Infof("✓ Discord 通知已启用")
	}
	if len(sinks) == 0 {
		return notifier.Noop{}
	}
	return sinks
}

// minHistoryBars EMA200 需要至少 200 根收盘，再留一点余量。
func minHistoryBars(cfg *sbcfg.Config) int {
	const need = 210
	if cfg.Kline.MaxCached < need {
		logger.Warnf("kline.max_cached=%d 低于慢周期均线所需的 %d 根", cfg.Kline.MaxCached, need)
	}
	return need
}

package app

import (
	"context"
	"strings"
	"time"

	"sharkbot/internal/analysis/indicator"
	sbcfg "sharkbot/internal/config"
	cfgloader "sharkbot/internal/config/loader"
	"sharkbot/internal/engine"
	"sharkbot/internal/gateway/binance"
	"sharkbot/internal/logger"
	"sharkbot/internal/market"
	"sharkbot/internal/scheduler"
	"sharkbot/internal/signal"
	"sharkbot/internal/store/decisionlog"
	"sharkbot/internal/trading"
)

// CycleService 驱动评估主循环：拉K线→指标→计票→闸门→执行引擎。
// 单协程顺序处理所有交易对，一个周期内不会并发修改引擎状态。
type CycleService struct {
	cfg       *sbcfg.Config
	source    *binance.Source
	weights   *cfgloader.WeightsLoader
	fastTable signal.WeightTable
	slowTable signal.WeightTable
	gate      *signal.Evaluator
	engine    *engine.Engine
	decisions *decisionlog.Store

	indicatorCfg indicator.Settings
	// minHistoryBars 低于此根数的交易对跳过本周期，避免指标失真。
	minHistoryBars int
	nowFn          func() time.Time
}

// Run 启动主循环，直到 ctx 取消。
func (s *CycleService) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.App.CycleSeconds) * time.Second
	sched := scheduler.NewIntervalScheduler(ctx, interval, interval)
	sched.RunImmediately = true
	sched.Start(func(cycleCtx context.Context) {
		for _, symbol := range s.cfg.Market.Symbols {
			if cycleCtx.Err() != nil {
				return
			}
			s.runCycle(cycleCtx, symbol)
		}
	})
	return nil
}

// Close 释放服务持有的资源。
func (s *CycleService) Close() {
	if s.decisions != nil {
		if err := s.decisions.Close(); err != nil {
			logger.Warnf("决策日志关闭失败: %v", err)
		}
	}
}

func (s *CycleService) runCycle(ctx context.Context, symbol string) {
	fastIv := s.cfg.Market.FastInterval
	slowIv := s.cfg.Market.SlowInterval
	limit := s.cfg.Kline.MaxCached

	fast, err := s.source.FetchHistory(ctx, symbol, fastIv, limit)
	if err != nil {
		logger.Warnf("[%s %s] 拉取K线失败: %v", symbol, fastIv, err)
		return
	}
	slow, err := s.source.FetchHistory(ctx, symbol, slowIv, limit)
	if err != nil {
		logger.Warnf("[%s %s] 拉取K线失败: %v", symbol, slowIv, err)
		return
	}
	if !market.HasMinHistory(fast, s.minHistoryBars) || !market.HasMinHistory(slow, s.minHistoryBars) {
		logger.Warnf("[%s] 历史K线不足 (fast=%d slow=%d need=%d)，跳过本周期",
			symbol, len(fast), len(slow), s.minHistoryBars)
		return
	}

	snapFast, err := indicator.Compute(fast, s.indicatorCfg)
	if err != nil {
		logger.Warnf("[%s %s] 指标计算失败: %v", symbol, fastIv, err)
		return
	}
	snapSlow, err := indicator.Compute(slow, s.indicatorCfg)
	if err != nil {
		logger.Warnf("[%s %s] 指标计算失败: %v", symbol, slowIv, err)
		return
	}

	votes := signal.TallyVotes(indicator.Directions(snapFast), s.tableFor(fastIv, s.fastTable))
	slowVotes := signal.TallyVotes(indicator.Directions(snapSlow), s.tableFor(slowIv, s.slowTable))

	now := s.nowFn()
	dec := s.gate.Evaluate(signal.GateInput{
		Symbol:         symbol,
		Timeframe:      fastIv,
		Fast:           votes,
		SlowDirections: indicator.Directions(snapSlow),
		SlowADX:        snapSlow.ADX,
		Price:          snapFast.Close,
		VWAP:           snapFast.VWAP,
		ATR:            snapFast.ATR,
	}, now)

	s.appendDecision(symbol, fastIv, votes, dec, now)

	// 引擎每个周期都要 Tick：挂单超时与持仓风控不依赖闸门是否放行。
	var plan trading.Plan
	if dec.EntryReady {
		plan = trading.PlanProbeAndTopup(dec.Side, market.LastClose(fast), snapFast.ATR, s.planConfig())
	}
	summary := s.engine.Tick(symbol, fastIv, string(dec.Side), plan, snapFast.Close, now)

	opened := false
	for _, a := range summary.Actions {
		if strings.HasPrefix(a, "fill probe") {
			opened = true
			break
		}
	}
	if opened {
		// 冷却计时从真实开仓起算，仅放行不计
		s.gate.Cooldown().Mark(symbol, fastIv, now)
	}

	if dec.EntryReady && plan.SizeFull > 0 {
		if pos, ok := s.engine.Position(symbol, fastIv); ok && pos.Stage == engine.StageProbe {
			if promoted, msg := s.engine.PromoteToFull(symbol, fastIv, plan, snapFast.Close); promoted {
				summary.Actions = append(summary.Actions, msg)
			}
		}
	}

	if len(summary.Actions) > 0 {
		logger.Infof("[%s %s] %s", symbol, fastIv, strings.Join(summary.Actions, "; "))
	} else if dec.EntryReady {
		logger.Debugf("[%s %s] entry ready, side=%s score=%.2f", symbol, fastIv, dec.Side, dec.FastScore)
	} else {
		// 慢周期加权分只用于观察，调权重时对照两张表。
		logger.Debugf("[%s %s] blocked: %s (slow L=%.2f S=%.2f adx=%.1f)",
			symbol, fastIv, strings.Join(dec.Reasons, "; "),
			slowVotes.ScoreLong, slowVotes.ScoreShort, snapSlow.ADX)
	}
}

func defaultNow() time.Time { return time.Now() }

// tableFor 优先取热更新快照里的权重表，profile 未配置时用启动时的内联表。
func (s *CycleService) tableFor(timeframe string, fallback signal.WeightTable) signal.WeightTable {
	if s.weights != nil {
		return s.weights.Table(timeframe)
	}
	if fallback != nil {
		return fallback
	}
	return signal.DefaultWeights
}

func (s *CycleService) planConfig() trading.PlanConfig {
	return trading.PlanConfig{
		SLATRMult:    s.cfg.TightMode.SLATRMult,
		RRTarget:     s.cfg.TightMode.RRTarget,
		BalanceQuote: s.cfg.Trading.PaperBalanceQuote,
		RiskPct:      s.cfg.Risk.PerTradeRiskPct,
		ProbePct:     s.cfg.Trading.ProbePct,
		FullPct:      s.cfg.Trading.FullPct,
		TTLSec:       int64(s.cfg.Trading.ProbeTTLSeconds),
		Constraints: trading.SizerConstraints{
			PriceStep:   s.cfg.Risk.PriceStep,
			QtyStep:     s.cfg.Risk.QtyStep,
			MinNotional: s.cfg.Risk.MinNotional,
		},
	}
}

func (s *CycleService) appendDecision(symbol, timeframe string, votes signal.VoteResult, dec signal.GateDecision, now time.Time) {
	if s.decisions == nil {
		return
	}
	err := s.decisions.Append(decisionlog.Entry{
		TS:         now.Unix(),
		Symbol:     symbol,
		Timeframe:  timeframe,
		Side:       string(dec.Side),
		ScoreLong:  votes.ScoreLong,
		ScoreShort: votes.ScoreShort,
		GatePass:   dec.GatePass,
		Stable:     dec.Stable,
		InCooldown: dec.InCooldown,
		EntryReady: dec.EntryReady,
		Reasons:    dec.Reasons,
	})
	if err != nil {
		logger.Warnf("决策日志写入失败: %v", err)
	}
}

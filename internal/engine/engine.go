// Package engine owns the order lifecycle: pending limit order →
// fill/cancel/market-fallback → probe position → promotion to full →
// risk-managed exit. All state lives in a single persisted aggregate.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"sharkbot/internal/gateway/notifier"
	"sharkbot/internal/logger"
	"sharkbot/internal/store/statestore"
	"sharkbot/internal/store/tradelog"
	"sharkbot/internal/trading"
)

// TradeLog 是已平仓交易的追加式落库接口。
type TradeLog interface {
	Append(rec tradelog.Record) error
}

// Config 汇总执行引擎的行为开关。
type Config struct {
	AllowMarketFallback bool
	// SlippageGuardPct 以百分比表示（0.2 = 0.2%）。
	SlippageGuardPct float64
	BreakevenAtR     float64
	TrailingAtR      float64
}

func (c Config) withDefaults() Config {
	out := c
	if out.SlippageGuardPct <= 0 {
		out.SlippageGuardPct = 0.2
	}
	if out.BreakevenAtR <= 0 {
		out.BreakevenAtR = 0.7
	}
	if out.TrailingAtR <= 0 {
		out.TrailingAtR = 1.0
	}
	return out
}

// Engine drives the order/position state machine for every pair.
//
// Persistence failures are logged, never raised: the in-memory state stays
// authoritative until the next successful snapshot write. Mutations run one
// evaluation cycle at a time; mu serializes them against the read-only
// status API.
type Engine struct {
	cfg    Config
	store  statestore.Store
	trades TradeLog
	sink   notifier.TextNotifier

	mu    sync.Mutex
	state *State
}

func New(cfg Config, store statestore.Store, trades TradeLog, sink notifier.TextNotifier) *Engine {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		store:  store,
		trades: trades,
		sink:   sink,
		state:  NewState(),
	}
	if e.sink == nil {
		e.sink = notifier.Noop{}
	}
	if store != nil {
		if err := store.Load(e.state); err != nil {
			logger.Warnf("执行状态加载失败，从空状态开始: %v", err)
			e.state = NewState()
		}
		e.state.ensureMaps()
	}
	return e
}

// Snapshot returns a deep copy of the aggregate for read-only exposure
// (status API). The copy shares nothing with the live state, so the HTTP
// handler can serialize it while the cycle loop keeps mutating.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := State{
		Positions:    make(map[string]*Position, len(e.state.Positions)),
		Orders:       make(map[string]*Order, len(e.state.Orders)),
		PairIndex:    make(map[string]string, len(e.state.PairIndex)),
		NextOrderSeq: e.state.NextOrderSeq,
	}
	for k, v := range e.state.Positions {
		cp := *v
		out.Positions[k] = &cp
	}
	for k, v := range e.state.Orders {
		cp := *v
		out.Orders[k] = &cp
	}
	for k, v := range e.state.PairIndex {
		out.PairIndex[k] = v
	}
	return out
}

// Position 返回指定交易对的持仓副本。
func (e *Engine) Position(symbol, timeframe string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.state.Positions[pairKey(symbol, timeframe)]
	if pos == nil {
		return Position{}, false
	}
	return *pos, true
}

// Tick 每个评估周期调用一次。顺序固定：先解决挂单，再考虑新建仓，最后对已有
// 仓位做风控与离场检查。plan.SizeProbe 为 0 时不会有新的下单动作。
func (e *Engine) Tick(symbol, timeframe, side string, plan trading.Plan, priceNow float64, now time.Time) TickSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	summary := TickSummary{}
	key := pairKey(symbol, timeframe)

	if oid := e.state.PairIndex[key]; oid != "" {
		summary.Actions = append(summary.Actions, e.resolvePending(oid, symbol, timeframe, priceNow, now)...)
	}

	_, hasPos := e.state.Positions[key]
	if !hasPos && e.state.PairIndex[key] == "" && plan.SizeProbe > 0 {
		od := e.placeProbe(symbol, timeframe, side, plan, now)
		summary.Actions = append(summary.Actions,
			fmt.Sprintf("place probe id=%s price=%.6f size=%.6f ttl=%ds", od.ID, od.Price, od.Size, plan.TTLSec))
	}

	if pos := e.state.Positions[key]; pos != nil {
		summary.Actions = append(summary.Actions, e.updateRiskAndExit(key, pos, priceNow, plan, now)...)
		e.persist()
	}
	return summary
}

func (e *Engine) placeProbe(symbol, timeframe, side string, plan trading.Plan, now time.Time) *Order {
	od := &Order{
		ID:        fmt.Sprintf("probe_%d", e.state.NextOrderSeq),
		Symbol:    symbol,
		Timeframe: timeframe,
		Side:      side,
		Price:     plan.EntryPrice,
		Size:      plan.SizeProbe,
		SL:        plan.SL,
		TP:        plan.TP,
		RValue:    plan.RValue,
		Status:    OrderStatusOpen,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Unix() + max64(1, plan.TTLSec),
	}
	e.state.NextOrderSeq++
	e.state.Orders[od.ID] = od
	e.state.PairIndex[pairKey(symbol, timeframe)] = od.ID
	e.persist()
	e.notify(notifier.StructuredMessage{
		Icon:  "📝",
		Title: fmt.Sprintf("试探限价单 %s %s", symbol, side),
		Sections: []notifier.MessageSection{{Lines: []string{
			fmt.Sprintf("数量: %.6f", od.Size),
			fmt.Sprintf("价格: %.6f", od.Price),
			fmt.Sprintf("TTL: %ds", plan.TTLSec),
		}}},
		Timestamp: now,
	})
	return od
}

// resolvePending runs once per tick while an order is outstanding.
func (e *Engine) resolvePending(orderID, symbol, timeframe string, priceNow float64, now time.Time) []string {
	var actions []string
	key := pairKey(symbol, timeframe)

	od := e.state.Orders[orderID]
	if od == nil {
		// dangling index entry: the order record is gone, recover and move on
		delete(e.state.PairIndex, key)
		e.persist()
		return actions
	}
	if od.Status != OrderStatusOpen {
		return actions
	}

	slipPct := math.Abs(priceNow-od.Price) / math.Max(1e-12, od.Price) * 100.0
	withinGuard := slipPct <= e.cfg.SlippageGuardPct

	switch {
	case crossedLimit(od.Side, priceNow, od.Price) && withinGuard:
		// fill at the observed price, not the stale limit
		od.Status = OrderStatusFilled
		od.FilledPrice = priceNow
		od.FilledSize = od.Size
		e.openPosition(key, od, priceNow, now)
		actions = append(actions, fmt.Sprintf("fill probe id=%s price=%.6f", orderID, priceNow))
		e.notify(notifier.StructuredMessage{
			Icon:  "✅",
			Title: fmt.Sprintf("试探单成交 %s %s", symbol, od.Side),
			Sections: []notifier.MessageSection{{Lines: []string{
				fmt.Sprintf("数量: %.6f", od.Size),
				fmt.Sprintf("价格: %.6f", priceNow),
			}}},
			Timestamp: now,
		})
	case now.Unix() >= od.ExpiresAt:
		if e.cfg.AllowMarketFallback && withinGuard {
			od.Status = OrderStatusMarketFallbackFilled
			od.FilledPrice = priceNow
			od.FilledSize = od.Size
			e.openPosition(key, od, priceNow, now)
			actions = append(actions, fmt.Sprintf("fill probe (market fallback) id=%s price=%.6f", orderID, priceNow))
			e.notify(notifier.StructuredMessage{
				Icon:  "⚡",
				Title: fmt.Sprintf("试探单市价兜底成交 %s %s", symbol, od.Side),
				Sections: []notifier.MessageSection{{Lines: []string{
					fmt.Sprintf("数量: %.6f", od.Size),
					fmt.Sprintf("价格: %.6f", priceNow),
				}}},
				Timestamp: now,
			})
		} else {
			od.Status = OrderStatusCanceled
			delete(e.state.PairIndex, key)
			e.persist()
			actions = append(actions, fmt.Sprintf("cancel probe id=%s (ttl)", orderID))
			e.notify(notifier.StructuredMessage{
				Icon:  "🚫",
				Title: fmt.Sprintf("试探单超时撤销 %s", symbol),
				Sections: []notifier.MessageSection{{Lines: []string{
					fmt.Sprintf("实测滑点: %.3f%%", slipPct),
					fmt.Sprintf("滑点保护: %.3f%%", e.cfg.SlippageGuardPct),
				}}},
				Timestamp: now,
			})
		}
	default:
		// neither crossed nor expired: stay pending, no state change
	}
	return actions
}

// openPosition 用订单上冻结的 SL/TP/R 初始化仓位：成交周期未必还有计划。
func (e *Engine) openPosition(key string, od *Order, priceNow float64, now time.Time) {
	e.state.Positions[key] = &Position{
		Symbol:    od.Symbol,
		Timeframe: od.Timeframe,
		Side:      od.Side,
		Size:      od.Size,
		Entry:     priceNow,
		Stage:     StageProbe,
		OpenedAt:  now.Unix(),
		SL:        od.SL,
		TP:        od.TP,
		RValue:    od.RValue,
	}
	delete(e.state.PairIndex, key)
	e.persist()
}

// PromoteToFull lifts a probe position to full size with a size-weighted
// average entry. Idempotent: promoting an already-full position is a no-op
// returning (true, "already_full").
func (e *Engine) PromoteToFull(symbol, timeframe string, plan trading.Plan, priceNow float64) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := pairKey(symbol, timeframe)
	pos := e.state.Positions[key]
	if pos == nil {
		return false, "no_probe"
	}
	if pos.Stage != StageProbe {
		return true, "already_full"
	}

	addSize := plan.SizeFull - pos.Size
	if addSize <= 0 {
		pos.Stage = StageFull
		e.persist()
		return true, "already_full"
	}

	sizeNew := pos.Size + addSize
	entryNew := (pos.Entry*pos.Size + priceNow*addSize) / math.Max(1e-12, sizeNew)

	pos.Entry = entryNew
	pos.Size = sizeNew
	pos.Stage = StageFull
	pos.SL = plan.SL
	pos.TP = plan.TP
	pos.RValue = plan.RValue
	e.persist()
	e.notify(notifier.StructuredMessage{
		Icon:  "📈",
		Title: fmt.Sprintf("试探仓升级为全仓 %s", symbol),
		Sections: []notifier.MessageSection{{Lines: []string{
			fmt.Sprintf("新数量: %.6f", sizeNew),
			fmt.Sprintf("均价: %.6f", entryNew),
		}}},
		Timestamp: time.Now(),
	})
	return true, fmt.Sprintf("promoted to full size=%.6f avg_entry=%.6f", sizeNew, entryNew)
}

func (e *Engine) updateRiskAndExit(key string, pos *Position, priceNow float64, plan trading.Plan, now time.Time) []string {
	var actions []string
	side := pos.Side

	// defensive backfill: a probe fill leaves SL/TP unset until the plan of
	// the same cycle arrives here
	if pos.SL <= 0 || pos.TP <= 0 || (pos.RValue <= 0 && plan.RValue > 0) {
		if plan.SL > 0 && plan.TP > 0 {
			pos.SL = plan.SL
			pos.TP = plan.TP
			pos.RValue = plan.RValue
			actions = append(actions, fmt.Sprintf("init SL=%.6f TP=%.6f", pos.SL, pos.TP))
			e.notify(notifier.StructuredMessage{
				Icon:      "🛡",
				Title:     fmt.Sprintf("初始化 SL/TP %s", pos.Symbol),
				Sections:  []notifier.MessageSection{{Lines: []string{fmt.Sprintf("SL=%.6f TP=%.6f", pos.SL, pos.TP)}}},
				Timestamp: now,
			})
		}
	}

	rValue := pos.RValue
	if rValue <= 0 {
		rValue = plan.RValue
	}

	hitTP := hitTakeProfit(side, priceNow, pos.TP)
	hitSL := hitStopLoss(side, priceNow, pos.SL)
	if hitTP || hitSL {
		return append(actions, e.closePosition(key, pos, priceNow, rValue, hitTP, now)...)
	}

	if rValue <= 0 {
		return actions
	}
	gain := priceNow - pos.Entry
	if side == "SHORT" {
		gain = pos.Entry - priceNow
	}

	if gain >= e.cfg.BreakevenAtR*rValue && tightensStop(side, pos.Entry, pos.SL) {
		pos.SL = pos.Entry
		actions = append(actions, fmt.Sprintf("breakeven SL=%.6f", pos.SL))
		e.persist()
		e.notify(notifier.StructuredMessage{
			Icon:      "⚖️",
			Title:     fmt.Sprintf("SL 移动到保本 %s", pos.Symbol),
			Sections:  []notifier.MessageSection{{Lines: []string{fmt.Sprintf("SL=%.6f", pos.SL)}}},
			Timestamp: now,
		})
	}
	if gain >= e.cfg.TrailingAtR*rValue {
		trailSL := priceNow - rValue
		if side == "SHORT" {
			trailSL = priceNow + rValue
		}
		if tightensStop(side, trailSL, pos.SL) {
			pos.SL = trailSL
			actions = append(actions, fmt.Sprintf("trailing SL=%.6f", trailSL))
			e.persist()
			e.notify(notifier.StructuredMessage{
				Icon:      "🪜",
				Title:     fmt.Sprintf("SL 追踪调整 %s", pos.Symbol),
				Sections:  []notifier.MessageSection{{Lines: []string{fmt.Sprintf("SL=%.6f", trailSL)}}},
				Timestamp: now,
			})
		}
	}
	return actions
}

func (e *Engine) closePosition(key string, pos *Position, priceNow, rValue float64, tookProfit bool, now time.Time) []string {
	pnl := (priceNow - pos.Entry) * pos.Size
	if pos.Side == "SHORT" {
		pnl = (pos.Entry - priceNow) * pos.Size
	}
	pnlR := 0.0
	if rValue > 0 && pos.Size > 0 {
		pnlR = pnl / (rValue * pos.Size)
	}

	rec := tradelog.Record{
		TraceID:   uuid.NewString(),
		Symbol:    pos.Symbol,
		Timeframe: pos.Timeframe,
		Side:      pos.Side,
		Stage:     string(pos.Stage),
		Entry:     pos.Entry,
		Exit:      priceNow,
		PnL:       pnl,
		PnLR:      pnlR,
		SL:        pos.SL,
		TP:        pos.TP,
		Size:      pos.Size,
		OpenedAt:  pos.OpenedAt,
		ClosedAt:  now.Unix(),
	}
	if e.trades != nil {
		if err := e.trades.Append(rec); err != nil {
			logger.Warnf("交易日志写入失败: %v", err)
		}
	}

	delete(e.state.Positions, key)
	e.persist()

	result := "止损离场"
	icon := "🛑"
	if tookProfit {
		result = "止盈离场"
		icon = "🎯"
	}
	e.notify(notifier.StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("%s %s %s", result, pos.Symbol, pos.Side),
		Sections: []notifier.MessageSection{{Lines: []string{
			fmt.Sprintf("盈亏: %.6f", pnl),
			fmt.Sprintf("R 倍数: %.2f", pnlR),
		}}},
		Timestamp: now,
	})
	return []string{fmt.Sprintf("close (%s) price=%.6f pnl=%.6f pnl_r=%.2f", result, priceNow, pnl, pnlR)}
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if res := e.store.Save(e.state); !res.OK() {
		logger.Warnf("执行状态写入失败（内存状态仍然有效）: %s", res.Reason())
	}
}

// notify 推送事件文本，失败只记日志，不影响交易流程。
func (e *Engine) notify(msg notifier.StructuredMessage) {
	if err := e.sink.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("通知发送失败: %v", err)
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

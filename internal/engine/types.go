package engine

import "fmt"

type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	// OrderStatusMarketFallbackFilled 表示限价单超时后按市价兜底成交。
	OrderStatusMarketFallbackFilled OrderStatus = "market_fallback_filled"
)

type Stage string

const (
	StageProbe Stage = "probe"
	StageFull  Stage = "full"
)

// Order 由执行引擎独占管理；一个 (symbol, timeframe) 同时只允许一张活动订单,
// 通过 pair_index 跟踪。下单时把计划里的 SL/TP/R 一并冻结在订单上：
// 成交可能发生在之后某个没有新计划的周期，仓位必须带着保护开出来。
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Timeframe   string      `json:"timeframe"`
	Side        string      `json:"side"`
	Price       float64     `json:"price"`
	Size        float64     `json:"size"`
	SL          float64     `json:"sl,omitempty"`
	TP          float64     `json:"tp,omitempty"`
	RValue      float64     `json:"r_value,omitempty"`
	Status      OrderStatus `json:"status"`
	FilledPrice float64     `json:"filled_price,omitempty"`
	FilledSize  float64     `json:"filled_size,omitempty"`
	CreatedAt   int64       `json:"created_at"`
	ExpiresAt   int64       `json:"expires_at"`
}

// Position 每个 (symbol, timeframe) 至多一张；升级与风控只做原地修改，
// 离场时整体移除。SL/TP 为 0 表示尚未设置。
type Position struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Side      string  `json:"side"`
	Size      float64 `json:"size"`
	Entry     float64 `json:"entry"`
	Stage     Stage   `json:"stage"`
	OpenedAt  int64   `json:"opened_at"`
	SL        float64 `json:"sl,omitempty"`
	TP        float64 `json:"tp,omitempty"`
	RValue    float64 `json:"r_value,omitempty"`
}

// State is the persisted aggregate owned exclusively by the engine. It is
// written wholesale after every mutating operation.
type State struct {
	Positions map[string]*Position `json:"positions"`
	Orders    map[string]*Order    `json:"orders"`
	PairIndex map[string]string    `json:"pair_index"`
	// NextOrderSeq keeps order IDs monotonic across restarts.
	NextOrderSeq int64 `json:"next_order_seq"`
}

func NewState() *State {
	return &State{
		Positions:    make(map[string]*Position),
		Orders:       make(map[string]*Order),
		PairIndex:    make(map[string]string),
		NextOrderSeq: 1,
	}
}

func (s *State) ensureMaps() {
	if s.Positions == nil {
		s.Positions = make(map[string]*Position)
	}
	if s.Orders == nil {
		s.Orders = make(map[string]*Order)
	}
	if s.PairIndex == nil {
		s.PairIndex = make(map[string]string)
	}
	if s.NextOrderSeq <= 0 {
		s.NextOrderSeq = 1
	}
}

func pairKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s|%s", symbol, timeframe)
}

// TickSummary lists the human-readable actions one tick performed.
type TickSummary struct {
	Actions []string `json:"actions"`
}

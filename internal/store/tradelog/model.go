package tradelog

import (
	"time"

	"gorm.io/datatypes"
)

// TradeModel 是 trades 表的行结构：每笔已平仓交易一行，只追加不修改。
type TradeModel struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TraceID   string         `gorm:"column:trace_id;index"`
	Symbol    string         `gorm:"column:symbol;index"`
	Timeframe string         `gorm:"column:timeframe"`
	Side      string         `gorm:"column:side"`
	Stage     string         `gorm:"column:stage"`
	Entry     float64        `gorm:"column:entry"`
	Exit      float64        `gorm:"column:exit"`
	PnL       float64        `gorm:"column:pnl"`
	PnLR      float64        `gorm:"column:pnl_r"`
	SL        float64        `gorm:"column:sl"`
	TP        float64        `gorm:"column:tp"`
	Size      float64        `gorm:"column:size"`
	OpenedAt  int64          `gorm:"column:opened_at"`
	ClosedAt  int64          `gorm:"column:closed_at"`
	Context   datatypes.JSON `gorm:"column:context"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (TradeModel) TableName() string { return "trades" }

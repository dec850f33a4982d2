// Package tradelog stores one immutable record per closed trade using
// Gorm + SQLite.
package tradelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Record 是交易日志的领域侧结构，字段与 §trades 表一一对应。
type Record struct {
	TraceID   string         `json:"trace_id"`
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Side      string         `json:"side"`
	Stage     string         `json:"stage"`
	Entry     float64        `json:"entry"`
	Exit      float64        `json:"exit"`
	PnL       float64        `json:"pnl"`
	PnLR      float64        `json:"pnl_r"`
	SL        float64        `json:"sl"`
	TP        float64        `json:"tp"`
	Size      float64        `json:"size"`
	OpenedAt  int64          `json:"opened_at"`
	ClosedAt  int64          `json:"closed_at"`
	Context   map[string]any `json:"context,omitempty"`
}

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("tradelog path 不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tradelog dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open tradelog db: %w", err)
	}
	if err := db.AutoMigrate(&TradeModel{}); err != nil {
		return nil, fmt.Errorf("migrate tradelog: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts one closed-trade row. Records are never updated or deleted.
func (s *Store) Append(rec Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tradelog store not initialized")
	}
	model := TradeModel{
		TraceID:   rec.TraceID,
		Symbol:    rec.Symbol,
		Timeframe: rec.Timeframe,
		Side:      rec.Side,
		Stage:     rec.Stage,
		Entry:     rec.Entry,
		Exit:      rec.Exit,
		PnL:       rec.PnL,
		PnLR:      rec.PnLR,
		SL:        rec.SL,
		TP:        rec.TP,
		Size:      rec.Size,
		OpenedAt:  rec.OpenedAt,
		ClosedAt:  rec.ClosedAt,
	}
	if len(rec.Context) > 0 {
		if raw, err := json.Marshal(rec.Context); err == nil {
			model.Context = raw
		}
	}
	return s.db.Create(&model).Error
}

// Recent returns the latest closed trades, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tradelog store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []TradeModel
	if err := s.db.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			TraceID:   row.TraceID,
			Symbol:    row.Symbol,
			Timeframe: row.Timeframe,
			Side:      row.Side,
			Stage:     row.Stage,
			Entry:     row.Entry,
			Exit:      row.Exit,
			PnL:       row.PnL,
			PnLR:      row.PnLR,
			SL:        row.SL,
			TP:        row.TP,
			Size:      row.Size,
			OpenedAt:  row.OpenedAt,
			ClosedAt:  row.ClosedAt,
		}
		if len(row.Context) > 0 {
			_ = json.Unmarshal(row.Context, &rec.Context)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Package decisionlog records every gate evaluation so blocked entries stay
// explainable after the fact. Plain database/sql on the pure-Go sqlite
// driver; the writer path must stay cheap since it runs every cycle.
package decisionlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry 是一次评估的落库结构。
type Entry struct {
	TS         int64    `json:"ts"`
	Symbol     string   `json:"symbol"`
	Timeframe  string   `json:"timeframe"`
	Side       string   `json:"side"`
	ScoreLong  float64  `json:"score_long"`
	ScoreShort float64  `json:"score_short"`
	GatePass   bool     `json:"gate_pass"`
	Stable     bool     `json:"stable"`
	InCooldown bool     `json:"in_cooldown"`
	EntryReady bool     `json:"entry_ready"`
	Reasons    []string `json:"reasons,omitempty"`
}

type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("decisionlog path 不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create decisionlog dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		side TEXT NOT NULL,
		score_long REAL NOT NULL,
		score_short REAL NOT NULL,
		gate_pass INTEGER NOT NULL,
		stable INTEGER NOT NULL,
		in_cooldown INTEGER NOT NULL,
		entry_ready INTEGER NOT NULL,
		reasons TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol_ts ON decisions(symbol, ts);`)
	return err
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("decisionlog store closed")
	}
	if e.TS <= 0 {
		e.TS = time.Now().Unix()
	}
	var reasons any
	if len(e.Reasons) > 0 {
		raw, err := json.Marshal(e.Reasons)
		if err == nil {
			reasons = string(raw)
		}
	}
	_, err := s.db.Exec(`INSERT INTO decisions
		(ts, symbol, timeframe, side, score_long, score_short, gate_pass, stable, in_cooldown, entry_ready, reasons)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.TS, e.Symbol, e.Timeframe, e.Side, e.ScoreLong, e.ScoreShort,
		boolInt(e.GatePass), boolInt(e.Stable), boolInt(e.InCooldown), boolInt(e.EntryReady), reasons)
	return err
}

// Recent returns the latest entries, newest first, optionally filtered by
// symbol.
func (s *Store) Recent(symbol string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("decisionlog store closed")
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ts, symbol, timeframe, side, score_long, score_short, gate_pass, stable, in_cooldown, entry_ready, reasons
		FROM decisions`
	args := []any{}
	if symbol = strings.TrimSpace(symbol); symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var gatePass, stable, cooldown, ready int
		var reasons sql.NullString
		if err := rows.Scan(&e.TS, &e.Symbol, &e.Timeframe, &e.Side, &e.ScoreLong, &e.ScoreShort,
			&gatePass, &stable, &cooldown, &ready, &reasons); err != nil {
			return nil, err
		}
		e.GatePass = gatePass != 0
		e.Stable = stable != 0
		e.InCooldown = cooldown != 0
		e.EntryReady = ready != 0
		if reasons.Valid && reasons.String != "" {
			_ = json.Unmarshal([]byte(reasons.String), &e.Reasons)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

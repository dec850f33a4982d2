// Package statestore persists component state as whole JSON snapshots.
// Each store owns one file; every mutation is written wholesale so a process
// restart resumes from the last successful write.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
)

// PersistResult 描述一次快照写入的结果。持久化是尽力而为的：写失败不会中断
// 已经在内存中生效的交易逻辑，由调用方决定记录日志、重试或忽略。
type PersistResult struct {
	Path string
	Err  error
}

func (r PersistResult) OK() bool { return r.Err == nil }

func (r PersistResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Store is the snapshot persistence contract shared by the execution engine,
// the stability tracker and the cooldown manager.
type Store interface {
	Save(v any) PersistResult
	Load(out any) error
}

// FileStore writes snapshots atomically (temp file + rename). Single-writer:
// concurrent engine instances must not share one file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(v any) PersistResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return PersistResult{Path: s.path, Err: fmt.Errorf("marshal snapshot: %w", err)}
	}
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return PersistResult{Path: s.path, Err: fmt.Errorf("create state dir: %w", err)}
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return PersistResult{Path: s.path, Err: fmt.Errorf("write snapshot: %w", err)}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return PersistResult{Path: s.path, Err: fmt.Errorf("replace snapshot: %w", err)}
	}
	return PersistResult{Path: s.path}
}

// Load decodes the snapshot into out. A missing file is not an error: the
// caller starts from zero state. A corrupt file is reported so the caller can
// decide whether to discard it.
func (s *FileStore) Load(out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot (%s): %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("snapshot is not valid json (%s)", s.path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode snapshot (%s): %w", s.path, err)
	}
	return nil
}

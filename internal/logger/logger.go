// Package logger 是 slog 的薄封装：全局单例 + printf 风格接口，
// 级别与输出可在启动时调整。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"log/slog"
)

var (
	mu    sync.RWMutex
	level slog.LevelVar
	log   = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
)

// SetOutput 重建底层 handler，通常用于把日志同时写到文件。
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	mu.Lock()
	log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
	mu.Unlock()
}

// SetLevel 接受 debug/info/warn/error，大小写不敏感，未知值回落到 info。
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debugf(format string, v ...any) { current().Debug(fmt.Sprintf(format, v...)) }

func Infof(format string, v ...any) { current().Info(fmt.Sprintf(format, v...)) }

func Warnf(format string, v ...any) { current().Warn(fmt.Sprintf(format, v...)) }

func Errorf(format string, v ...any) { current().Error(fmt.Sprintf(format, v...)) }

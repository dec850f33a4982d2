package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sharkbot/internal/engine"
	"sharkbot/internal/logger"
	"sharkbot/internal/store/decisionlog"
	"sharkbot/internal/store/tradelog"

	"github.com/gin-gonic/gin"
)

// Server 提供最小化的只读状态查询服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖，缺失的数据源对应接口返回 404。
type ServerConfig struct {
	Addr      string
	Engine    *engine.Engine
	Trades    *tradelog.Store
	Decisions *decisionlog.Store
}

// NewServer 构建状态查询 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("http server requires engine")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.Engine.Snapshot())
	})
	api.GET("/trades", func(c *gin.Context) {
		if cfg.Trades == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "trade log disabled"})
			return
		}
		records, err := cfg.Trades.Recent(queryLimit(c, 50))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": records})
	})
	api.GET("/decisions", func(c *gin.Context) {
		if cfg.Decisions == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "decision log disabled"})
			return
		}
		symbol := strings.TrimSpace(c.Query("symbol"))
		entries, err := cfg.Decisions.Recent(symbol, queryLimit(c, 100))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"decisions": entries})
	})

	return &Server{addr: cfg.Addr, router: router}, nil
}

func queryLimit(c *gin.Context, def int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > 1000 {
		return 1000
	}
	return n
}

// requestLogger 记录接口调用，便于追踪人工查询。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

package app

import (
	"context"
	"fmt"

	sbcfg "sharkbot/internal/config"
	"sharkbot/internal/logger"
	apihttp "sharkbot/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动评估循环与状态 API。
type App struct {
	cfg     *sbcfg.Config
	svc     *CycleService
	httpSrv *apihttp.Server
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *sbcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动评估循环与 HTTP 服务。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	if a.Summary != nil {
		a.Summary.Print()
	}

	if a.svc == nil {
		return fmt.Errorf("cycle service not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer a.svc.Close()
		return a.svc.Run(ctx)
	})

	return group.Wait()
}

// CycleService exposes the underlying service instance (for testing/replay harnesses).
func (a *App) CycleService() *CycleService {
	if a == nil {
		return nil
	}
	return a.svc
}

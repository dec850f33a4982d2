package scheduler

import (
	"context"
	"time"

	"sharkbot/internal/logger"
)

// IntervalScheduler 以固定的墙钟间隔驱动评估周期。周期之间可通过 ctx 取消；
// 单个周期由 TaskTimeout 约束，避免卡死的周期阻塞退出。
type IntervalScheduler struct {
	Interval       time.Duration
	TaskTimeout    time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalScheduler(ctx context.Context, interval, taskTimeout time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Interval:    interval,
		TaskTimeout: taskTimeout,
		ctx:         ctx,
		nowFn:       time.Now,
	}
}

// Start runs task repeatedly until the context is done. The task receives a
// per-cycle context bounded by TaskTimeout.
func (s *IntervalScheduler) Start(task func(ctx context.Context)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("IntervalScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("IntervalScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("IntervalScheduler: started interval=%s run_immediately=%v at=%s",
		s.Interval, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		s.runOnce(task)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("IntervalScheduler: ctx done, exit (uptime=%s)",
				s.nowFn().UTC().Sub(startAt).Truncate(time.Second))
			return
		case <-ticker.C:
			s.runOnce(task)
		}
	}
}

func (s *IntervalScheduler) runOnce(task func(ctx context.Context)) {
	ctx := s.ctx
	cancel := func() {}
	if s.TaskTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.TaskTimeout)
	}
	defer cancel()
	task(ctx)
}

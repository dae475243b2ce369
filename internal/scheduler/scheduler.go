package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/service"
)

// Scheduler 定时任务调度器
// 目前只承载过期邀请清理一项任务，按配置的 cron 表达式执行
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New 创建调度器并注册过期清理任务
func New(cfg *config.SweepConfig, sweepSvc service.SweepService, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := sweepSvc.Run(ctx)
		if err != nil {
			// 本轮失败只记日志，等下一轮调度重试
			logger.Error("过期邀请清理任务失败", zap.Error(err))
			return
		}
		logger.Info("过期邀请清理任务完成", zap.Int("deactivated", count))
	})
	if err != nil {
		return nil, fmt.Errorf("注册清理任务失败（cron 表达式 %q）: %w", cfg.Schedule, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start 启动调度（后台 goroutine）
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时任务调度器已启动")
}

// Stop 停止调度并等待在途任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("定时任务调度器已停止")
}

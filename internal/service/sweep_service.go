package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
)

// SweepService 过期邀请清理任务
//
// 扫描邀请/重置窗口已过但始终未完成设密的活跃账号并停用。
// 停用后的账号不再命中查询条件，连续执行两次第二次必然清理 0 条（幂等）。
type SweepService interface {
	// Run 执行一次清理，返回本次停用的账号数
	// 定时调度与手动触发共用此入口
	Run(ctx context.Context) (int, error)
}

type sweepService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSweepService 创建 SweepService 实例
func NewSweepService(repo *repository.Repository, logger *zap.Logger) SweepService {
	return &sweepService{repo: repo, logger: logger}
}

func (s *sweepService) Run(ctx context.Context) (int, error) {
	now := time.Now()

	lapsed, err := s.repo.Clerk.ListLapsed(ctx, now)
	if err != nil {
		s.logger.Error("查询过期邀请失败", zap.Error(err))
		return 0, err
	}

	deactivated := 0
	for i := range lapsed {
		clerk := &lapsed[i]

		clerk.IsActive = false
		clerk.NeedsPasswordReset = true

		// 单条失败只记日志并继续，一条坏记录不能中断整轮清理
		if err := s.repo.Clerk.Update(ctx, clerk); err != nil {
			s.logger.Error("停用过期邀请账号失败",
				zap.String("clerk_id", clerk.ClerkID),
				zap.String("email", clerk.Email),
				zap.Error(err),
			)
			continue
		}

		recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
			// ActorID 为空 = 系统自动操作
			Action:      model.ActionClerkAutoExpire,
			TargetType:  "clerk",
			TargetID:    &clerk.ClerkID,
			Description: fmt.Sprintf("前台账号 %s（%s）邀请于 %s 过期未完成设密，已自动停用", clerk.Name, clerk.Email, clerk.ResetTokenExpiresAt.Format("2006-01-02 15:04")),
			Metadata:    map[string]interface{}{"lapsed_at": clerk.ResetTokenExpiresAt},
		})
		deactivated++
	}

	if deactivated > 0 {
		s.logger.Info("过期邀请清理完成", zap.Int("deactivated", deactivated))
	}

	return deactivated, nil
}

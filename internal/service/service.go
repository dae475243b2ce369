package service

import (
	"go.uber.org/zap"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/mailer"
	"dormdesk/backend/pkg/redis"
	"dormdesk/backend/pkg/token"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth  AuthService
	Clerk ClerkService
	Sweep SweepService
}

// NewService 创建 Service 聚合
// rdb、mail 允许为 nil：对应能力降级（登出黑名单不可用 / 邮件只记日志）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	tokenMgr *token.Manager,
	rdb *redis.Client,
	mail mailer.Mailer,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:  NewAuthService(cfg, repo, tokenMgr, rdb, logger),
		Clerk: NewClerkService(cfg, repo, tokenMgr, mail, logger),
		Sweep: NewSweepService(repo, logger),
	}
}

package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/api/handler"
	"dormdesk/backend/internal/api/middleware"
	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/redis"
	"dormdesk/backend/pkg/token"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	tokenMgr *token.Manager,
	rdb *redis.Client,
	repo *repository.Repository,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 公开凭据入口限流：每 IP 每分钟 10 次
	credLimit := middleware.RateLimit(rdb, 10, time.Minute)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 公开路由（令牌即凭据的设密入口也在这里）
		v1.POST("/clerks", credLimit, h.Auth.Register)
		v1.POST("/clerks/login", credLimit, h.Auth.Login)
		v1.POST("/auth/set-password/:token", credLimit, h.Auth.SetPassword)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.Auth(tokenMgr, rdb, repo))
		{
			authorized.POST("/clerks/logout", h.Auth.Logout)
			authorized.GET("/clerks/current", h.Auth.GetCurrent)

			// 管理模块（管理员/主管）
			admin := authorized.Group("/admin")
			admin.Use(middleware.RoleAuth(model.RoleAdmin, model.RoleSupervisor))
			{
				admin.POST("/clerks", h.Clerk.Invite)
				admin.GET("/clerks", h.Clerk.List)
				admin.POST("/clerks/:id/reset-password", h.Clerk.ResetPassword)
				admin.PUT("/clerks/:id/status", h.Clerk.SetStatus)

				// 删除与运维动作仅限管理员
				admin.DELETE("/clerks/:id", middleware.RoleAuth(model.RoleAdmin), h.Clerk.Delete)
				admin.POST("/maintenance/expiry-sweep", middleware.RoleAuth(model.RoleAdmin), h.Clerk.TriggerSweep)
			}
		}
	}

	return r
}

package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/redis"
	"dormdesk/backend/pkg/response"
	"dormdesk/backend/pkg/token"
)

// Auth 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证会话令牌，
// 然后逐请求重新解析账号记录：令牌签发后被删除或停用的账号在这里被拦下，
// 角色信息也以当前库里的为准而不是签发时的快照
func Auth(tokenMgr *token.Manager, rdb *redis.Client, repo *repository.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := tokenMgr.VerifySessionToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "令牌无效或已过期")
			c.Abort()
			return
		}

		// 检查令牌黑名单（Redis 不可用时降级放行）
		if rdb != nil {
			blacklisted, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID)
			if err == nil && blacklisted {
				response.Unauthorized(c, 10002, "令牌已失效")
				c.Abort()
				return
			}
		}

		clerk, err := repo.Clerk.GetByID(c.Request.Context(), claims.ClerkID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Unauthorized(c, 10002, "账号不存在")
			} else {
				response.InternalError(c)
			}
			c.Abort()
			return
		}

		if !clerk.IsActive {
			response.Unauthorized(c, 10002, "账号已停用")
			c.Abort()
			return
		}

		// 将账号信息注入上下文
		c.Set("clerk_id", clerk.ClerkID)
		c.Set("role", clerk.Role)
		c.Set("is_root", clerk.IsRoot)
		c.Set("token_jti", claims.ID)
		c.Set("token_exp", claims.ExpiresAt.Time)

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前账号是否具有指定角色之一；须在 Auth 之后挂载
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		currentRole := role.(string)
		for _, r := range allowedRoles {
			if currentRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}

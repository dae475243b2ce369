package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"dormdesk/backend/pkg/response"
)

// MustGetClerkID 从 Gin 上下文中安全提取 clerk_id。
// 如果认证中间件未正确注入 clerk_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetClerkID(c *gin.Context) (string, bool) {
	v, exists := c.Get("clerk_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetTokenInfo 从 Gin 上下文中安全提取令牌 jti 与过期时间（登出用）。
func MustGetTokenInfo(c *gin.Context) (string, time.Time, bool) {
	jti, exists := c.Get("token_jti")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	exp, exists := c.Get("token_exp")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	jtiStr, ok1 := jti.(string)
	expTime, ok2 := exp.(time.Time)
	if !ok1 || !ok2 {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	return jtiStr, expTime, true
}

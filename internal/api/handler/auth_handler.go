package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dormdesk/backend/internal/dto"
	"dormdesk/backend/internal/service"
	"dormdesk/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register 自助注册
// POST /api/v1/clerks
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch), errors.Is(err, service.ErrPasswordTooShort):
			response.BadRequest(c, 10001, err.Error())
		case errors.Is(err, service.ErrEmailExists):
			response.BadRequest(c, 11002, err.Error())
		case errors.Is(err, service.ErrClerkCodeExhausted):
			response.Error(c, http.StatusInternalServerError, 11008, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	response.Created(c, result)
}

// Login 登录（邮箱或工号）
// POST /api/v1/clerks/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, 11001, err.Error())
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// Logout 登出
// POST /api/v1/clerks/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp, ok := MustGetTokenInfo(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

// GetCurrent 当前登录者资料
// GET /api/v1/clerks/current
func (h *AuthHandler) GetCurrent(c *gin.Context) {
	clerkID, ok := MustGetClerkID(c)
	if !ok {
		return
	}

	result, err := h.authSvc.GetCurrent(c.Request.Context(), clerkID)
	if err != nil {
		if errors.Is(err, service.ErrClerkNotFound) {
			response.NotFound(c, 11003, err.Error())
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// SetPassword 凭邮件链接令牌设置密码
// POST /api/v1/auth/set-password/:token
func (h *AuthHandler) SetPassword(c *gin.Context) {
	var req dto.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.SetPasswordWithToken(c.Request.Context(), c.Param("token"), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch), errors.Is(err, service.ErrPasswordTooShort):
			response.BadRequest(c, 10001, err.Error())
		case errors.Is(err, service.ErrResetTokenInvalid):
			response.BadRequest(c, 11004, err.Error())
		case errors.Is(err, service.ErrGracePeriodExpired):
			// 宽限期已过：账号已被暂停，403 + 可执行的提示
			response.Forbidden(c, 11005, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, result)
}

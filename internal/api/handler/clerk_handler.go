package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dormdesk/backend/internal/dto"
	"dormdesk/backend/internal/service"
	"dormdesk/backend/pkg/response"
)

// ClerkHandler 前台账号管理 HTTP 处理器（管理员侧）
type ClerkHandler struct {
	clerkSvc service.ClerkService
	sweepSvc service.SweepService
}

// NewClerkHandler 创建 ClerkHandler
func NewClerkHandler(clerkSvc service.ClerkService, sweepSvc service.SweepService) *ClerkHandler {
	return &ClerkHandler{clerkSvc: clerkSvc, sweepSvc: sweepSvc}
}

// Invite 邀请前台账号
// POST /api/v1/admin/clerks
func (h *ClerkHandler) Invite(c *gin.Context) {
	actorID, ok := MustGetClerkID(c)
	if !ok {
		return
	}

	var req dto.InviteClerkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.clerkSvc.Invite(c.Request.Context(), &req, actorID)
	if err != nil {
		switch {
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

// List 分页查询前台账号
// GET /api/v1/admin/clerks
func (h *ClerkHandler) List(c *gin.Context) {
	var req dto.ClerkListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.clerkSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ResetPassword 重置前台账号密码
// POST /api/v1/admin/clerks/:id/reset-password
func (h *ClerkHandler) ResetPassword(c *gin.Context) {
	actorID, ok := MustGetClerkID(c)
	if !ok {
		return
	}

	if err := h.clerkSvc.ResetPassword(c.Request.Context(), c.Param("id"), actorID); err != nil {
		if errors.Is(err, service.ErrClerkNotFound) {
			response.NotFound(c, 11003, err.Error())
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

// SetStatus 启停前台账号
// PUT /api/v1/admin/clerks/:id/status
func (h *ClerkHandler) SetStatus(c *gin.Context) {
	actorID, ok := MustGetClerkID(c)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.clerkSvc.SetStatus(c.Request.Context(), c.Param("id"), &req, actorID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfModification):
			response.BadRequest(c, 11006, err.Error())
		case errors.Is(err, service.ErrClerkNotFound):
			response.NotFound(c, 11003, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, result)
}

// Delete 删除前台账号
// DELETE /api/v1/admin/clerks/:id
func (h *ClerkHandler) Delete(c *gin.Context) {
	actorID, ok := MustGetClerkID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.clerkSvc.Delete(c.Request.Context(), id, actorID); err != nil {
		switch {
		case errors.Is(err, service.ErrProtectedAccount):
			response.Forbidden(c, 11007, err.Error())
		case errors.Is(err, service.ErrClerkNotFound):
			response.NotFound(c, 11003, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, dto.DeleteClerkResponse{ID: id})
}

// TriggerSweep 手动触发过期邀请清理
// POST /api/v1/admin/maintenance/expiry-sweep
func (h *ClerkHandler) TriggerSweep(c *gin.Context) {
	count, err := h.sweepSvc.Run(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.SweepResponse{Deactivated: count})
}

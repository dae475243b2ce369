package handler

import "dormdesk/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth  *AuthHandler
	Clerk *ClerkHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:  NewAuthHandler(svc.Auth),
		Clerk: NewClerkHandler(svc.Clerk, svc.Sweep),
	}
}

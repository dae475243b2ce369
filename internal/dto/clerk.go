package dto

// ── 前台账号模块 DTO ──

// ClerkResponse 前台账号信息响应（脱敏，不含任何凭据字段）
type ClerkResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	ClerkCode          string `json:"clerk_code"`
	Role               string `json:"role"`
	IsActive           bool   `json:"is_active"`
	NeedsPasswordReset bool   `json:"needs_password_reset"`
	CreatedAt          string `json:"created_at"`
}

// InviteClerkRequest 管理员邀请前台账号请求
type InviteClerkRequest struct {
	Name  string `json:"name"  binding:"required,min=2,max=50"`
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"  binding:"omitempty,oneof=clerk supervisor admin"`
}

// SetStatusRequest 启停前台账号请求
type SetStatusRequest struct {
	IsActive *bool  `json:"is_active" binding:"required"`
	Reason   string `json:"reason"    binding:"omitempty,max=200"`
}

// DeleteClerkResponse 删除成功响应
type DeleteClerkResponse struct {
	ID string `json:"id"`
}

// SweepResponse 手动触发过期清理的响应
type SweepResponse struct {
	Deactivated int `json:"deactivated"`
}

// ClerkListRequest 前台账号列表查询参数
type ClerkListRequest struct {
	PaginationRequest
	Role     string `form:"role"      binding:"omitempty,oneof=clerk supervisor admin"`
	IsActive *bool  `form:"is_active" binding:"omitempty"`
	Keyword  string `form:"keyword"   binding:"omitempty,max=50"`
}

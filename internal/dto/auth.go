package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
// ClerkCred 可以是邮箱或工号，由 Repository 统一做双字段匹配
type LoginRequest struct {
	ClerkCred string `json:"clerk_cred" binding:"required"`
	Password  string `json:"password"   binding:"required"`
}

// RegisterRequest 自助注册请求
type RegisterRequest struct {
	Name      string `json:"name"      binding:"required,min=2,max=50"`
	Email     string `json:"email"     binding:"required,email"`
	Password  string `json:"password"  binding:"required,min=8,max=72"`
	Password2 string `json:"password2" binding:"required"`
}

// SetPasswordRequest 凭邮件链接令牌设置密码请求
// 字段缺失/不一致在任何查库动作之前拒绝
type SetPasswordRequest struct {
	Password  string `json:"password"  binding:"required"`
	Password2 string `json:"password2" binding:"required"`
}

// TokenResponse 登录/设密成功响应
type TokenResponse struct {
	SessionToken string        `json:"session_token"`
	ExpiresIn    int           `json:"expires_in"` // 会话令牌有效期（秒）
	Clerk        ClerkResponse `json:"clerk"`
}

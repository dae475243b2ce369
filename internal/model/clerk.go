package model

import "time"

// 前台角色
const (
	RoleClerk      = "clerk"      // 普通前台值班员
	RoleSupervisor = "supervisor" // 值班主管
	RoleAdmin      = "admin"      // 管理员
)

// Clerk 前台值班员表 — 对应 clerks
//
// 重置令牌三元组约定：
//   - ResetTokenHash 只存原始令牌的 sha256 哈希，原始值绝不落库、不写日志
//   - ResetTokenHash 与 ResetTokenExpiresAt 同设同清，不允许只有其一
//   - MustChangePasswordBy 是对外承诺的换密宽限期，独立于令牌过期时间，
//     宽限期已过时即使令牌仍有效也直接停用账号
type Clerk struct {
	ClerkID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"clerk_id"`
	Name                 string     `gorm:"type:varchar(100);not null"                     json:"name"`
	Email                string     `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	ClerkCode            string     `gorm:"type:varchar(10);not null;uniqueIndex"          json:"clerk_code"`
	PasswordHash         string     `gorm:"type:varchar(255);not null"                     json:"-"`
	Role                 string     `gorm:"type:varchar(20);not null;default:'clerk'"      json:"role"`
	IsRoot               bool       `gorm:"not null;default:false"                         json:"is_root"`
	IsActive             bool       `gorm:"not null;default:true"                          json:"is_active"`
	ResetTokenHash       *string    `gorm:"type:varchar(64)"                               json:"-"`
	ResetTokenExpiresAt  *time.Time `json:"-"`
	MustChangePasswordBy *time.Time `json:"must_change_password_by,omitempty"`
	NeedsPasswordReset   bool       `gorm:"not null;default:false"                         json:"needs_password_reset"`
	BaseModel
}

// TableName 指定表名
func (Clerk) TableName() string { return "clerks" }

// SetResetToken 写入重置令牌哈希与过期时间（同设）
func (c *Clerk) SetResetToken(hash string, expiresAt time.Time) {
	c.ResetTokenHash = &hash
	c.ResetTokenExpiresAt = &expiresAt
}

// ClearResetToken 清除重置令牌三元组（同清）
func (c *Clerk) ClearResetToken() {
	c.ResetTokenHash = nil
	c.ResetTokenExpiresAt = nil
	c.MustChangePasswordBy = nil
}

// GraceLapsed 判断换密宽限期是否已过（now >= 截止时间 视为已过）
func (c *Clerk) GraceLapsed(now time.Time) bool {
	return c.MustChangePasswordBy != nil && !now.Before(*c.MustChangePasswordBy)
}

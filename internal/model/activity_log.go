package model

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作类型
const (
	ActionClerkRegister     = "clerk.register"
	ActionClerkInvite       = "clerk.invite"
	ActionClerkResetIssue   = "clerk.reset_password"
	ActionClerkPasswordSet  = "clerk.password_set"
	ActionClerkStatusChange = "clerk.status_change"
	ActionClerkDelete       = "clerk.delete"
	ActionClerkAutoExpire   = "clerk.auto_expire"
)

// ActivityLog 操作审计表 — 对应 activity_logs
//
// ActorID 为空表示系统自动操作（如过期清理任务）。
// 被指向的前台账号被物理删除时，ActorID/TargetID 会被置空，
// Description 保留人类可读的历史描述，保证记录删除后仍然可读。
type ActivityLog struct {
	LogID       string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	ActorID     *string           `gorm:"type:uuid;index"                                json:"actor_id,omitempty"`
	Action      string            `gorm:"type:varchar(50);not null;index"                json:"action"`
	TargetType  string            `gorm:"type:varchar(30);not null"                      json:"target_type"`
	TargetID    *string           `gorm:"type:uuid;index"                                json:"target_id,omitempty"`
	Description string            `gorm:"type:text;not null"                             json:"description"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"                                     json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ActivityLog) TableName() string { return "activity_logs" }

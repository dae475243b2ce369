package repository

import (
	"context"

	"gorm.io/gorm"

	"dormdesk/backend/internal/model"
)

// ActivityLogRepository 审计日志数据访问接口
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *model.ActivityLog) error
	List(ctx context.Context, offset, limit int) ([]model.ActivityLog, int64, error)
	// DetachClerk 在前台账号被物理删除时置空指向它的 actor/target 引用，
	// 历史描述字段保留，记录仍然可读
	DetachClerk(ctx context.Context, clerkID string) error
}

// activityLogRepo ActivityLogRepository 的 GORM 实现
type activityLogRepo struct {
	db *gorm.DB
}

// NewActivityLogRepo 创建 ActivityLogRepository 实例
func NewActivityLogRepo(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepo{db: db}
}

func (r *activityLogRepo) Create(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepo) List(ctx context.Context, offset, limit int) ([]model.ActivityLog, int64, error) {
	var entries []model.ActivityLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ActivityLog{})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *activityLogRepo) DetachClerk(ctx context.Context, clerkID string) error {
	if err := r.db.WithContext(ctx).Model(&model.ActivityLog{}).
		Where("actor_id = ?", clerkID).
		Update("actor_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&model.ActivityLog{}).
		Where("target_id = ?", clerkID).
		Update("target_id", nil).Error
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dormdesk/backend/internal/model"
)

// ClerkListFilters 前台账号列表过滤条件
type ClerkListFilters struct {
	Role     string
	IsActive *bool
	Keyword  string
}

// ClerkRepository 前台账号数据访问接口
type ClerkRepository interface {
	Create(ctx context.Context, clerk *model.Clerk) error
	GetByID(ctx context.Context, id string) (*model.Clerk, error)
	GetByEmail(ctx context.Context, email string) (*model.Clerk, error)
	GetByClerkCode(ctx context.Context, code string) (*model.Clerk, error)
	// GetByLoginIdentifier 按邮箱或工号查找，登录入口的双字段歧义收敛在这一处
	GetByLoginIdentifier(ctx context.Context, cred string) (*model.Clerk, error)
	// ConsumableByResetToken 按令牌哈希查找且要求未过期（expires_at > now 严格比较），
	// 把匹配条件放进查询谓词本身，使令牌消费天然单次有效
	ConsumableByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.Clerk, error)
	// ListLapsed 查找邀请/重置窗口已过期但未完成设密的活跃账号（清理任务用）
	ListLapsed(ctx context.Context, now time.Time) ([]model.Clerk, error)
	Update(ctx context.Context, clerk *model.Clerk) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters *ClerkListFilters, offset, limit int) ([]model.Clerk, int64, error)
}

// clerkRepo ClerkRepository 的 GORM 实现
type clerkRepo struct {
	db *gorm.DB
}

// NewClerkRepo 创建 ClerkRepository 实例
func NewClerkRepo(db *gorm.DB) ClerkRepository {
	return &clerkRepo{db: db}
}

func (r *clerkRepo) Create(ctx context.Context, clerk *model.Clerk) error {
	return r.db.WithContext(ctx).Create(clerk).Error
}

func (r *clerkRepo) GetByID(ctx context.Context, id string) (*model.Clerk, error) {
	var clerk model.Clerk
	err := r.db.WithContext(ctx).
		Where("clerk_id = ?", id).
		First(&clerk).Error
	if err != nil {
		return nil, err
	}
	return &clerk, nil
}

func (r *clerkRepo) GetByEmail(ctx context.Context, email string) (*model.Clerk, error) {
	var clerk model.Clerk
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&clerk).Error
	if err != nil {
		return nil, err
	}
	return &clerk, nil
}

func (r *clerkRepo) GetByClerkCode(ctx context.Context, code string) (*model.Clerk, error) {
	var clerk model.Clerk
	err := r.db.WithContext(ctx).
		Where("clerk_code = ?", code).
		First(&clerk).Error
	if err != nil {
		return nil, err
	}
	return &clerk, nil
}

func (r *clerkRepo) GetByLoginIdentifier(ctx context.Context, cred string) (*model.Clerk, error) {
	var clerk model.Clerk
	err := r.db.WithContext(ctx).
		Where("email = ? OR clerk_code = ?", cred, cred).
		First(&clerk).Error
	if err != nil {
		return nil, err
	}
	return &clerk, nil
}

func (r *clerkRepo) ConsumableByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.Clerk, error) {
	var clerk model.Clerk
	err := r.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", tokenHash, now).
		First(&clerk).Error
	if err != nil {
		return nil, err
	}
	return &clerk, nil
}

func (r *clerkRepo) ListLapsed(ctx context.Context, now time.Time) ([]model.Clerk, error) {
	var clerks []model.Clerk
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND reset_token_expires_at < ?", true, now).
		Where("needs_password_reset = ? OR reset_token_hash IS NOT NULL", true).
		Order("created_at ASC").
		Find(&clerks).Error
	if err != nil {
		return nil, err
	}
	return clerks, nil
}

func (r *clerkRepo) Update(ctx context.Context, clerk *model.Clerk) error {
	return r.db.WithContext(ctx).Save(clerk).Error
}

func (r *clerkRepo) Delete(ctx context.Context, id string) error {
	// 物理删除，不可恢复
	return r.db.WithContext(ctx).
		Where("clerk_id = ?", id).
		Delete(&model.Clerk{}).Error
}

func (r *clerkRepo) List(ctx context.Context, filters *ClerkListFilters, offset, limit int) ([]model.Clerk, int64, error) {
	var clerks []model.Clerk
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Clerk{})

	if filters != nil {
		if filters.Role != "" {
			db = db.Where("role = ?", filters.Role)
		}
		if filters.IsActive != nil {
			db = db.Where("is_active = ?", *filters.IsActive)
		}
		if filters.Keyword != "" {
			kw := "%" + filters.Keyword + "%"
			db = db.Where("name ILIKE ? OR email ILIKE ? OR clerk_code LIKE ?", kw, kw, kw)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&clerks).Error; err != nil {
		return nil, 0, err
	}

	return clerks, total, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/dto"
	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/redis"
	"dormdesk/backend/pkg/token"
)

// ── 认证模块业务错误 ──

var (
	// 登录失败统一返回同一条消息，不泄露邮箱是否存在、账号是否停用
	ErrInvalidCredentials = errors.New("账号或密码错误")
	ErrEmailExists        = errors.New("该邮箱已被注册")
	ErrClerkNotFound      = errors.New("前台账号不存在")
	// 令牌无效与过期不做区分，避免泄露状态机内部状态
	ErrResetTokenInvalid = errors.New("链接无效或已过期")
	// 宽限期已过是唯一例外：账号已被暂停，用户需要一个可执行的下一步
	ErrGracePeriodExpired = errors.New("设置密码的宽限期已过，账号已暂停，请联系管理员重新发起邀请")
	ErrPasswordMismatch   = errors.New("两次输入的密码不一致")
	ErrPasswordTooShort   = errors.New("密码长度不足")
	ErrClerkCodeExhausted = errors.New("工号生成失败：重试次数耗尽")
)

// AuthService 认证业务接口
type AuthService interface {
	// Register 自助注册，成功后直接签发会话令牌
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	// Login 邮箱或工号登录
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	// SetPasswordWithToken 凭邮件链接中的一次性令牌设置密码
	SetPasswordWithToken(ctx context.Context, rawToken string, req *dto.SetPasswordRequest) (*dto.TokenResponse, error)
	// Logout 将当前会话令牌加入黑名单
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	// GetCurrent 返回当前登录者的资料子集
	GetCurrent(ctx context.Context, clerkID string) (*dto.ClerkResponse, error)
}

type authService struct {
	cfg      *config.Config
	repo     *repository.Repository
	tokenMgr *token.Manager
	rdb      *redis.Client
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	tokenMgr *token.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:      cfg,
		repo:     repo,
		tokenMgr: tokenMgr,
		rdb:      rdb,
		logger:   logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	if req.Password != req.Password2 {
		return nil, ErrPasswordMismatch
	}
	if len(req.Password) < s.cfg.Auth.PasswordMinLen {
		return nil, ErrPasswordTooShort
	}

	// 1. 邮箱唯一性检查（任何哈希/发号等副作用之前）
	email := normalizeEmail(req.Email)
	if _, err := s.repo.Clerk.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 生成唯一工号
	code, err := s.uniqueClerkCode(ctx)
	if err != nil {
		return nil, err
	}

	// 3. 密码哈希 (bcrypt)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	clerk := &model.Clerk{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		ClerkCode:    code,
		PasswordHash: string(hash),
		Role:         model.RoleClerk,
		IsActive:     true,
	}

	if err := s.repo.Clerk.Create(ctx, clerk); err != nil {
		s.logger.Error("创建前台账号失败", zap.Error(err))
		return nil, err
	}

	recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
		ActorID:     &clerk.ClerkID,
		Action:      model.ActionClerkRegister,
		TargetType:  "clerk",
		TargetID:    &clerk.ClerkID,
		Description: fmt.Sprintf("前台账号 %s（%s）自助注册", clerk.Name, clerk.Email),
	})

	return s.sessionResponse(clerk)
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 工号不含大写字母，统一规范化不影响工号匹配
	cred := normalizeEmail(req.ClerkCred)

	clerk, err := s.repo.Clerk.GetByLoginIdentifier(ctx, cred)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询前台账号失败", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(clerk.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 停用账号即使凭据正确也一律拒绝，且不在消息中区分
	if !clerk.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.sessionResponse(clerk)
}

// ────────────────────── SetPasswordWithToken ──────────────────────

func (s *authService) SetPasswordWithToken(ctx context.Context, rawToken string, req *dto.SetPasswordRequest) (*dto.TokenResponse, error) {
	// 1. 输入校验在任何查库动作之前
	if req.Password == "" || req.Password2 == "" {
		return nil, ErrPasswordMismatch
	}
	if req.Password != req.Password2 {
		return nil, ErrPasswordMismatch
	}
	if len(req.Password) < s.cfg.Auth.PasswordMinLen {
		return nil, ErrPasswordTooShort
	}

	// 2. 按令牌哈希查找，过期判定（now < expires_at 严格）折叠进查询谓词，
	//    单条哈希记录使令牌天然单次有效
	now := time.Now()
	clerk, err := s.repo.Clerk.ConsumableByResetToken(ctx, token.HashResetToken(rawToken), now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenInvalid
		}
		s.logger.Error("按重置令牌查询失败", zap.Error(err))
		return nil, err
	}

	// 3. 宽限期比令牌过期更硬：已过则直接暂停账号
	if clerk.GraceLapsed(now) {
		clerk.IsActive = false
		clerk.NeedsPasswordReset = true
		if err := s.repo.Clerk.Update(ctx, clerk); err != nil {
			s.logger.Error("暂停宽限期已过的账号失败", zap.String("clerk_id", clerk.ClerkID), zap.Error(err))
			return nil, err
		}
		recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
			Action:      model.ActionClerkAutoExpire,
			TargetType:  "clerk",
			TargetID:    &clerk.ClerkID,
			Description: fmt.Sprintf("前台账号 %s（%s）换密宽限期已过，账号已暂停", clerk.Name, clerk.Email),
			Metadata:    map[string]interface{}{"must_change_password_by": clerk.MustChangePasswordBy},
		})
		return nil, ErrGracePeriodExpired
	}

	// 4. 设置新密码并一次性清除令牌三元组
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	clerk.PasswordHash = string(hash)
	clerk.ClearResetToken()
	clerk.NeedsPasswordReset = false
	clerk.IsActive = true

	if err := s.repo.Clerk.Update(ctx, clerk); err != nil {
		s.logger.Error("保存新密码失败", zap.String("clerk_id", clerk.ClerkID), zap.Error(err))
		return nil, err
	}

	recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
		ActorID:     &clerk.ClerkID,
		Action:      model.ActionClerkPasswordSet,
		TargetType:  "clerk",
		TargetID:    &clerk.ClerkID,
		Description: fmt.Sprintf("前台账号 %s（%s）完成密码设置", clerk.Name, clerk.Email),
	})

	// 5. 设密成功直接签发会话令牌，省去一次登录
	return s.sessionResponse(clerk)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.rdb == nil {
		// Redis 不可用时登出降级为客户端丢弃令牌
		s.logger.Warn("Redis 不可用，登出未写入黑名单", zap.String("jti", jti))
		return nil
	}
	return s.rdb.BlacklistToken(ctx, jti, time.Until(expiresAt))
}

// ────────────────────── GetCurrent ──────────────────────

func (s *authService) GetCurrent(ctx context.Context, clerkID string) (*dto.ClerkResponse, error) {
	clerk, err := s.repo.Clerk.GetByID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClerkNotFound
		}
		s.logger.Error("查询前台账号失败", zap.String("clerk_id", clerkID), zap.Error(err))
		return nil, err
	}

	return toClerkResponse(clerk), nil
}

// ── 内部辅助方法 ──

// uniqueClerkCode 生成全局唯一工号：随机抽取并查重，带上限重试
// 上限兜底避免号段接近耗尽时演变成活锁
const maxClerkCodeAttempts = 20

func (s *authService) uniqueClerkCode(ctx context.Context) (string, error) {
	return uniqueClerkCode(ctx, s.repo)
}

func uniqueClerkCode(ctx context.Context, repo *repository.Repository) (string, error) {
	for i := 0; i < maxClerkCodeAttempts; i++ {
		code, err := generateClerkCode()
		if err != nil {
			return "", err
		}
		_, err = repo.Clerk.GetByClerkCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		// 撞号，重试
	}
	return "", ErrClerkCodeExhausted
}

// sessionResponse 签发会话令牌并构造响应
func (s *authService) sessionResponse(clerk *model.Clerk) (*dto.TokenResponse, error) {
	sessionToken, err := s.tokenMgr.IssueSessionToken(clerk.ClerkID)
	if err != nil {
		s.logger.Error("签发会话令牌失败", zap.String("clerk_id", clerk.ClerkID), zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		SessionToken: sessionToken,
		ExpiresIn:    int(s.tokenMgr.SessionTTL().Seconds()),
		Clerk:        *toClerkResponse(clerk),
	}, nil
}

// toClerkResponse 将 model.Clerk 转换为 dto.ClerkResponse
func toClerkResponse(clerk *model.Clerk) *dto.ClerkResponse {
	return &dto.ClerkResponse{
		ID:                 clerk.ClerkID,
		Name:               clerk.Name,
		Email:              clerk.Email,
		ClerkCode:          clerk.ClerkCode,
		Role:               clerk.Role,
		IsActive:           clerk.IsActive,
		NeedsPasswordReset: clerk.NeedsPasswordReset,
		CreatedAt:          clerk.CreatedAt.Format(time.RFC3339),
	}
}

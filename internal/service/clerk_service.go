package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/dto"
	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/mailer"
	"dormdesk/backend/pkg/token"
)

// ── 前台账号管理业务错误 ──

var (
	ErrSelfModification = errors.New("不能启停自己的账号")
	ErrProtectedAccount = errors.New("超级管理员账号受保护，不可删除")
)

// ClerkService 前台账号生命周期管理接口（管理员侧）
//
// 状态机：Invited（已建号、令牌未消费、密码未设置）→ Active（密码已设置）
// → Paused（管理员停用或清理任务自动停用）→ Deleted（物理删除，终态）
type ClerkService interface {
	// Invite 管理员邀请：建号 + 临时密码 + 一次性设密链接
	Invite(ctx context.Context, req *dto.InviteClerkRequest, actorID string) (*dto.ClerkResponse, error)
	// ResetPassword 管理员重置：对既有账号重新走一遍邀请的发令牌流程
	ResetPassword(ctx context.Context, id string, actorID string) error
	// SetStatus 启停账号
	SetStatus(ctx context.Context, id string, req *dto.SetStatusRequest, actorID string) (*dto.ClerkResponse, error)
	// Delete 物理删除账号（不可恢复）
	Delete(ctx context.Context, id string, actorID string) error
	// List 分页查询
	List(ctx context.Context, req *dto.ClerkListRequest) ([]dto.ClerkResponse, int64, error)
}

type clerkService struct {
	cfg      *config.Config
	repo     *repository.Repository
	tokenMgr *token.Manager
	mail     mailer.Mailer
	logger   *zap.Logger
}

// NewClerkService 创建 ClerkService 实例
func NewClerkService(
	cfg *config.Config,
	repo *repository.Repository,
	tokenMgr *token.Manager,
	mail mailer.Mailer,
	logger *zap.Logger,
) ClerkService {
	return &clerkService{
		cfg:      cfg,
		repo:     repo,
		tokenMgr: tokenMgr,
		mail:     mail,
		logger:   logger,
	}
}

// ────────────────────── Invite ──────────────────────

func (s *clerkService) Invite(ctx context.Context, req *dto.InviteClerkRequest, actorID string) (*dto.ClerkResponse, error) {
	// 1. 邮箱唯一性检查（任何哈希/发令牌等副作用之前）
	email := normalizeEmail(req.Email)
	if _, err := s.repo.Clerk.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 生成唯一工号
	code, err := uniqueClerkCode(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	// 3. 临时密码 + 一次性设密令牌（窗口与宽限期同源，默认 3 天）
	tempPassword, err := generateTempPassword(10)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	resetToken, err := token.IssueResetToken(s.cfg.Auth.InviteWindow)
	if err != nil {
		s.logger.Error("生成重置令牌失败", zap.Error(err))
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleClerk
	}

	clerk := &model.Clerk{
		Name:               strings.TrimSpace(req.Name),
		Email:              email,
		ClerkCode:          code,
		PasswordHash:       string(hash),
		Role:               role,
		IsActive:           true,
		NeedsPasswordReset: true,
	}
	clerk.SetResetToken(resetToken.Hash, resetToken.ExpiresAt)
	clerk.MustChangePasswordBy = &resetToken.ExpiresAt

	if err := s.repo.Clerk.Create(ctx, clerk); err != nil {
		s.logger.Error("创建前台账号失败", zap.Error(err))
		return nil, err
	}

	recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
		ActorID:     &actorID,
		Action:      model.ActionClerkInvite,
		TargetType:  "clerk",
		TargetID:    &clerk.ClerkID,
		Description: fmt.Sprintf("邀请前台账号 %s（%s），设密截止 %s", clerk.Name, clerk.Email, resetToken.ExpiresAt.Format("2006-01-02 15:04")),
		Metadata:    map[string]interface{}{"role": role, "clerk_code": code},
	})

	// 4. 状态已落库后异步投递邀请邮件，投递失败不影响本次请求结果
	s.sendCredentialMail(clerk, tempPassword, resetToken.Raw, "【宿舍前台】账号邀请")

	// 响应不携带临时密码，临时密码只出现在邮件里
	return toClerkResponse(clerk), nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *clerkService) ResetPassword(ctx context.Context, id string, actorID string) error {
	clerk, err := s.repo.Clerk.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClerkNotFound
		}
		s.logger.Error("查询前台账号失败", zap.String("clerk_id", id), zap.Error(err))
		return err
	}

	// 重置默认重新激活账号：停用状态下重置视为管理员有意恢复，记警告留痕
	if !clerk.IsActive {
		s.logger.Warn("对停用账号执行密码重置，将强制重新激活",
			zap.String("clerk_id", clerk.ClerkID),
			zap.String("email", clerk.Email),
		)
	}

	tempPassword, err := generateTempPassword(10)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}

	resetToken, err := token.IssueResetToken(s.cfg.Auth.InviteWindow)
	if err != nil {
		s.logger.Error("生成重置令牌失败", zap.Error(err))
		return err
	}

	clerk.PasswordHash = string(hash)
	clerk.SetResetToken(resetToken.Hash, resetToken.ExpiresAt)
	clerk.MustChangePasswordBy = &resetToken.ExpiresAt
	clerk.NeedsPasswordReset = true
	clerk.IsActive = true

	if err := s.repo.Clerk.Update(ctx, clerk); err != nil {
		s.logger.Error("保存密码重置失败", zap.String("clerk_id", id), zap.Error(err))
		return err
	}

	recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
		ActorID:     &actorID,
		Action:      model.ActionClerkResetIssue,
		TargetType:  "clerk",
		TargetID:    &clerk.ClerkID,
		Description: fmt.Sprintf("重置前台账号 %s（%s）的密码，设密截止 %s", clerk.Name, clerk.Email, resetToken.ExpiresAt.Format("2006-01-02 15:04")),
	})

	s.sendCredentialMail(clerk, tempPassword, resetToken.Raw, "【宿舍前台】密码重置")

	return nil
}

// ────────────────────── SetStatus ──────────────────────

func (s *clerkService) SetStatus(ctx context.Context, id string, req *dto.SetStatusRequest, actorID string) (*dto.ClerkResponse, error) {
	// 管理员不能停用自己，防止把自己锁在门外
	if id == actorID {
		return nil, ErrSelfModification
	}

	clerk, err := s.repo.Clerk.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClerkNotFound
		}
		s.logger.Error("查询前台账号失败", zap.String("clerk_id", id), zap.Error(err))
		return nil, err
	}

	clerk.IsActive = *req.IsActive

	if err := s.repo.Clerk.Update(ctx, clerk); err != nil {
		s.logger.Error("更新账号状态失败", zap.String("clerk_id", id), zap.Error(err))
		return nil, err
	}

	verb := "停用"
	if clerk.IsActive {
		verb = "启用"
	}
	recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
		ActorID:     &actorID,
		Action:      model.ActionClerkStatusChange,
		TargetType:  "clerk",
		TargetID:    &clerk.ClerkID,
		Description: fmt.Sprintf("%s前台账号 %s（%s）", verb, clerk.Name, clerk.Email),
		Metadata:    map[string]interface{}{"is_active": clerk.IsActive, "reason": req.Reason},
	})

	return toClerkResponse(clerk), nil
}

// ────────────────────── Delete ──────────────────────

func (s *clerkService) Delete(ctx context.Context, id string, actorID string) error {
	clerk, err := s.repo.Clerk.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClerkNotFound
		}
		s.logger.Error("查询前台账号失败", zap.String("clerk_id", id), zap.Error(err))
		return err
	}

	if clerk.IsRoot {
		return ErrProtectedAccount
	}

	// 先置空历史审计记录中指向该账号的引用，描述字段保留可读性
	if err := s.repo.ActivityLog.DetachClerk(ctx, id); err != nil {
		s.logger.Error("置空审计引用失败", zap.String("clerk_id", id), zap.Error(err))
		return err
	}

	if err := s.repo.Clerk.Delete(ctx, id); err != nil {
		s.logger.Error("删除前台账号失败", zap.String("clerk_id", id), zap.Error(err))
		return err
	}

	// 记录本身不再指向已删除的账号，身份信息进描述
	recordActivity(ctx, s.repo, s.logger, &model.ActivityLog{
		ActorID:     &actorID,
		Action:      model.ActionClerkDelete,
		TargetType:  "clerk",
		Description: fmt.Sprintf("删除前台账号 %s（%s，工号 %s）", clerk.Name, clerk.Email, clerk.ClerkCode),
		Metadata:    map[string]interface{}{"clerk_code": clerk.ClerkCode, "role": clerk.Role},
	})

	return nil
}

// ────────────────────── List ──────────────────────

func (s *clerkService) List(ctx context.Context, req *dto.ClerkListRequest) ([]dto.ClerkResponse, int64, error) {
	filters := &repository.ClerkListFilters{
		Role:     req.Role,
		IsActive: req.IsActive,
		Keyword:  req.Keyword,
	}

	clerks, total, err := s.repo.Clerk.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出前台账号失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ClerkResponse, 0, len(clerks))
	for i := range clerks {
		result = append(result, *toClerkResponse(&clerks[i]))
	}

	return result, total, nil
}

// ── 内部辅助方法 ──

// sendCredentialMail 投递携带临时密码与一次性设密链接的邮件
// Mailer 为 nil（邮件未启用）时只记日志
func (s *clerkService) sendCredentialMail(clerk *model.Clerk, tempPassword, rawToken, subject string) {
	link := fmt.Sprintf("%s/set-password/%s", strings.TrimRight(s.cfg.Server.BaseURL, "/"), rawToken)

	if s.mail == nil {
		// 原始令牌不进日志，只记链接已生成这一事实
		s.logger.Info("邮件未启用，跳过投递", zap.String("to", clerk.Email), zap.String("subject", subject))
		return
	}

	body := fmt.Sprintf(
		`<p>%s 您好：</p>
<p>您的宿舍前台账号已就绪，工号 <b>%s</b>，临时密码 <b>%s</b>。</p>
<p>请在 <b>%s</b> 前点击以下链接设置正式密码，逾期账号将被暂停：</p>
<p><a href="%s">%s</a></p>`,
		clerk.Name, clerk.ClerkCode, tempPassword,
		clerk.MustChangePasswordBy.Format("2006-01-02 15:04"),
		link, link,
	)

	s.mail.Enqueue(mailer.Message{
		To:      clerk.Email,
		Subject: subject,
		Body:    body,
	})
}

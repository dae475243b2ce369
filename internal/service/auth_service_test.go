package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/dto"
	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/token"
)

// ── 测试辅助 ──

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:8080"},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-0123456789abcdef",
			SessionTokenTTL: time.Hour,
			InviteWindow:    72 * time.Hour,
			PasswordMinLen:  8,
		},
	}
}

func newTestEnv() (*config.Config, *repository.Repository, *mockClerkRepo, *mockActivityLogRepo, *token.Manager) {
	cfg := testConfig()
	clerkRepo := newMockClerkRepo()
	logRepo := newMockActivityLogRepo()
	repo := &repository.Repository{Clerk: clerkRepo, ActivityLog: logRepo}
	tokenMgr := token.NewManager(&cfg.Auth)
	return cfg, repo, clerkRepo, logRepo, tokenMgr
}

func newTestAuthService() (AuthService, *mockClerkRepo, *mockActivityLogRepo, *token.Manager) {
	cfg, repo, clerkRepo, logRepo, tokenMgr := newTestEnv()
	svc := NewAuthService(cfg, repo, tokenMgr, nil, zap.NewNop())
	return svc, clerkRepo, logRepo, tokenMgr
}

// seedClerk 直接向 mock 仓库写入一个已设密的活跃账号
func seedClerk(t *testing.T, repo *mockClerkRepo, name, email, code, password string) *model.Clerk {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	clerk := &model.Clerk{
		Name:         name,
		Email:        email,
		ClerkCode:    code,
		PasswordHash: string(hash),
		Role:         model.RoleClerk,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), clerk); err != nil {
		t.Fatalf("seed clerk: %v", err)
	}
	return clerk
}

// ── Register ──

func TestAuthService_Register_Success(t *testing.T) {
	svc, clerkRepo, logRepo, tokenMgr := newTestAuthService()

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name:      "张三",
		Email:     "  Zhang.San@Example.COM ",
		Password:  "Passw0rd123",
		Password2: "Passw0rd123",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// 邮箱已规范化
	if resp.Clerk.Email != "zhang.san@example.com" {
		t.Errorf("expected normalized email, got %q", resp.Clerk.Email)
	}
	// 工号为 6 位数字
	if len(resp.Clerk.ClerkCode) != 6 {
		t.Errorf("expected 6-digit clerk code, got %q", resp.Clerk.ClerkCode)
	}
	// 会话令牌可验证且指向新账号
	claims, err := tokenMgr.VerifySessionToken(resp.SessionToken)
	if err != nil {
		t.Fatalf("session token not verifiable: %v", err)
	}
	if claims.ClerkID != resp.Clerk.ID {
		t.Errorf("token clerk_id = %q, want %q", claims.ClerkID, resp.Clerk.ID)
	}
	// 明文密码未落库
	stored, _ := clerkRepo.GetByID(context.Background(), resp.Clerk.ID)
	if stored.PasswordHash == "Passw0rd123" {
		t.Error("password stored in clear text")
	}
	// 产生注册审计记录
	if len(logRepo.byAction(model.ActionClerkRegister)) != 1 {
		t.Errorf("expected 1 register audit entry, got %d", len(logRepo.byAction(model.ActionClerkRegister)))
	}
}

func TestAuthService_Register_PasswordMismatch(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name:      "张三",
		Email:     "a@example.com",
		Password:  "Passw0rd123",
		Password2: "Different123",
	})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	// 校验失败必须发生在任何副作用之前
	if len(clerkRepo.clerks) != 0 {
		t.Error("no clerk should be created on validation failure")
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()
	seedClerk(t, clerkRepo, "李四", "dup@example.com", "100001", "Passw0rd123")

	// 大小写/首尾空白不敏感
	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name:      "王五",
		Email:     " DUP@Example.com ",
		Password:  "Passw0rd123",
		Password2: "Passw0rd123",
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if len(clerkRepo.clerks) != 1 {
		t.Errorf("expected 1 clerk, got %d", len(clerkRepo.clerks))
	}
}

// ── Login ──

func TestAuthService_Login_ByEmailAndByCode(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()
	seedClerk(t, clerkRepo, "张三", "zhang@example.com", "100001", "Passw0rd123")

	for _, cred := range []string{"zhang@example.com", "100001"} {
		resp, err := svc.Login(context.Background(), &dto.LoginRequest{
			ClerkCred: cred,
			Password:  "Passw0rd123",
		})
		if err != nil {
			t.Fatalf("login with %q failed: %v", cred, err)
		}
		if resp.SessionToken == "" {
			t.Errorf("login with %q returned empty session token", cred)
		}
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()
	seedClerk(t, clerkRepo, "张三", "zhang@example.com", "100001", "Passw0rd123")

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		ClerkCred: "zhang@example.com",
		Password:  "WrongPass123",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownAndInactiveSameError(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()
	clerk := seedClerk(t, clerkRepo, "张三", "zhang@example.com", "100001", "Passw0rd123")

	// 账号不存在
	_, errUnknown := svc.Login(context.Background(), &dto.LoginRequest{
		ClerkCred: "nobody@example.com",
		Password:  "Passw0rd123",
	})

	// 账号停用，凭据正确
	clerk.IsActive = false
	if err := clerkRepo.Update(context.Background(), clerk); err != nil {
		t.Fatal(err)
	}
	_, errInactive := svc.Login(context.Background(), &dto.LoginRequest{
		ClerkCred: "zhang@example.com",
		Password:  "Passw0rd123",
	})

	// 两种失败对外是同一个错误，不泄露账号状态
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errInactive, ErrInvalidCredentials) {
		t.Fatalf("expected identical generic errors, got %v / %v", errUnknown, errInactive)
	}
}

// ── SetPasswordWithToken ──

// seedInvitedClerk 写入一个携带未消费重置令牌的账号，返回原始令牌
func seedInvitedClerk(t *testing.T, repo *mockClerkRepo, email string, window time.Duration) (*model.Clerk, string) {
	t.Helper()
	rt, err := token.IssueResetToken(window)
	if err != nil {
		t.Fatalf("issue reset token: %v", err)
	}
	clerk := &model.Clerk{
		Name:               "新人",
		Email:              email,
		ClerkCode:          "200001",
		PasswordHash:       "$2a$04$placeholderplaceholderplace",
		Role:               model.RoleClerk,
		IsActive:           true,
		NeedsPasswordReset: true,
	}
	clerk.SetResetToken(rt.Hash, rt.ExpiresAt)
	clerk.MustChangePasswordBy = &rt.ExpiresAt
	if err := repo.Create(context.Background(), clerk); err != nil {
		t.Fatalf("seed invited clerk: %v", err)
	}
	return clerk, rt.Raw
}

func TestAuthService_SetPassword_RoundTrip(t *testing.T) {
	svc, clerkRepo, logRepo, tokenMgr := newTestAuthService()
	clerk, raw := seedInvitedClerk(t, clerkRepo, "new@example.com", 72*time.Hour)

	resp, err := svc.SetPasswordWithToken(context.Background(), raw, &dto.SetPasswordRequest{
		Password:  "FreshPass1",
		Password2: "FreshPass1",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// 令牌三元组已清除，标志位复位
	stored, _ := clerkRepo.GetByID(context.Background(), clerk.ClerkID)
	if stored.ResetTokenHash != nil || stored.ResetTokenExpiresAt != nil || stored.MustChangePasswordBy != nil {
		t.Error("reset token fields should be cleared after consumption")
	}
	if stored.NeedsPasswordReset {
		t.Error("needs_password_reset should be false")
	}
	if !stored.IsActive {
		t.Error("clerk should be active")
	}
	// 新密码生效
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("FreshPass1")) != nil {
		t.Error("new password does not verify")
	}
	// 设密成功即已认证
	if _, err := tokenMgr.VerifySessionToken(resp.SessionToken); err != nil {
		t.Errorf("session token not verifiable: %v", err)
	}
	if len(logRepo.byAction(model.ActionClerkPasswordSet)) != 1 {
		t.Error("expected 1 password_set audit entry")
	}

	// 单次有效：同一令牌再次使用必然失败
	_, err = svc.SetPasswordWithToken(context.Background(), raw, &dto.SetPasswordRequest{
		Password:  "FreshPass1",
		Password2: "FreshPass1",
	})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid on reuse, got %v", err)
	}
}

func TestAuthService_SetPassword_ValidationBeforeLookup(t *testing.T) {
	svc, _, _, _ := newTestAuthService()

	// 密码不一致：令牌根本不该被查
	_, err := svc.SetPasswordWithToken(context.Background(), "whatever", &dto.SetPasswordRequest{
		Password:  "FreshPass1",
		Password2: "Other12345",
	})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	_, err = svc.SetPasswordWithToken(context.Background(), "whatever", &dto.SetPasswordRequest{
		Password:  "short",
		Password2: "short",
	})
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestAuthService_SetPassword_ExpiredExactlyAtBoundary(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()
	// 过期时刻恰好等于当前时刻：expires_at > now 不成立，视为已过期
	clerk, raw := seedInvitedClerk(t, clerkRepo, "boundary@example.com", 0)
	_ = clerk

	_, err := svc.SetPasswordWithToken(context.Background(), raw, &dto.SetPasswordRequest{
		Password:  "FreshPass1",
		Password2: "FreshPass1",
	})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid at exact expiry, got %v", err)
	}
}

func TestAuthService_SetPassword_GraceLapsedPausesAccount(t *testing.T) {
	svc, clerkRepo, logRepo, _ := newTestAuthService()
	clerk, raw := seedInvitedClerk(t, clerkRepo, "late@example.com", 72*time.Hour)

	// 令牌仍然有效，但宽限期已过（管理员延长过令牌窗口的场景）
	past := time.Now().Add(-time.Hour)
	clerk.MustChangePasswordBy = &past
	if err := clerkRepo.Update(context.Background(), clerk); err != nil {
		t.Fatal(err)
	}

	// 提交的密码本身完全合法，结果仍然是账号暂停
	_, err := svc.SetPasswordWithToken(context.Background(), raw, &dto.SetPasswordRequest{
		Password:  "FreshPass1",
		Password2: "FreshPass1",
	})
	if !errors.Is(err, ErrGracePeriodExpired) {
		t.Fatalf("expected ErrGracePeriodExpired, got %v", err)
	}

	stored, _ := clerkRepo.GetByID(context.Background(), clerk.ClerkID)
	if stored.IsActive {
		t.Error("account should be paused after grace lapse")
	}
	if !stored.NeedsPasswordReset {
		t.Error("needs_password_reset should stay true")
	}
	// 系统侧审计（无操作者）
	entries := logRepo.byAction(model.ActionClerkAutoExpire)
	if len(entries) != 1 || entries[0].ActorID != nil {
		t.Errorf("expected 1 system audit entry with nil actor, got %+v", entries)
	}
}

// ── Token pair 不变量 ──

func TestClerk_ResetTokenPairInvariant(t *testing.T) {
	svc, clerkRepo, _, _ := newTestAuthService()
	clerk, raw := seedInvitedClerk(t, clerkRepo, "pair@example.com", 72*time.Hour)

	// 设置后两个字段同时非空
	stored, _ := clerkRepo.GetByID(context.Background(), clerk.ClerkID)
	if (stored.ResetTokenHash == nil) != (stored.ResetTokenExpiresAt == nil) {
		t.Fatal("hash and expiry must be set together")
	}

	// 消费后两个字段同时为空
	if _, err := svc.SetPasswordWithToken(context.Background(), raw, &dto.SetPasswordRequest{
		Password:  "FreshPass1",
		Password2: "FreshPass1",
	}); err != nil {
		t.Fatal(err)
	}
	stored, _ = clerkRepo.GetByID(context.Background(), clerk.ClerkID)
	if (stored.ResetTokenHash == nil) != (stored.ResetTokenExpiresAt == nil) {
		t.Fatal("hash and expiry must be cleared together")
	}
}

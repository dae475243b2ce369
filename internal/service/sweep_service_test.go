package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
)

func newTestSweepService() (SweepService, *mockClerkRepo, *mockActivityLogRepo) {
	clerkRepo := newMockClerkRepo()
	logRepo := newMockActivityLogRepo()
	repo := &repository.Repository{Clerk: clerkRepo, ActivityLog: logRepo}
	return NewSweepService(repo, zap.NewNop()), clerkRepo, logRepo
}

// seedLapsedClerk 写入一个邀请窗口已过、始终未设密的活跃账号
func seedLapsedClerk(t *testing.T, repo *mockClerkRepo, email string) *model.Clerk {
	t.Helper()
	expired := time.Now().Add(-24 * time.Hour)
	hash := "deadbeef"
	clerk := &model.Clerk{
		Name:                 "过期邀请",
		Email:                email,
		ClerkCode:            fmt.Sprintf("30%04d", len(repo.clerks)+1),
		PasswordHash:         "$2a$04$placeholderplaceholderplace",
		Role:                 model.RoleClerk,
		IsActive:             true,
		NeedsPasswordReset:   true,
		ResetTokenHash:       &hash,
		ResetTokenExpiresAt:  &expired,
		MustChangePasswordBy: &expired,
	}
	if err := repo.Create(context.Background(), clerk); err != nil {
		t.Fatalf("seed lapsed clerk: %v", err)
	}
	return clerk
}

func TestSweepService_Run_DeactivatesLapsedOnly(t *testing.T) {
	svc, clerkRepo, logRepo := newTestSweepService()

	lapsed := []*model.Clerk{
		seedLapsedClerk(t, clerkRepo, "l1@example.com"),
		seedLapsedClerk(t, clerkRepo, "l2@example.com"),
		seedLapsedClerk(t, clerkRepo, "l3@example.com"),
	}
	// 健康账号：已设密的活跃账号、窗口未过的受邀账号，均不受影响
	healthy := seedClerk(t, clerkRepo, "健康", "ok@example.com", "100001", "Passw0rd123")
	pending, _ := seedInvitedClerk(t, clerkRepo, "pending@example.com", 72*time.Hour)

	count, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 deactivated, got %d", count)
	}

	for _, c := range lapsed {
		stored, _ := clerkRepo.GetByID(context.Background(), c.ClerkID)
		if stored.IsActive {
			t.Errorf("lapsed clerk %s should be deactivated", c.Email)
		}
		if !stored.NeedsPasswordReset {
			t.Errorf("lapsed clerk %s should keep needs_password_reset", c.Email)
		}
	}
	for _, c := range []*model.Clerk{healthy, pending} {
		stored, _ := clerkRepo.GetByID(context.Background(), c.ClerkID)
		if !stored.IsActive {
			t.Errorf("healthy clerk %s must not be touched", c.Email)
		}
	}

	// 系统侧审计：每条一笔，无操作者
	entries := logRepo.byAction(model.ActionClerkAutoExpire)
	if len(entries) != 3 {
		t.Fatalf("expected 3 auto_expire audit entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ActorID != nil {
			t.Error("system sweep entries must have nil actor")
		}
		if e.TargetID == nil {
			t.Error("sweep entries should reference the deactivated clerk")
		}
	}
}

func TestSweepService_Run_Idempotent(t *testing.T) {
	svc, clerkRepo, _ := newTestSweepService()
	seedLapsedClerk(t, clerkRepo, "l1@example.com")
	seedLapsedClerk(t, clerkRepo, "l2@example.com")

	first, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first != 2 {
		t.Fatalf("first run: expected 2, got %d", first)
	}

	// 已停用的账号不再命中查询条件，第二轮必然为 0
	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second != 0 {
		t.Fatalf("second run: expected 0, got %d", second)
	}
}

func TestSweepService_Run_SingleFailureDoesNotAbort(t *testing.T) {
	svc, clerkRepo, _ := newTestSweepService()
	bad := seedLapsedClerk(t, clerkRepo, "bad@example.com")
	seedLapsedClerk(t, clerkRepo, "ok1@example.com")
	seedLapsedClerk(t, clerkRepo, "ok2@example.com")
	clerkRepo.failUpdateFor[bad.ClerkID] = true

	count, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("a single bad record must not fail the whole run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deactivated despite one failure, got %d", count)
	}

	// 失败那条保持原状，等下一轮重试
	stored, _ := clerkRepo.GetByID(context.Background(), bad.ClerkID)
	if !stored.IsActive {
		t.Error("failed record should be left untouched")
	}
}

func TestSweepService_Run_AuditFailureDoesNotAbort(t *testing.T) {
	svc, clerkRepo, logRepo := newTestSweepService()
	seedLapsedClerk(t, clerkRepo, "l1@example.com")
	logRepo.failCreate = true

	// 审计写入尽力而为：失败只记日志，停用照常生效
	count, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("audit failure must not fail the sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 deactivated, got %d", count)
	}
}

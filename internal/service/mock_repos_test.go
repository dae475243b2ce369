package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dormdesk/backend/internal/model"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/pkg/mailer"
)

// ── Mock ClerkRepository ──

type mockClerkRepo struct {
	clerks map[string]*model.Clerk // key: clerk_id
	seq    int
	// failUpdateFor 模拟指定账号的写入失败（清理任务的单条隔离测试用）
	failUpdateFor map[string]bool
}

func newMockClerkRepo() *mockClerkRepo {
	return &mockClerkRepo{
		clerks:        make(map[string]*model.Clerk),
		failUpdateFor: make(map[string]bool),
	}
}

func (m *mockClerkRepo) Create(_ context.Context, clerk *model.Clerk) error {
	if clerk.ClerkID == "" {
		m.seq++
		clerk.ClerkID = fmt.Sprintf("clerk-%d", m.seq)
	}
	if clerk.CreatedAt.IsZero() {
		clerk.CreatedAt = time.Now()
	}
	cp := *clerk
	m.clerks[clerk.ClerkID] = &cp
	return nil
}

func (m *mockClerkRepo) GetByID(_ context.Context, id string) (*model.Clerk, error) {
	if c, ok := m.clerks[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClerkRepo) GetByEmail(_ context.Context, email string) (*model.Clerk, error) {
	for _, c := range m.clerks {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClerkRepo) GetByClerkCode(_ context.Context, code string) (*model.Clerk, error) {
	for _, c := range m.clerks {
		if c.ClerkCode == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClerkRepo) GetByLoginIdentifier(_ context.Context, cred string) (*model.Clerk, error) {
	for _, c := range m.clerks {
		if c.Email == cred || c.ClerkCode == cred {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClerkRepo) ConsumableByResetToken(_ context.Context, tokenHash string, now time.Time) (*model.Clerk, error) {
	for _, c := range m.clerks {
		// 严格 expires_at > now：恰好等于过期时刻视为已过期
		if c.ResetTokenHash != nil && *c.ResetTokenHash == tokenHash &&
			c.ResetTokenExpiresAt != nil && c.ResetTokenExpiresAt.After(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClerkRepo) ListLapsed(_ context.Context, now time.Time) ([]model.Clerk, error) {
	var result []model.Clerk
	for _, c := range m.clerks {
		if !c.IsActive {
			continue
		}
		if c.ResetTokenExpiresAt == nil || !c.ResetTokenExpiresAt.Before(now) {
			continue
		}
		if !c.NeedsPasswordReset && c.ResetTokenHash == nil {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (m *mockClerkRepo) Update(_ context.Context, clerk *model.Clerk) error {
	if m.failUpdateFor[clerk.ClerkID] {
		return fmt.Errorf("模拟写入失败: %s", clerk.ClerkID)
	}
	cp := *clerk
	m.clerks[clerk.ClerkID] = &cp
	return nil
}

func (m *mockClerkRepo) Delete(_ context.Context, id string) error {
	delete(m.clerks, id)
	return nil
}

func (m *mockClerkRepo) List(_ context.Context, filters *repository.ClerkListFilters, offset, limit int) ([]model.Clerk, int64, error) {
	var all []model.Clerk
	for _, c := range m.clerks {
		if filters != nil {
			if filters.Role != "" && c.Role != filters.Role {
				continue
			}
			if filters.IsActive != nil && c.IsActive != *filters.IsActive {
				continue
			}
		}
		all = append(all, *c)
	}
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock ActivityLogRepository ──

type mockActivityLogRepo struct {
	entries    []model.ActivityLog
	failCreate bool
}

func newMockActivityLogRepo() *mockActivityLogRepo {
	return &mockActivityLogRepo{}
}

func (m *mockActivityLogRepo) Create(_ context.Context, entry *model.ActivityLog) error {
	if m.failCreate {
		return fmt.Errorf("模拟审计写入失败")
	}
	cp := *entry
	if cp.LogID == "" {
		cp.LogID = fmt.Sprintf("log-%d", len(m.entries)+1)
	}
	m.entries = append(m.entries, cp)
	return nil
}

func (m *mockActivityLogRepo) List(_ context.Context, offset, limit int) ([]model.ActivityLog, int64, error) {
	return m.entries, int64(len(m.entries)), nil
}

func (m *mockActivityLogRepo) DetachClerk(_ context.Context, clerkID string) error {
	for i := range m.entries {
		if m.entries[i].ActorID != nil && *m.entries[i].ActorID == clerkID {
			m.entries[i].ActorID = nil
		}
		if m.entries[i].TargetID != nil && *m.entries[i].TargetID == clerkID {
			m.entries[i].TargetID = nil
		}
	}
	return nil
}

// byAction 按动作类型过滤审计记录
func (m *mockActivityLogRepo) byAction(action string) []model.ActivityLog {
	var result []model.ActivityLog
	for _, e := range m.entries {
		if e.Action == action {
			result = append(result, e)
		}
	}
	return result
}

// ── Mock Mailer ──

type mockMailer struct {
	sent []mailer.Message
}

func (m *mockMailer) Enqueue(msg mailer.Message) {
	m.sent = append(m.sent, msg)
}

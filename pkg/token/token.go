package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dormdesk/backend/config"
)

var (
	ErrTokenExpired = errors.New("会话令牌已过期")
	ErrTokenInvalid = errors.New("会话令牌无效")
)

// SessionClaims 会话令牌声明
// 负载只携带账号 ID：角色、启用状态等都在每次请求时重新查库确认，
// 避免令牌签发后的权限变更被旧令牌绕过
type SessionClaims struct {
	ClerkID string `json:"clerk_id"`
	jwtv5.RegisteredClaims
}

// Manager 会话令牌管理器（HS256 签名）
type Manager struct {
	secret     []byte
	sessionTTL time.Duration
}

// NewManager 创建令牌管理器
// 签名密钥的存在性已由 config.Validate 在启动阶段保证
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		sessionTTL: cfg.SessionTokenTTL,
	}
}

// SessionTTL 返回会话令牌有效期
func (m *Manager) SessionTTL() time.Duration {
	return m.sessionTTL
}

// IssueSessionToken 签发会话令牌
func (m *Manager) IssueSessionToken(clerkID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		ClerkID: clerkID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.sessionTTL)),
			Issuer:    "dormdesk",
		},
	}

	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// VerifySessionToken 解析并验证会话令牌
func (m *Manager) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	tok, err := jwtv5.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// ── 一次性重置令牌 ──

// ResetToken 一次性重置令牌
// Raw 只出现在发给用户的邮件链接里，落库和日志一律使用 Hash
type ResetToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

const resetTokenBytes = 32

// IssueResetToken 生成一次性重置令牌
// 原始值为 32 字节密码学随机数；存储侧使用 sha256 而非 bcrypt，
// 因为输入本身已是高熵随机值，且需要按哈希精确匹配查找
func IssueResetToken(window time.Duration) (*ResetToken, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("生成重置令牌失败: %w", err)
	}

	raw := hex.EncodeToString(buf)
	return &ResetToken{
		Raw:       raw,
		Hash:      HashResetToken(raw),
		ExpiresAt: time.Now().Add(window),
	}, nil
}

// HashResetToken 计算重置令牌的存储哈希（sha256 十六进制）
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

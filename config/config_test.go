package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
		Auth: AuthConfig{
			JWTSecret:       "test-secret-0123456789abcdef",
			SessionTokenTTL: 168 * time.Hour,
			InviteWindow:    72 * time.Hour,
			PasswordMinLen:  8,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfig_Validate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"空签名密钥", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"签名密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"缺少 BaseURL", func(c *Config) { c.Server.BaseURL = "" }, "base_url"},
		{"会话有效期非正", func(c *Config) { c.Auth.SessionTokenTTL = 0 }, "session_token_ttl"},
		{"邀请窗口非正", func(c *Config) { c.Auth.InviteWindow = -time.Hour }, "invite_window"},
		{"密码下限过低", func(c *Config) { c.Auth.PasswordMinLen = 4 }, "password_min_len"},
		{"启用邮件但无 SMTP 主机", func(c *Config) { c.Mail.Enabled = true }, "smtp_host"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DORMDESK_AUTH_JWT_SECRET", "test-secret-0123456789abcdef")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with defaults: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.InviteWindow != 72*time.Hour {
		t.Errorf("default invite window = %v, want 72h", cfg.Auth.InviteWindow)
	}
	if cfg.Auth.SessionTokenTTL != 168*time.Hour {
		t.Errorf("default session ttl = %v, want 168h", cfg.Auth.SessionTokenTTL)
	}
	if !cfg.Sweep.Enabled || cfg.Sweep.Schedule != "0 3 * * *" {
		t.Errorf("unexpected sweep defaults: %+v", cfg.Sweep)
	}
}

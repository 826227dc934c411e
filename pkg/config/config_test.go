package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromMapAppliesDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"JWT_SECRET":         "access-secret",
		"JWT_REFRESH_SECRET": "refresh-secret",
	})
	if err != nil {
		t.Fatalf("FromMap() unexpected error: %v", err)
	}

	if cfg.JWT.Expiration != 15*time.Minute {
		t.Fatalf("expected access expiration 15m, got %s", cfg.JWT.Expiration)
	}
	if cfg.JWT.RefreshExpiry != 7*24*time.Hour {
		t.Fatalf("expected refresh expiration 7d, got %s", cfg.JWT.RefreshExpiry)
	}
	if cfg.Server.Port != "3000" {
		t.Fatalf("expected default port 3000, got %q", cfg.Server.Port)
	}
	if cfg.Integrations.N8NTimeout != 10*time.Second {
		t.Fatalf("expected n8n timeout 10s, got %s", cfg.Integrations.N8NTimeout)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected allowed origins: %#v", cfg.Server.AllowedOrigins)
	}
}

func TestFromMapRequiresRefreshSecret(t *testing.T) {
	_, err := FromMap(map[string]string{"JWT_SECRET": "access-secret"})
	if err == nil {
		t.Fatal("expected error when JWT_REFRESH_SECRET is missing")
	}
	if !strings.Contains(err.Error(), "JWT_REFRESH_SECRET") {
		t.Fatalf("expected error to name JWT_REFRESH_SECRET, got %v", err)
	}
}

func TestFromMapReadsOverrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"JWT_SECRET":             "access-secret",
		"JWT_REFRESH_SECRET":     "refresh-secret",
		"JWT_EXPIRATION":         "1h",
		"JWT_REFRESH_EXPIRATION": "30d",
		"DEFAULT_TENANT_ID":      "tenant-1",
		"ALLOWED_ORIGINS":        "https://a.example,https://b.example",
		"WEBHOOK_MAX_ATTEMPTS":   "3",
	})
	if err != nil {
		t.Fatalf("FromMap() unexpected error: %v", err)
	}
	if cfg.JWT.Expiration != time.Hour {
		t.Fatalf("expected 1h, got %s", cfg.JWT.Expiration)
	}
	if cfg.JWT.RefreshExpiry != 30*24*time.Hour {
		t.Fatalf("expected 30d, got %s", cfg.JWT.RefreshExpiry)
	}
	if cfg.Tenancy.DefaultTenantID != "tenant-1" {
		t.Fatalf("expected default tenant id, got %q", cfg.Tenancy.DefaultTenantID)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %#v", cfg.Server.AllowedOrigins)
	}
	if cfg.Webhooks.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Webhooks.MaxAttempts)
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"7d":  7 * 24 * time.Hour,
		"900": 900 * time.Second,
		"2h":  2 * time.Hour,
	}
	for input, want := range cases {
		got, err := ParseDuration(input)
		if err != nil {
			t.Fatalf("ParseDuration(%q) unexpected error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseDuration(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseDuration("soon"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

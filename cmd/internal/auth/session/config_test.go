package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("GATEHOUSE_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxDevices != 4 {
		t.Fatalf("unexpected device cap: %d", cfg.MaxDevices)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	t.Setenv("GATEHOUSE_JWT_SECRET", "")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("GATEHOUSE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GATEHOUSE_AUTH_ACCESS_TTL", "5m")
	t.Setenv("GATEHOUSE_AUTH_REFRESH_TTL", "48h")
	t.Setenv("GATEHOUSE_AUTH_MAX_DEVICES", "2")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 48*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxDevices != 2 {
		t.Fatalf("unexpected device cap: %d", cfg.MaxDevices)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("GATEHOUSE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GATEHOUSE_AUTH_MAX_DEVICES", "0")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

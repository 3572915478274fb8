package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("unexpected read header timeout: %v", cfg.ReadHeaderTimeout)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("unexpected max conns: %d", cfg.DBMaxConns)
	}
	if cfg.RequireTokenHMAC {
		t.Fatalf("HMAC policy must default off")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GATEHOUSE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")
	t.Setenv("GATEHOUSE_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("unexpected addr: %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Setenv("GATEHOUSE_TOKEN_HMAC_KEY", "")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: false}); err != nil {
		t.Fatalf("policy off must pass: %v", err)
	}
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatalf("missing key must fail under policy")
	}

	t.Setenv("GATEHOUSE_TOKEN_HMAC_KEY", "short")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatalf("short key must fail under policy")
	}

	t.Setenv("GATEHOUSE_TOKEN_HMAC_KEY", "0123456789abcdef0123456789abcdef")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err != nil {
		t.Fatalf("valid key must pass: %v", err)
	}
}

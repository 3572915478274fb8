package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem:
// access-token TTL, refresh-token TTL, the device cap, clock skew tolerance,
// refresh entropy size, and the HMAC signing secret for access tokens.
//
// RefreshTokenTTL is the single source of truth for refresh-token lifetime;
// both the stored expiry and anything derived from it use this value.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of signed access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the lifetime of refresh-token sessions.
	RefreshTokenTTL time.Duration

	// MaxDevices caps the number of live sessions per principal.
	MaxDevices int

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// RefreshTokenBytes defines the number of random bytes used
	// to generate opaque refresh tokens.
	RefreshTokenBytes int

	// JWTSecret signs HS256 access tokens. Required; startup fails without it.
	JWTSecret []byte
}

// DefaultConfig returns the defaults for development. The JWT secret has no
// default and must come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:            "gatehouse",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		MaxDevices:        4,
		ClockSkew:         30 * time.Second,
		RefreshTokenBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - GATEHOUSE_JWT_SECRET (>= 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - GATEHOUSE_AUTH_ISSUER
//   - GATEHOUSE_AUTH_ACCESS_TTL
//   - GATEHOUSE_AUTH_REFRESH_TTL
//   - GATEHOUSE_AUTH_MAX_DEVICES
//   - GATEHOUSE_AUTH_CLOCK_SKEW
//   - GATEHOUSE_AUTH_REFRESH_TOKEN_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("GATEHOUSE_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("GATEHOUSE_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("GATEHOUSE_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("GATEHOUSE_AUTH_MAX_DEVICES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.MaxDevices = n
	}

	if v := os.Getenv("GATEHOUSE_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("GATEHOUSE_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	// Fail fast on a missing signing secret rather than at first issuance.
	secret := os.Getenv("GATEHOUSE_JWT_SECRET")
	if len(secret) < 32 {
		return Config{}, ErrConfig
	}
	cfg.JWTSecret = []byte(secret)

	return cfg, nil
}

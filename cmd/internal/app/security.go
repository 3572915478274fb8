package app

import (
	"errors"

	"gatehouse/cmd/security/token"
)

// ValidateSecurityConfig enforces the runtime security policy at startup.
// Fail-fast: a production deployment must never silently fall back to
// unkeyed refresh-token hashing.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: GATEHOUSE_REQUIRE_TOKEN_HMAC=true but GATEHOUSE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: GATEHOUSE_REQUIRE_TOKEN_HMAC=true but GATEHOUSE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: GATEHOUSE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}

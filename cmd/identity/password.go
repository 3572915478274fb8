package identity

import (
	"gatehouse/cmd/security/password"
)

// HashPassword returns a PHC-style Argon2id hash string using the env-driven
// configuration from cmd/security/password.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return "", err
	}
	return cfg.Hash(plain)
}

// VerifyPassword checks a password against a PHC Argon2id hash.
// The comparison on the derived key is constant-time.
func VerifyPassword(plain, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	return cfg.Verify(encodedPHC, plain)
}

// DummyHash returns a valid Argon2id hash of a throwaway value. The login
// path verifies against it when the principal is absent, so unknown
// identifier and wrong secret cost the same wall time.
func DummyHash() (string, error) {
	return HashPassword("dummy-password-for-timing-only")
}

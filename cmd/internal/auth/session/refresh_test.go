package session

import "testing"

func TestNewOpaqueRefreshToken(t *testing.T) {
	plain, hash, err := newOpaqueRefreshToken(32)
	if err != nil {
		t.Fatalf("newOpaqueRefreshToken: %v", err)
	}
	if plain == "" {
		t.Fatalf("empty token")
	}
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hash))
	}
	if hashRefreshTokenHex(plain) != hash {
		t.Fatalf("hash mismatch")
	}

	plain2, hash2, err := newOpaqueRefreshToken(32)
	if err != nil {
		t.Fatalf("newOpaqueRefreshToken: %v", err)
	}
	if plain == plain2 || hash == hash2 {
		t.Fatalf("tokens must be unique")
	}
}

// Package token provides the server-side hashing primitives for opaque
// refresh tokens. Plain refresh tokens are never persisted; only a digest is
// stored, keyed with HMAC when GATEHOUSE_TOKEN_HMAC_KEY is configured.
package token

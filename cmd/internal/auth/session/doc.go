// Package session implements refresh-token sessions: issuance under the
// per-principal device cap, single-use rotation, revocation, and the signed
// access-token manager.
//
// A session is one row keyed by the hash of its opaque refresh token. Rows
// are deleted -- on logout, on rotation (the superseded token), on cap
// eviction, and lazily when an expired token is presented. A deleted token
// never satisfies a lookup again.
//
// All mutations for one principal are serialized through a per-principal
// advisory lock taken inside the transaction, so concurrent issuances cannot
// jointly exceed the device cap and concurrent rotations of one token have
// exactly one winner.
package session

// Package auth is the authentication core: registration, credential login,
// refresh rotation, logout, stateless access-token verification, and
// effective-permission lookup. It composes the identity, session, and rbac
// packages behind one service and one error taxonomy.
//
// Failure shape is part of the contract. Unknown identifiers and wrong
// secrets fail with the same error in the same wall time, and token errors
// unwrap to ErrUnauthenticated so the boundary maps them uniformly.
package auth

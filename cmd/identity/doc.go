// Package identity owns the principal lifecycle: registration, credential
// lookup for login, and soft deactivation.
//
// Principals are never hard-deleted. Deactivation writes a tombstone
// timestamp, and every credential lookup excludes tombstoned and inactive
// records through a single store-level filter, so a deactivated principal can
// never authenticate regardless of credential correctness.
package identity

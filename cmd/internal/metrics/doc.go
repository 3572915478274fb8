// Package metrics exposes the Prometheus instrumentation for the auth core.
// Counters are registered on the default registry and served by the /metrics
// endpoint in cmd/internal/app.
package metrics

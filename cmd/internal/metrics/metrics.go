package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logins counts login attempts by result: "ok", "unauthenticated", "error".
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatehouse",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	// Refreshes counts refresh attempts by result: "ok", "invalid",
	// "expired", "forbidden", "error".
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatehouse",
		Name:      "refreshes_total",
		Help:      "Refresh-token rotations by result.",
	}, []string{"result"})

	// RefreshReplays counts refresh attempts with a token absent from the
	// store: rotated, revoked, or never issued. This is the theft signal.
	RefreshReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatehouse",
		Name:      "refresh_replays_total",
		Help:      "Refresh attempts presenting a token with no live session.",
	})

	// SessionsEvicted counts sessions deleted by device-cap eviction.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatehouse",
		Name:      "sessions_evicted_total",
		Help:      "Sessions evicted to enforce the per-principal device cap.",
	})
)

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// RoutesCalculated counts stored routes.
	// Labels:
	//   - kind: "standard", "personalized"
	RoutesCalculated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "museum_nav_routes_calculated_total",
			Help: "Total number of routes calculated",
		},
		[]string{"kind"},
	)

	// DeviationChecks counts position checks against a route path.
	// Labels:
	//   - outcome: "deviated", "on_track"
	DeviationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "museum_nav_deviation_checks_total",
			Help: "Total number of route deviation checks",
		},
		[]string{"outcome"},
	)

	// SyncOperations counts replayed offline operations.
	// Labels:
	//   - type: operation_type as sent by the client
	//   - outcome: "success", "failure"
	SyncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "museum_nav_sync_operations_total",
			Help: "Total number of offline sync operations processed",
		},
		[]string{"type", "outcome"},
	)

	// LoginAttempts counts credential checks.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "museum_nav_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	// RevokedTokenRejections counts requests refused because their token was revoked.
	RevokedTokenRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "museum_nav_revoked_token_rejections_total",
			Help: "Total number of requests rejected with a revoked token",
		},
	)

	// RateLimited counts requests refused by the credential endpoint limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "museum_nav_rate_limited_requests_total",
			Help: "Total number of requests rejected by rate limiting",
		},
	)
)

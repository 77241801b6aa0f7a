// Package metrics registers the Prometheus counters shared by the tiers,
// the orchestrator and the record store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"

	CacheHit  = "hit"
	CacheMiss = "miss"

	ChunkCommitted = "committed"
)

var (
	// TierOperations counts orchestrated calls per tier and outcome.
	TierOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landrecords_tier_operations_total",
			Help: "Operations attempted per persistence tier, by outcome.",
		},
		[]string{"tier", "outcome"},
	)

	// BatchChunks counts chunked record writes by outcome.
	BatchChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landrecords_batch_chunks_total",
			Help: "Record upsert chunks, by outcome.",
		},
		[]string{"outcome"},
	)

	// GatewayCache counts gateway read cache lookups.
	GatewayCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landrecords_gateway_cache_total",
			Help: "Gateway response cache lookups, by result.",
		},
		[]string{"result"},
	)

	// HTTPRequests counts requests served by the gateway server.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landrecords_http_requests_total",
			Help: "HTTP requests served by the gateway server.",
		},
		[]string{"method", "route", "status"},
	)
)

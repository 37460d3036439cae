// Package metrics exposes the feed service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the feed-specific collectors.
	Registry = prometheus.NewRegistry()

	// FetchTotal counts search backend calls by kind and outcome.
	// kind ∈ {optimistic, corrective, page, expansion, warm};
	// status ∈ {ok, error}.
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feed_service",
			Subsystem: "search",
			Name:      "fetches_total",
			Help:      "Total search backend fetches by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	// SnapshotLookups counts snapshot cache reads by result.
	SnapshotLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feed_service",
			Subsystem: "snapshot",
			Name:      "lookups_total",
			Help:      "Snapshot cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	// GateTimeouts counts asset gates that force-opened on the timer
	// instead of full image readiness.
	GateTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feed_service",
			Subsystem: "gate",
			Name:      "timeouts_total",
			Help:      "Asset readiness gates opened by timeout.",
		},
	)

	// CyclesTotal counts load cycles by their terminal phase.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feed_service",
			Subsystem: "feed",
			Name:      "cycles_total",
			Help:      "Load cycles by terminal phase (committed, abandoned, failed).",
		},
		[]string{"phase"},
	)

	// CommitDuration observes time from cycle start to commit.
	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feed_service",
			Subsystem: "feed",
			Name:      "commit_duration_seconds",
			Help:      "Time from load cycle start to visual commit.",
			Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms to ~12s
		},
	)

	// ExpansionsTotal counts sparse-supply expansions that appended a tier.
	ExpansionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feed_service",
			Subsystem: "feed",
			Name:      "expansions_total",
			Help:      "Load cycles where a wide-radius secondary tier was appended.",
		},
	)
)

func init() {
	Registry.MustRegister(
		FetchTotal,
		SnapshotLookups,
		GateTimeouts,
		CyclesTotal,
		CommitDuration,
		ExpansionsTotal,
	)
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

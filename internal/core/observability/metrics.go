// Package observability wires the region cache's Prometheus metrics,
// grounded on the teacher's collector-registration shape
// (internal/core/observability and internal/metrics in the source
// tree this repo was adapted from).
package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors a RegionCache reports on: an entry-count
// gauge per cache name, plus separate timers for remote fetch latency
// and index-build latency (spec.md §4.4's "two timers... separately").
type Metrics struct {
	EntryCount   *prometheus.GaugeVec
	FetchLatency *prometheus.HistogramVec
	BuildLatency *prometheus.HistogramVec
	Evictions    *prometheus.CounterVec

	InvalidationErrors *prometheus.CounterVec
}

// NewMetrics constructs the collector set without registering it.
func NewMetrics() *Metrics {
	return &Metrics{
		EntryCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "region_cache_entries",
				Help: "Current number of slots (resolved, failed, or in flight) held by a region cache.",
			},
			[]string{"cache"},
		),
		FetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "region_cache_remote_fetch_seconds",
				Help:    "Latency of remote dataset fetches performed to populate a cache entry.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"cache"},
		),
		BuildLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "region_cache_index_build_seconds",
				Help:    "Latency of building an index (spatial or hash-map) from decoded features.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"cache"},
		),
		Evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_cache_evictions_total",
				Help: "Count of cache slot evictions by cause.",
			},
			[]string{"cache", "cause"}, // cause: capacity|pressure|reset|manual
		),
		InvalidationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "region_cache_invalidation_errors_total",
				Help: "Count of invalidation events the Kafka consumer failed to apply, by kind.",
			},
			[]string{"kind"}, // kind: decode|validate
		),
	}
}

// Register registers every collector against r, tolerating re-registration
// of the exact same collector — the "gauge registration idempotency" note
// spec.md §9 calls out as a test-suite requirement (cache objects are
// commonly recreated in tests against a shared default registry).
func (m *Metrics) Register(r prometheus.Registerer) error {
	if r == nil || m == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.EntryCount, m.FetchLatency, m.BuildLatency, m.Evictions, m.InvalidationErrors} {
		if err := registerIdempotent(r, c); err != nil {
			return err
		}
	}
	return nil
}

func registerIdempotent(r prometheus.Registerer, c prometheus.Collector) error {
	err := r.Register(c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return nil
	}
	return err
}

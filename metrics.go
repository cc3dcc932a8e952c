package medley

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instrumentation, wired the same way vjache-cie exposes a
// Prometheus registry behind an HTTP mux: collectors are registered once
// at package init and updated inline by the engine as it works.
var (
	recordsHashedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medley_records_hashed_total",
		Help: "Total number of source records passed through RecordHasher.",
	})

	fingerprintsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medley_fingerprints_emitted_total",
		Help: "Total number of deduplicated (id, fingerprint) pairs emitted by RecordHasher.",
	})

	clustersBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medley_clusters_built_total",
		Help: "Total number of BuildClusters invocations.",
	})

	clusterSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "medley_cluster_distinct_matching_ids",
		Help: "Number of distinct matching ids produced by the most recent BuildClusters call.",
	})

	buildDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medley_build_duration_seconds",
		Help:    "Wall-clock duration of BuildAllIndexes calls.",
		Buckets: prometheus.DefBuckets,
	})

	lookupOverflowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medley_index_lookup_overflow_total",
		Help: "Total number of lookups whose per-key fanout exceeded FanoutLimit, by index name.",
	}, []string{"index"})
)

func recordLookupOverflows(overflows []IndexLookupOverflow) {
	for _, w := range overflows {
		lookupOverflowTotal.WithLabelValues(w.Index).Inc()
	}
}

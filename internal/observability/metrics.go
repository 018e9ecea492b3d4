// Package observability exposes the Prometheus metrics of the service.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	mergeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extent_merge_total",
			Help: "Extent merges by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	mergeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extent_merge_duration_seconds",
			Help:    "Duration of extent merges in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"mode"},
	)

	mergeRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extent_merge_records_skipped_total",
			Help: "Records dropped from a merge batch, by reason.",
		},
		[]string{"reason"},
	)

	hullFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extent_hull_fallback_total",
			Help: "Convex-hull merges that fell back to bbox union.",
		},
	)

	selectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_total",
			Help: "Budgeted selections by policy and outcome.",
		},
		[]string{"policy", "outcome"},
	)

	selectionSelectedBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selection_selected_bytes",
			Help:    "Total bytes accepted per selection.",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 12), // 1KiB to ~16GiB
		},
	)

	cacheOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of cache operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "ok"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_total",
			Help: "Catalog invalidation events by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	invalidationKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidation_keys_total",
			Help: "Cached extents dropped by invalidation events.",
		},
	)

	kafkaConsumerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveMerge records one merge call. Outcome is ok|empty|fallback.
func ObserveMerge(mode, outcome string, durationSeconds float64) {
	mergeTotal.WithLabelValues(mode, outcome).Inc()
	mergeDurationSeconds.WithLabelValues(mode).Observe(durationSeconds)
}

// IncRecordSkipped counts one dropped record. Reason is
// invalid_geometry|reprojection.
func IncRecordSkipped(reason string) {
	mergeRecordsSkipped.WithLabelValues(reason).Inc()
}

func IncHullFallback() {
	hullFallbackTotal.Inc()
}

// ObserveSelection records one selection call. Outcome is ok|size_exceeded.
func ObserveSelection(policy, outcome string, selectedBytes int64) {
	selectionTotal.WithLabelValues(policy, outcome).Inc()
	if outcome == "ok" && selectedBytes > 0 {
		selectionSelectedBytes.Observe(float64(selectedBytes))
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	ok := "true"
	if err != nil {
		ok = "false"
	}
	cacheOpSeconds.WithLabelValues(op, ok).Observe(durationSeconds)
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func ObserveInvalidation(op string, keys int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	invalidationTotal.WithLabelValues(op, outcome).Inc()
	if keys > 0 {
		invalidationKeys.Add(float64(keys))
	}
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

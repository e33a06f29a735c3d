// Package observability exposes Prometheus instrumentation for the service.
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

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of backend compute calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Request cache results by outcome.",
		},
		[]string{"outcome", "format"},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Export jobs processed by terminal status.",
		},
		[]string{"status", "job_type"},
	)

	jobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Export jobs currently waiting in the queue.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version", "revision"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(op string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit(format string)  { cacheResults.WithLabelValues("hit", format).Inc() }
func IncCacheMiss(format string) { cacheResults.WithLabelValues("miss", format).Inc() }

func IncJobProcessed(status, jobType string) {
	jobsProcessed.WithLabelValues(status, jobType).Inc()
}

func SetJobQueueDepth(n int) { jobQueueDepth.Set(float64(n)) }

func ExposeBuildInfo(version, revision string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version, revision).Set(1)
}

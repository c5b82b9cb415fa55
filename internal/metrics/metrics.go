// Package metrics provides Prometheus metrics for the link preview services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts preview fetches by preview type and result
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_fetch_total",
			Help: "Total number of preview fetches",
		},
		[]string{"type", "result"},
	)

	// FetchDuration measures preview fetch duration
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_fetch_duration_seconds",
			Help:    "Duration of preview fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	// FallbackTotal counts blog fetches that fell back to the generic scraper
	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_fallback_total",
			Help: "Total number of blog adapter failures that fell back to the webpage scraper",
		},
		[]string{"platform"},
	)

	// CommitTotal counts preview commits by outcome (committed, stale, error)
	CommitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_commit_total",
			Help: "Total number of preview commits",
		},
		[]string{"status", "outcome"},
	)

	// BatchSize observes batch refresh sizes
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_batch_size",
			Help:    "Distribution of batch refresh sizes",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	// UpstreamRemaining tracks the last known remaining request budget per upstream
	UpstreamRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "preview_upstream_ratelimit_remaining",
			Help: "Remaining upstream API requests in the current rate limit window",
		},
		[]string{"upstream"},
	)

	// LimiterRedisUp tracks whether the pacing proxy reaches Redis
	LimiterRedisUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preview_limiter_redis_up",
			Help: "Pacing proxy Redis connection status (1 = connected, 0 = local fallback)",
		},
	)

	// SweepTotal counts sweeper actions (expired, refreshed, failed)
	SweepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_sweep_total",
			Help: "Total number of links handled by the refresh sweeper",
		},
		[]string{"action"},
	)

	// HTTPRequestsTotal counts API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_http_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordFetch records a preview fetch
func RecordFetch(previewType, result string, duration time.Duration) {
	FetchTotal.WithLabelValues(previewType, result).Inc()
	FetchDuration.WithLabelValues(previewType).Observe(duration.Seconds())
}

// RecordFallback records a blog adapter failure that fell back to scraping
func RecordFallback(platform string) {
	FallbackTotal.WithLabelValues(platform).Inc()
}

// RecordCommit records a preview commit outcome
func RecordCommit(status, outcome string) {
	CommitTotal.WithLabelValues(status, outcome).Inc()
}

// SetUpstreamRemaining records the remaining request budget of an upstream
func SetUpstreamRemaining(upstream string, remaining int) {
	UpstreamRemaining.WithLabelValues(upstream).Set(float64(remaining))
}

// SetLimiterRedisUp records whether the pacing proxy reaches Redis
func SetLimiterRedisUp(up bool) {
	if up {
		LimiterRedisUp.Set(1)
		return
	}
	LimiterRedisUp.Set(0)
}

// RecordSweep records sweeper actions
func RecordSweep(action string, count int) {
	SweepTotal.WithLabelValues(action).Add(float64(count))
}

// RecordHTTPRequest records an API request
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Package metrics holds the Prometheus collectors shared by services, tasks and the HTTP server.
//
// Collectors are registered on the default registry at init through promauto and exposed by the server at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mdash"

var (
	// Upstream request counter by collaborator and HTTP status ("error" for transport failures)
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to upstream collaborators by source and status",
		},
		[]string{"source", "status"},
	)

	// Upstream latency by collaborator
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Histogram of upstream request durations by source",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// Rate limit retries by operation
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of backoff retries after rate limit responses",
		},
		[]string{"operation"},
	)

	// Fan-out branches that failed and were defaulted to empty
	BranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_failures_total",
			Help:      "Total number of aggregation branches that failed and were defaulted",
		},
		[]string{"branch"},
	)

	// Articles returned per news source
	Articles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_articles_total",
			Help:      "Total number of news articles fetched by source",
		},
		[]string{"source"},
	)

	// Aggregation run duration by pipeline
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Histogram of aggregation run durations by pipeline",
		},
		[]string{"pipeline"},
	)

	// Superseded refresh results discarded
	StaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Total number of aggregation results discarded because a newer run started",
		},
		[]string{"pipeline"},
	)

	// HTTP API request counter by method, route and status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTP API request duration by method and route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of request durations by method and route",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// ObserveUpstream records one upstream call. A status of 0 is counted as a transport error.
func ObserveUpstream(source string, status int, start time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(source, label).Inc()
	UpstreamDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// ObserveAggregation records the duration of one pipeline run.
func ObserveAggregation(pipeline string, start time.Time) {
	AggregationDuration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
}

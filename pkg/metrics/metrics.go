package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	// Template lifecycle metrics
	TemplateOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_operations_total",
			Help: "Template lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	TemplateVersionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_versions_created_total",
			Help: "Template versions created and promoted to current",
		},
		[]string{"category", "breaking"},
	)

	TemplatePromotionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_promotion_conflicts_total",
			Help: "Promotions rejected by the single-current constraint",
		},
		[]string{"category"},
	)

	TemplateBootstrapResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_bootstrap_results_total",
			Help: "Default template initializer results per category",
		},
		[]string{"result"},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	DatabaseSlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "database_slow_queries_total",
			Help: "Total number of slow queries",
		},
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published",
		},
		[]string{"event_type", "status"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)
)

// RecordHTTPRequest records an HTTP request metric
func RecordHTTPRequest(service, method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(service, method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func RecordHTTPDuration(service, method, path string, duration float64) {
	HTTPRequestDuration.WithLabelValues(service, method, path).Observe(duration)
}

// RecordTemplateOperation counts a manager operation; outcome is "ok" or an error kind.
func RecordTemplateOperation(operation, outcome string) {
	TemplateOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordVersionCreated(category string, breaking bool) {
	label := "false"
	if breaking {
		label = "true"
	}
	TemplateVersionsCreated.WithLabelValues(category, label).Inc()
}

func RecordPromotionConflict(category string) {
	TemplatePromotionConflicts.WithLabelValues(category).Inc()
}

func RecordBootstrapResult(result string) {
	TemplateBootstrapResults.WithLabelValues(result).Inc()
}

func RecordEventPublished(eventType, status string) {
	EventsPublished.WithLabelValues(eventType, status).Inc()
}

func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

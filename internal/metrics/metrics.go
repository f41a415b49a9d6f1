// Package metrics provides Prometheus metrics for the flavor search service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Lookup metrics
	LookupsTotal   *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec

	// Cloud client metrics
	CloudCallsTotal *prometheus.CounterVec

	// SKU cache metrics
	SKUCacheEvents *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance and registers with Prometheus.
func New() *Metrics {
	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flavorsearch",
			Name:      "lookups_total",
			Help:      "Total number of flavor lookups.",
		}, []string{"cloud", "resource_type", "result"}),
		LookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flavorsearch",
			Name:      "lookup_duration_seconds",
			Help:      "Flavor lookup duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cloud"}),
		CloudCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flavorsearch",
			Name:      "cloud_calls_total",
			Help:      "Total number of outbound cloud API calls.",
		}, []string{"cloud", "operation", "status"}),
		SKUCacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flavorsearch",
			Name:      "sku_cache_events_total",
			Help:      "SKU cache hits, misses and refreshes.",
		}, []string{"event"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flavorsearch",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flavorsearch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	// Register all metrics
	prometheus.MustRegister(
		m.LookupsTotal,
		m.LookupDuration,
		m.CloudCallsTotal,
		m.SKUCacheEvents,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLookup records a finished flavor lookup. Safe on a nil receiver
// so callers need no guard when metrics are disabled.
func (m *Metrics) RecordLookup(cloud, resourceType, result string, duration float64) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(cloud, resourceType, result).Inc()
	m.LookupDuration.WithLabelValues(cloud).Observe(duration)
}

// RecordCloudCall records an outbound cloud API call.
func (m *Metrics) RecordCloudCall(cloud, operation, status string) {
	if m == nil {
		return
	}
	m.CloudCallsTotal.WithLabelValues(cloud, operation, status).Inc()
}

// RecordCacheEvent records a SKU cache hit, miss or refresh.
func (m *Metrics) RecordCacheEvent(event string) {
	if m == nil {
		return
	}
	m.SKUCacheEvents.WithLabelValues(event).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

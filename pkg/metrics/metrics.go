// Package metrics holds the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// FilterRequests counts filter requests by access path and outcome.
	FilterRequests *prometheus.CounterVec
	// StoreCallDuration is the latency of store reads by operation.
	StoreCallDuration *prometheus.HistogramVec
	// PageSize observes the number of items returned per page.
	PageSize prometheus.Histogram
	// HTTPRequests counts HTTP requests by method, route and status.
	HTTPRequests *prometheus.CounterVec
	// HTTPRequestDuration is the latency of HTTP requests.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilterRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gocrm_filter_requests_total",
				Help: "Total number of filter requests",
			},
			[]string{"path", "outcome"},
		),
		StoreCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gocrm_store_call_duration_seconds",
				Help:    "Store read latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		PageSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gocrm_filter_page_items",
				Help:    "Items returned per filter page",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gocrm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gocrm_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveFilter records the outcome of one filter request.
func (m *Metrics) ObserveFilter(path, outcome string, items int) {
	if m == nil {
		return
	}
	m.FilterRequests.WithLabelValues(path, outcome).Inc()
	if outcome == "ok" {
		m.PageSize.Observe(float64(items))
	}
}

// ObserveStoreCall records the latency of a store read started at start.
func (m *Metrics) ObserveStoreCall(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// Package metrics holds the Prometheus instrumentation for adapter calls,
// ranking and curation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "locdb"

// Metrics is a set of collectors bound to one registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	adapterCalls    *prometheus.CounterVec
	adapterFailures *prometheus.CounterVec
	adapterLatency  *prometheus.HistogramVec
	rankingLatency  *prometheus.HistogramVec
	rankedResults   prometheus.Histogram
	curations       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		adapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_calls_total",
			Help:      "External provider calls by source and operation.",
		}, []string{"source", "op"}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_failures_total",
			Help:      "Failed external provider calls by source and operation.",
		}, []string{"source", "op"}),
		adapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_duration_seconds",
			Help:      "External provider call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"source"}),
		rankingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "End-to-end suggestion ranking latency by path (doi, text, internal).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		rankedResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranked_results",
			Help:      "Number of suggestions returned per ranking request.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		curations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curations_total",
			Help:      "Hierarchy curation outcomes per member.",
		}, []string{"member", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.adapterCalls,
		m.adapterFailures,
		m.adapterLatency,
		m.rankingLatency,
		m.rankedResults,
		m.curations,
		m.httpRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAdapterCall records one provider call.
func (m *Metrics) ObserveAdapterCall(source, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.adapterCalls.WithLabelValues(source, op).Inc()
	m.adapterLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.adapterFailures.WithLabelValues(source, op).Inc()
	}
}

// ObserveRanking records one ranking request.
func (m *Metrics) ObserveRanking(path string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.rankingLatency.WithLabelValues(path).Observe(elapsed.Seconds())
	m.rankedResults.Observe(float64(results))
}

// ObserveCuration records what happened to one hierarchy member. Outcomes
// are "created", "merged", "unchanged" and "failed".
func (m *Metrics) ObserveCuration(member, outcome string) {
	if m == nil {
		return
	}
	m.curations.WithLabelValues(member, outcome).Inc()
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

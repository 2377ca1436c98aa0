package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate for the web shell, by route template.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. POST / waits for the lookup, so it tracks upstream latency too.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate by status label. Exactly one call per submitted lookup.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Settled lookups by outcome (success, not_found, upstream_failure, fault).
	LookupsTotal *prometheus.CounterVec

	// Responses dropped because a newer lookup was issued first.
	LookupsDiscardedTotal prometheus.Counter

	// Lookups currently waiting on the upstream.
	LookupsInFlight prometheus.Gauge

	// Live widget sessions held by the web shell.
	ActiveSessions prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookupsTotal",
			Help: "Total number of settled weather lookups by outcome",
		},
		[]string{"outcome"},
	)
	LookupsDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lookupsDiscardedTotal",
			Help: "Lookup responses discarded because a newer lookup was issued",
		},
	)
	LookupsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookupsInFlight",
			Help: "Number of lookups awaiting the upstream response",
		},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "activeSessions",
			Help: "Number of live widget sessions",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		LookupsTotal, LookupsDiscardedTotal, LookupsInFlight,
		ActiveSessions,
	)
}

// RecordLookup records a settled lookup outcome.
func RecordLookup(outcome string) {
	LookupsTotal.WithLabelValues(outcome).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus metrics for the BidMachine adapter
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Harness request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Adapter operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	PartnerErrors     *prometheus.CounterVec
	AdEvents          *prometheus.CounterVec
	TrackedAds        *prometheus.GaugeVec

	// Partner endpoint metrics
	PartnerRequests     *prometheus.CounterVec
	PartnerLatency      prometheus.Histogram
	PartnerCircuitState prometheus.Gauge

	// Privacy metrics
	ConsentSignals *prometheus.CounterVec

	// Auth metrics
	AuthFailures prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the metrics and registers them with reg. A nil reg uses a fresh registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "bidmachine_adapter"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Adapter operations by outcome",
			},
			[]string{"operation", "format", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time from adapter call to partner callback",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation", "format"},
		),
		PartnerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partner_errors_total",
				Help:      "Partner SDK errors by code",
			},
			[]string{"operation", "code"},
		),
		AdEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_events_total",
				Help:      "Ad lifecycle events forwarded to the platform",
			},
			[]string{"format", "event"},
		),
		TrackedAds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_ads",
				Help:      "Fullscreen ads held between load and their terminal callback",
			},
			[]string{"format"},
		),

		PartnerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partner_requests_total",
				Help:      "Requests to the partner ad server",
			},
			[]string{"status"},
		),
		PartnerLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "partner_latency_seconds",
				Help:      "Partner ad server latency in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .15, .2, .3, .5, .75, 1, 3},
			},
		),
		PartnerCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "partner_circuit_breaker_state",
				Help:      "Partner circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),

		ConsentSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consent_signals_total",
				Help:      "Consent signals relayed to the partner",
			},
			[]string{"type", "has_consent"},
		),

		AuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Harness requests rejected for a missing or invalid API key",
			},
		),

		gatherer: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.OperationsTotal,
		m.OperationDuration,
		m.PartnerErrors,
		m.AdEvents,
		m.TrackedAds,
		m.PartnerRequests,
		m.PartnerLatency,
		m.PartnerCircuitState,
		m.ConsentSignals,
		m.AuthFailures,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for the registry these metrics live in
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware returns HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordOperation records an adapter operation outcome.
// Implements adapter.Recorder.
func (m *Metrics) RecordOperation(operation, format, outcome string, duration time.Duration) {
	if format == "" {
		format = "none"
	}
	m.OperationsTotal.WithLabelValues(operation, format, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation, format).Observe(duration.Seconds())
}

// RecordPartnerError records a partner SDK error code
func (m *Metrics) RecordPartnerError(operation, code string) {
	m.PartnerErrors.WithLabelValues(operation, code).Inc()
}

// RecordAdEvent records an ad lifecycle event
func (m *Metrics) RecordAdEvent(format, event string) {
	m.AdEvents.WithLabelValues(format, event).Inc()
}

// SetTrackedAds sets the number of tracked fullscreen ads for a format
func (m *Metrics) SetTrackedAds(format string, count int) {
	m.TrackedAds.WithLabelValues(format).Set(float64(count))
}

// RecordPartnerRequest records a request to the partner ad server.
// Implements httpsdk.Recorder.
func (m *Metrics) RecordPartnerRequest(status string, latency time.Duration) {
	m.PartnerRequests.WithLabelValues(status).Inc()
	m.PartnerLatency.Observe(latency.Seconds())
}

// SetPartnerCircuitState sets the partner circuit breaker state metric
func (m *Metrics) SetPartnerCircuitState(state string) {
	var value float64
	switch state {
	case "closed":
		value = 0
	case "open":
		value = 1
	case "half-open":
		value = 2
	}
	m.PartnerCircuitState.Set(value)
}

// RecordConsentSignal records a consent signal
func (m *Metrics) RecordConsentSignal(signalType string, hasConsent bool) {
	consent := "no"
	if hasConsent {
		consent = "yes"
	}
	m.ConsentSignals.WithLabelValues(signalType, consent).Inc()
}

// IncAuthFailures increments the auth failure counter
func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}

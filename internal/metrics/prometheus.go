// Package metrics provides Prometheus metrics for the solagram daemon.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	fetchTotal     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	coalesceJoined prometheus.Counter
	batchCalls     prometheus.Counter
	batchRecords   prometheus.Histogram
	decodeFailures *prometheus.CounterVec
	invalidations  *prometheus.CounterVec
	stateSlots     *prometheus.GaugeVec
	writesTotal    *prometheus.CounterVec
	healthStatus   prometheus.Gauge
}

var globalMetrics *Metrics

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}

	globalMetrics = &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solagram_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solagram_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		requestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "solagram_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		fetchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solagram_fetch_total",
				Help: "Total number of collection fetches",
			},
			[]string{"collection", "outcome"},
		),
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solagram_fetch_duration_seconds",
				Help:    "Collection fetch duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"collection"},
		),
		coalesceJoined: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "solagram_coalesce_joined_total",
				Help: "Callers that shared another caller's in-flight fetch",
			},
		),
		batchCalls: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "solagram_batch_calls_total",
				Help: "Multi-record read round trips to the node",
			},
		),
		batchRecords: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solagram_batch_records_per_call",
				Help:    "Addresses requested per multi-record read",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		decodeFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solagram_decode_failures_total",
				Help: "Record payloads that failed to decode, by kind",
			},
			[]string{"kind"},
		),
		invalidations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solagram_invalidations_total",
				Help: "State invalidations by source",
			},
			[]string{"source"},
		),
		stateSlots: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solagram_state_slots",
				Help: "Cached state slots by status",
			},
			[]string{"status"},
		),
		writesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solagram_writes_total",
				Help: "Submitted instructions by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		healthStatus: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "solagram_health_status",
				Help: "Ledger reachability (1 = healthy, 0 = unhealthy)",
			},
		),
	}

	return globalMetrics
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncRequestsInFlight increments the in-flight requests counter.
func (m *Metrics) IncRequestsInFlight() {
	m.requestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter.
func (m *Metrics) DecRequestsInFlight() {
	m.requestsInFlight.Dec()
}

// RecordFetch records one collection fetch.
func (m *Metrics) RecordFetch(collection, outcome string, duration time.Duration) {
	m.fetchTotal.WithLabelValues(collection, outcome).Inc()
	m.fetchDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

// RecordCoalesceJoin counts a caller that joined an in-flight fetch.
func (m *Metrics) RecordCoalesceJoin() {
	m.coalesceJoined.Inc()
}

// RecordBatchCall records one multi-record read of n addresses.
func (m *Metrics) RecordBatchCall(n int) {
	m.batchCalls.Inc()
	m.batchRecords.Observe(float64(n))
}

// RecordDecodeFailure counts an undecodable record payload.
func (m *Metrics) RecordDecodeFailure(kind string) {
	m.decodeFailures.WithLabelValues(kind).Inc()
}

// RecordInvalidation counts a state invalidation.
func (m *Metrics) RecordInvalidation(source string) {
	m.invalidations.WithLabelValues(source).Inc()
}

// SetStateSlots sets the slot gauge for one status.
func (m *Metrics) SetStateSlots(status string, n int) {
	m.stateSlots.WithLabelValues(status).Set(float64(n))
}

// RecordWrite records a submitted instruction.
func (m *Metrics) RecordWrite(method, outcome string) {
	m.writesTotal.WithLabelValues(method, outcome).Inc()
}

// SetHealthStatus sets the ledger reachability gauge.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncRequestsInFlight()
			defer m.DecRequestsInFlight()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

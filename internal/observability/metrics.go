// Package observability holds the Prometheus instruments for hookboard.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	triggerDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60}
)

// Metrics holds all Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	TriggersTotal         *prometheus.CounterVec
	TriggerDuration       *prometheus.HistogramVec
	FallbackAttemptsTotal prometheus.Counter
	ExecutionsRunning     prometheus.Gauge
	ConnectionTestsTotal  *prometheus.CounterVec
	MonitorReachable      *prometheus.GaugeVec
}

// InitMetrics creates and registers all instruments on reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookboard_http_requests_total",
			Help: "Total number of API requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hookboard_http_request_duration_seconds",
			Help:    "API request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		TriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookboard_triggers_total",
			Help: "Completed workflow triggers by outcome and failure kind.",
		}, []string{"outcome", "kind"}),
		TriggerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hookboard_trigger_duration_seconds",
			Help:    "Wall time of trigger calls in seconds.",
			Buckets: triggerDurationBuckets,
		}, []string{"outcome"}),
		FallbackAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookboard_fallback_attempts_total",
			Help: "GET retries issued after a POST answered 404.",
		}),
		ExecutionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hookboard_executions_running",
			Help: "Executions currently in the running state.",
		}),
		ConnectionTestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookboard_connection_tests_total",
			Help: "Connection tests by result (reachable, unreachable, error).",
		}, []string{"result"}),
		MonitorReachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hookboard_monitor_reachable",
			Help: "Latest scheduled probe per workflow (1 reachable, 0 not).",
		}, []string{"workflow_id"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TriggersTotal,
		m.TriggerDuration,
		m.FallbackAttemptsTotal,
		m.ExecutionsRunning,
		m.ConnectionTestsTotal,
		m.MonitorReachable,
	)
	return m
}

// RecordHTTPRequest records API request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// ExecutionStarted increments the running gauge.
func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.ExecutionsRunning.Inc()
}

// RecordTrigger records a completed trigger. kind is empty on success.
func (m *Metrics) RecordTrigger(outcome, kind string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ExecutionsRunning.Dec()
	m.TriggersTotal.WithLabelValues(outcome, kind).Inc()
	m.TriggerDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if attempts > 1 {
		m.FallbackAttemptsTotal.Add(float64(attempts - 1))
	}
}

// RecordConnectionTest records a connection test result.
func (m *Metrics) RecordConnectionTest(reachable bool, err error) {
	if m == nil {
		return
	}
	result := "unreachable"
	switch {
	case err != nil:
		result = "error"
	case reachable:
		result = "reachable"
	}
	m.ConnectionTestsTotal.WithLabelValues(result).Inc()
}

// SetMonitorReachable sets the latest probe result of a workflow.
func (m *Metrics) SetMonitorReachable(workflowID string, reachable bool) {
	if m == nil {
		return
	}
	v := 0.0
	if reachable {
		v = 1
	}
	m.MonitorReachable.WithLabelValues(workflowID).Set(v)
}

// ForgetWorkflow drops per-workflow series of a deleted workflow.
func (m *Metrics) ForgetWorkflow(workflowID string) {
	if m == nil {
		return
	}
	m.MonitorReachable.DeleteLabelValues(workflowID)
}

// Middleware records request metrics using chi's route pattern (not the
// raw path) to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// Handler serves the registry at /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := rctx.RoutePattern()
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush lets streaming handlers (SSE) flush through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

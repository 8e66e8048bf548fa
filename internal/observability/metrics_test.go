package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return InitMetrics(reg), reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/api/workflows", 200, time.Millisecond)
	m.ExecutionStarted()
	m.RecordTrigger("success", "", 2, time.Second)
	m.RecordConnectionTest(true, nil)
	m.SetMonitorReachable("wf-1", true)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"hookboard_http_requests_total",
		"hookboard_http_request_duration_seconds",
		"hookboard_triggers_total",
		"hookboard_trigger_duration_seconds",
		"hookboard_fallback_attempts_total",
		"hookboard_executions_running",
		"hookboard_connection_tests_total",
		"hookboard_monitor_reachable",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}

func TestRecordTrigger(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ExecutionStarted()
	m.ExecutionStarted()
	m.RecordTrigger("failure", "not_found", 2, 100*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("failure", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackAttemptsTotal))
}

func TestRecordConnectionTest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordConnectionTest(true, nil)
	m.RecordConnectionTest(false, nil)
	m.RecordConnectionTest(false, errors.New("timeout"))

	for _, result := range []string{"reachable", "unreachable", "error"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionTestsTotal.WithLabelValues(result)), result)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ExecutionStarted()
	m.RecordTrigger("success", "", 1, time.Second)
	m.SetMonitorReachable("wf", true)
	m.ForgetWorkflow("wf")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/wf-123", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/api/workflows/{id}", "404")))
}

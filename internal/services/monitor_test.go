package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/hookboard/internal/hookboard"
	"github.com/soochol/hookboard/internal/observability"
)

// hostProber answers per target URL.
type hostProber map[string]struct {
	ok  bool
	err error
}

func (p hostProber) TestConnection(_ context.Context, wf *hookboard.Workflow) (bool, error) {
	r := p[wf.TargetURL]
	return r.ok, r.err
}

func TestConnectivityMonitor_RunOnce(t *testing.T) {
	f := newFixture(t)
	up := f.create(t, "Up", "https://up.example.com/h")
	down := f.create(t, "Down", "https://down.example.com/h")
	broken := f.create(t, "Broken", "https://broken.example.com/h")
	f.create(t, "Draft", "")
	prober := hostProber{
		"https://up.example.com/h":     {ok: true},
		"https://down.example.com/h":   {ok: false},
		"https://broken.example.com/h": {err: errors.New("dial tcp: connection refused")},
	}
	m := observability.InitMetrics(prometheus.NewRegistry())
	mon := NewConnectivityMonitor(f.workflows, prober, 2, m)

	results, err := mon.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Len(t, results, 3)
	byID := map[string]Probe{}
	for _, p := range mon.Probes() {
		byID[p.WorkflowID] = p
	}
	assert.True(t, byID[up.ID].Reachable)
	assert.False(t, byID[down.ID].Reachable)
	assert.Empty(t, byID[down.ID].Error)
	assert.Contains(t, byID[broken.ID].Error, "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MonitorReachable.WithLabelValues(up.ID)))

	// Probes never create executions.
	_, total, _ := f.execs.ListAll(context.Background(), 0, 0, "")
	assert.Zero(t, total)

	mon.Forget(up.ID)
	assert.Len(t, mon.Probes(), 2)
}

func TestConnectivityMonitor_StartRejectsBadSchedule(t *testing.T) {
	mon := NewConnectivityMonitor(newFixture(t).workflows, hostProber{}, 1, nil)
	assert.Error(t, mon.Start("not a cron"))
}

func TestConnectivityMonitor_StartStop(t *testing.T) {
	mon := NewConnectivityMonitor(newFixture(t).workflows, hostProber{}, 1, nil)
	require.NoError(t, mon.Start("@every 1h"))
	mon.Stop()
	mon.Stop()
}

func TestParseCronExpr(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 */5 * * * *", "@hourly", "@every 30s"} {
		_, err := parseCronExpr(expr)
		assert.NoError(t, err, expr)
	}
	_, err := parseCronExpr("61 * * * *")
	assert.Error(t, err)
}

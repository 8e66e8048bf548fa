package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/soochol/hookboard/internal/hookboard"
	"github.com/soochol/hookboard/internal/observability"
)

// Prober checks a resolved workflow's target. *webhook.Proxy implements it.
type Prober interface {
	TestConnection(ctx context.Context, wf *hookboard.Workflow) (bool, error)
}

// Probe is the latest reachability check of one workflow.
type Probe struct {
	WorkflowID string    `json:"workflow_id"`
	Reachable  bool      `json:"reachable"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// ConnectivityMonitor periodically probes every configured workflow. Probes
// never create executions and never touch statistics.
type ConnectivityMonitor struct {
	workflows   *WorkflowService
	prober      Prober
	parallelism int
	metrics     *observability.Metrics

	cron    *cron.Cron
	entryID cron.EntryID
	running bool

	mu     sync.RWMutex
	probes map[string]Probe
	sweep  sync.Mutex // one sweep at a time
}

// NewConnectivityMonitor creates a monitor probing at most parallelism
// targets at once.
func NewConnectivityMonitor(workflows *WorkflowService, prober Prober, parallelism int, metrics *observability.Metrics) *ConnectivityMonitor {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &ConnectivityMonitor{
		workflows:   workflows,
		prober:      prober,
		parallelism: parallelism,
		metrics:     metrics,
		cron:        cron.New(cron.WithSeconds()),
		probes:      make(map[string]Probe),
	}
}

// Start registers the sweep on a cron schedule (6 fields with seconds, or
// standard 5 fields) and starts the scheduler.
func (m *ConnectivityMonitor) Start(schedule string) error {
	sched, err := parseCronExpr(schedule)
	if err != nil {
		return fmt.Errorf("parse monitor schedule %q: %w", schedule, err)
	}
	m.entryID = m.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := m.RunOnce(context.Background()); err != nil {
			slog.Warn("monitor: sweep failed", "err", err)
		}
	}))
	m.cron.Start()
	m.running = true
	slog.Info("monitor: started", "schedule", schedule, "next", m.cron.Entry(m.entryID).Next)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (m *ConnectivityMonitor) Stop() {
	if !m.running {
		return
	}
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.running = false
	slog.Info("monitor: stopped")
}

// RunOnce probes every workflow with a target URL and returns the results
// sorted by workflow ID. Individual probe failures are recorded, not
// returned.
func (m *ConnectivityMonitor) RunOnce(ctx context.Context) ([]Probe, error) {
	m.sweep.Lock()
	defer m.sweep.Unlock()

	list, err := m.workflows.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	var targets []string
	for _, wf := range list {
		if wf.Configured() {
			targets = append(targets, wf.ID)
		}
	}

	results := make([]Probe, len(targets))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, id := range targets {
		i, id := i, id
		g.Go(func() error {
			results[i] = m.probe(gCtx, id)
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	for _, p := range results {
		m.probes[p.WorkflowID] = p
	}
	m.mu.Unlock()

	for _, p := range results {
		m.metrics.SetMonitorReachable(p.WorkflowID, p.Reachable)
	}
	slog.Info("monitor: sweep done", "probed", len(results))
	return results, nil
}

func (m *ConnectivityMonitor) probe(ctx context.Context, id string) Probe {
	p := Probe{WorkflowID: id}
	wf, err := m.workflows.Resolve(ctx, id)
	if err == nil {
		p.Reachable, err = m.prober.TestConnection(ctx, wf)
	}
	p.CheckedAt = time.Now()
	if err != nil {
		p.Reachable = false
		p.Error = err.Error()
		slog.Warn("monitor: probe failed", "workflow_id", id, "err", err)
	}
	return p
}

// Probes returns the latest probe of every workflow, sorted by ID.
func (m *ConnectivityMonitor) Probes() []Probe {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Probe, 0, len(m.probes))
	for _, p := range m.probes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out
}

// Forget drops the probe of a deleted workflow.
func (m *ConnectivityMonitor) Forget(workflowID string) {
	m.mu.Lock()
	delete(m.probes, workflowID)
	m.mu.Unlock()
	m.metrics.ForgetWorkflow(workflowID)
}

// parseCronExpr accepts 6-field (with seconds) or standard 5-field specs,
// plus descriptors such as "@every 5m".
func parseCronExpr(expr string) (cron.Schedule, error) {
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser6.Parse(expr)
	if err == nil {
		return sched, nil
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser5.Parse(expr)
}

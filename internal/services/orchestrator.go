package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soochol/hookboard/internal/hookboard"
	"github.com/soochol/hookboard/internal/observability"
	"github.com/soochol/hookboard/internal/repository"
	"github.com/soochol/hookboard/internal/webhook"
)

// Invoker performs trigger and reachability calls. *webhook.Proxy
// implements it.
type Invoker interface {
	Trigger(ctx context.Context, wf *hookboard.Workflow, params map[string]any) webhook.Outcome
	TestConnection(ctx context.Context, wf *hookboard.Workflow) (bool, error)
}

// DefaultStatusResetDelay is how long a terminal display status stays
// visible before returning to idle.
const DefaultStatusResetDelay = 3 * time.Second

// Orchestrator runs the trigger sequence: open a running execution, call
// the remote target, complete the execution, fold it into the workflow's
// statistics, and flash the terminal display status.
type Orchestrator struct {
	workflows  *WorkflowService
	execs      repository.ExecutionRepository
	invoker    Invoker
	limiter    *ConcurrencyLimiter
	board      *StatusBoard
	metrics    *observability.Metrics
	resetDelay time.Duration
	now        func() time.Time
	wg         sync.WaitGroup
}

// OrchestratorDeps groups the collaborators of an Orchestrator. Limiter,
// Board and Metrics are optional.
type OrchestratorDeps struct {
	Workflows  *WorkflowService
	Executions repository.ExecutionRepository
	Invoker    Invoker
	Limiter    *ConcurrencyLimiter
	Board      *StatusBoard
	Metrics    *observability.Metrics
	ResetDelay time.Duration
}

// NewOrchestrator creates an Orchestrator. A zero ResetDelay uses
// DefaultStatusResetDelay.
func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	if d.Limiter == nil {
		d.Limiter = NewConcurrencyLimiter(ConcurrencyLimits{})
	}
	if d.Board == nil {
		d.Board = NewStatusBoard()
	}
	if d.ResetDelay <= 0 {
		d.ResetDelay = DefaultStatusResetDelay
	}
	return &Orchestrator{
		workflows:  d.Workflows,
		execs:      d.Executions,
		invoker:    d.Invoker,
		limiter:    d.Limiter,
		board:      d.Board,
		metrics:    d.Metrics,
		resetDelay: d.ResetDelay,
		now:        time.Now,
	}
}

// Board returns the display status board.
func (o *Orchestrator) Board() *StatusBoard { return o.board }

// TriggerWorkflow starts a trigger and returns the running execution once
// it is durably stored. The remote call and completion happen in the
// background; callers observe the outcome through the execution store and
// the status board. A workflow without a target URL fails synchronously
// with a configuration_missing *webhook.TriggerError and no execution.
func (o *Orchestrator) TriggerWorkflow(ctx context.Context, workflowID string, params map[string]any) (*hookboard.Execution, error) {
	wf, err := o.workflows.Resolve(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Configured() {
		return nil, webhook.ErrConfigurationMissing(wf.Name)
	}

	exec := hookboard.NewExecution(wf, params, o.now())
	if err := o.workflows.OpenExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("open execution: %w", err)
	}
	o.board.Set(wf.ID, hookboard.DisplayRunning)
	o.metrics.ExecutionStarted()
	slog.Info("trigger started", "workflow_id", wf.ID, "execution_id", exec.ID)

	started := exec.Clone()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(context.WithoutCancel(ctx), wf, exec)
	}()
	return started, nil
}

// TestConnection probes a workflow's target without creating an execution.
func (o *Orchestrator) TestConnection(ctx context.Context, workflowID string) (bool, error) {
	wf, err := o.workflows.Resolve(ctx, workflowID)
	if err != nil {
		return false, err
	}
	ok, err := o.invoker.TestConnection(ctx, wf)
	o.metrics.RecordConnectionTest(ok, err)
	return ok, err
}

// Wait blocks until all background trigger sequences have finished or ctx
// is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, wf *hookboard.Workflow, exec *hookboard.Execution) {
	var out webhook.Outcome
	callStart := o.now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("trigger panicked", "workflow_id", wf.ID, "execution_id", exec.ID, "panic", r)
			out = webhook.Outcome{Kind: webhook.OutcomeFailure, Err: &webhook.TriggerError{
				Kind:    webhook.KindNetworkError,
				Message: fmt.Sprintf("internal error while triggering: %v", r),
			}}
		}
		o.complete(ctx, wf, exec, out, o.now().Sub(callStart))
	}()

	if err := o.limiter.Acquire(ctx, wf.ID); err != nil {
		out = webhook.Outcome{Kind: webhook.OutcomeFailure, Err: &webhook.TriggerError{
			Kind: webhook.KindNetworkError, Message: "trigger cancelled while queued", Err: err,
		}}
		return
	}
	defer o.limiter.Release(wf.ID)

	callStart = o.now()
	out = o.invoker.Trigger(ctx, wf, exec.Params)
}

func (o *Orchestrator) complete(ctx context.Context, wf *hookboard.Workflow, exec *hookboard.Execution, out webhook.Outcome, callTime time.Duration) {
	end := o.now()
	kind := ""
	if out.Succeeded() {
		_ = exec.Succeed(end, out.Payload)
	} else {
		msg := "workflow trigger failed"
		if out.Err != nil {
			kind = string(out.Err.Kind)
			msg = out.Err.Error()
		}
		_ = exec.Fail(end, kind, msg)
	}

	if err := o.execs.Update(ctx, exec); err != nil {
		slog.Error("persist completed execution failed", "execution_id", exec.ID, "err", err)
	}
	if _, err := o.workflows.RecordExecution(ctx, exec); err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, repository.ErrNotFound) {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "statistics update skipped", "workflow_id", wf.ID, "err", err)
	}

	display := hookboard.DisplaySuccess
	if exec.Status == hookboard.ExecutionFailed {
		display = hookboard.DisplayFailed
	}
	gen := o.board.Set(wf.ID, display)
	o.board.ResetAfter(wf.ID, gen, o.resetDelay)

	o.metrics.RecordTrigger(string(out.Kind), kind, out.Attempts, callTime)
	slog.Info("trigger finished",
		"workflow_id", wf.ID,
		"execution_id", exec.ID,
		"status", exec.Status,
		"outcome", out.Kind,
		"method", out.Method,
		"attempts", out.Attempts,
		"duration_ms", *exec.DurationMs,
	)
}

package hookboard

import (
	"errors"
	"time"
)

// ExecutionStatus is the lifecycle state of one trigger attempt.
// running is the only non-terminal state.
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Terminal reports whether s is success or failed.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed
}

// ErrExecutionCompleted is returned when completing an execution that has
// already reached a terminal state.
var ErrExecutionCompleted = errors.New("execution already completed")

// Execution is one timestamped attempt to trigger a workflow.
// Result and Error are mutually exclusive once the execution is terminal.
type Execution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	WorkflowName string          `json:"workflow_name"` // snapshot at trigger time
	Status       ExecutionStatus `json:"status"`
	Params       map[string]any  `json:"params,omitempty"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	DurationMs   *int64          `json:"duration_ms,omitempty"`
	Result       any             `json:"result,omitempty"`
	Error        *string         `json:"error,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
}

// NewExecution opens a running execution for wf starting at now.
func NewExecution(wf *Workflow, params map[string]any, now time.Time) *Execution {
	return &Execution{
		ID:           NewExecutionID(wf.ID),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Status:       ExecutionRunning,
		Params:       params,
		StartTime:    now,
	}
}

// Succeed completes the execution as success with the given result.
func (e *Execution) Succeed(end time.Time, result any) error {
	if e.Status.Terminal() {
		return ErrExecutionCompleted
	}
	if result == nil {
		result = map[string]any{}
	}
	e.finish(end)
	e.Status = ExecutionSuccess
	e.Result = result
	return nil
}

// Fail completes the execution as failed. An empty message is replaced so
// that a failed execution always carries a non-empty error.
func (e *Execution) Fail(end time.Time, kind, msg string) error {
	if e.Status.Terminal() {
		return ErrExecutionCompleted
	}
	if msg == "" {
		msg = "workflow trigger failed"
	}
	e.finish(end)
	e.Status = ExecutionFailed
	e.Error = &msg
	e.ErrorKind = kind
	return nil
}

// Duration returns the recorded duration, or zero while running.
func (e *Execution) Duration() time.Duration {
	if e.DurationMs == nil {
		return 0
	}
	return time.Duration(*e.DurationMs) * time.Millisecond
}

func (e *Execution) finish(end time.Time) {
	if end.Before(e.StartTime) {
		end = e.StartTime
	}
	d := end.Sub(e.StartTime).Milliseconds()
	e.EndTime = &end
	e.DurationMs = &d
}

// Clone returns a copy safe to hand to another goroutine. Params and Result
// are shared; they are never mutated after creation.
func (e *Execution) Clone() *Execution {
	c := *e
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	if e.DurationMs != nil {
		d := *e.DurationMs
		c.DurationMs = &d
	}
	if e.Error != nil {
		s := *e.Error
		c.Error = &s
	}
	return &c
}

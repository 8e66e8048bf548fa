package hookboard

import (
	"sort"
	"time"
)

// DisplayStatus is the cosmetic, derived state shown for a workflow.
// The authoritative state is the latest Execution of that workflow.
type DisplayStatus string

const (
	DisplayIdle    DisplayStatus = "idle"
	DisplayRunning DisplayStatus = "running"
	DisplaySuccess DisplayStatus = "success"
	DisplayFailed  DisplayStatus = "failed"
)

// DefaultSuccessRate is reported for workflows that have never run.
const DefaultSuccessRate = 100

// InputField describes one advisory input of a workflow's input form.
// The schema is metadata for the UI and is not validated server-side.
type InputField struct {
	Name        string `json:"name"                  yaml:"name"`
	Type        string `json:"type"                  yaml:"type"` // "text" | "textarea" | "number" | ...
	Label       string `json:"label,omitempty"       yaml:"label,omitempty"`
	Required    bool   `json:"required"              yaml:"required"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// Workflow is a user-configured reference to an externally hosted
// automation, reachable only through its TargetURL.
type Workflow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TargetURL   string `json:"target_url"` // empty means "not configured"

	// Headers are sent with every trigger attempt. Values are encrypted at rest.
	Headers map[string]string `json:"headers,omitempty"`

	RequiresInput bool         `json:"requires_input"`
	InputSchema   []InputField `json:"input_schema,omitempty"`

	// Rolling statistics, mutated only by the statistics aggregator.
	ExecutionCount     int        `json:"execution_count"`
	SuccessRate        int        `json:"success_rate"`
	AvgExecutionTimeMs int64      `json:"avg_execution_time_ms"`
	LastRunAt          *time.Time `json:"last_run_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Configured reports whether the workflow has a target URL.
func (w *Workflow) Configured() bool {
	return w.TargetURL != ""
}

// Clone returns a deep copy so callers can mutate it without racing
// readers of the stored value.
func (w *Workflow) Clone() *Workflow {
	c := *w
	if w.Headers != nil {
		c.Headers = make(map[string]string, len(w.Headers))
		for k, v := range w.Headers {
			c.Headers[k] = v
		}
	}
	if w.InputSchema != nil {
		c.InputSchema = append([]InputField(nil), w.InputSchema...)
	}
	if w.LastRunAt != nil {
		t := *w.LastRunAt
		c.LastRunAt = &t
	}
	return &c
}

// WorkflowSafe is the API view of a Workflow: header values are withheld
// and the derived display status is attached.
type WorkflowSafe struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	TargetURL          string        `json:"target_url"`
	HeaderNames        []string      `json:"header_names,omitempty"`
	RequiresInput      bool          `json:"requires_input"`
	InputSchema        []InputField  `json:"input_schema,omitempty"`
	Status             DisplayStatus `json:"status"`
	ExecutionCount     int           `json:"execution_count"`
	SuccessRate        int           `json:"success_rate"`
	AvgExecutionTimeMs int64         `json:"avg_execution_time_ms"`
	LastRunAt          *time.Time    `json:"last_run_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Safe returns the API view of w with the given display status.
func (w *Workflow) Safe(status DisplayStatus) WorkflowSafe {
	var names []string
	for k := range w.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return WorkflowSafe{
		ID:                 w.ID,
		Name:               w.Name,
		Description:        w.Description,
		TargetURL:          w.TargetURL,
		HeaderNames:        names,
		RequiresInput:      w.RequiresInput,
		InputSchema:        w.InputSchema,
		Status:             status,
		ExecutionCount:     w.ExecutionCount,
		SuccessRate:        w.SuccessRate,
		AvgExecutionTimeMs: w.AvgExecutionTimeMs,
		LastRunAt:          w.LastRunAt,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

package webhook

import (
	"strconv"
	"time"
)

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeFailure     OutcomeKind = "failure"
	OutcomeSoftTimeout OutcomeKind = "soft_timeout"
)

// Outcome is the classified result of one trigger. It is transient and is
// folded into an Execution by the orchestrator.
type Outcome struct {
	Kind       OutcomeKind
	Payload    any           // success and soft timeout
	Err        *TriggerError // failure only
	Method     string        // method of the final attempt
	Attempts   int
	StatusCode int
	Complex    bool
	Timeout    time.Duration
}

// Succeeded reports success, including soft timeouts.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeSoftTimeout
}

// softTimeoutPayload is the synthetic result recorded when a complex
// workflow accepted the request but did not answer in time.
func softTimeoutPayload(now time.Time) map[string]any {
	return map[string]any{
		"status":        "triggered",
		"message":       "Workflow started successfully (may continue in background)",
		"execution_ref": "timeout-" + strconv.FormatInt(now.UnixMilli(), 10),
	}
}

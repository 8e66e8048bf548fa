package services

import (
	"math"

	"github.com/soochol/hookboard/internal/hookboard"
)

// ApplyExecution folds a completed execution into a copy of wf's rolling
// statistics and returns the copy. Non-terminal executions leave the
// statistics unchanged.
//
// The recomputation is incremental: the previous success count is
// recovered from the rounded success rate, and the mean from the rounded
// average. Over long sequences both can drift slightly from the exact
// historical values. This is a known approximation, not an exact figure.
func ApplyExecution(wf *hookboard.Workflow, exec *hookboard.Execution) *hookboard.Workflow {
	out := wf.Clone()
	if !exec.Status.Terminal() {
		return out
	}

	prev := wf.ExecutionCount
	count := prev + 1

	successes := math.Round(float64(wf.SuccessRate) * float64(prev) / 100)
	if exec.Status == hookboard.ExecutionSuccess {
		successes++
	}

	var duration int64
	if exec.DurationMs != nil {
		duration = *exec.DurationMs
	}

	out.ExecutionCount = count
	out.SuccessRate = int(math.Round(successes / float64(count) * 100))
	if prev == 0 {
		out.AvgExecutionTimeMs = duration
	} else {
		total := float64(wf.AvgExecutionTimeMs)*float64(prev) + float64(duration)
		out.AvgExecutionTimeMs = int64(math.Round(total / float64(count)))
	}
	if exec.EndTime != nil {
		t := *exec.EndTime
		out.LastRunAt = &t
	}
	return out
}

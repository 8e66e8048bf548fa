package webhook

import (
	"strings"
	"time"

	"github.com/soochol/hookboard/internal/hookboard"
)

// ComplexityHint guesses whether a workflow is long-running. It only picks
// the timeout and soft-timeout behaviour and is best-effort by nature: a
// wrong guess changes how a slow call is reported, never what is sent.
type ComplexityHint func(wf *hookboard.Workflow) bool

// DefaultKeywords match names and URLs of typically long-running workflows.
var DefaultKeywords = []string{"chain", "flow", "complex", "multi", "monitoring", "influencer", "long", "batch"}

// KeywordHint matches keywords case-insensitively against name and URL.
func KeywordHint(keywords []string) ComplexityHint {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return func(wf *hookboard.Workflow) bool {
		haystack := strings.ToLower(wf.Name + " " + wf.TargetURL)
		for _, k := range lowered {
			if strings.Contains(haystack, k) {
				return true
			}
		}
		return false
	}
}

// ObservedHint reports a workflow as complex when its observed average
// duration exceeds threshold. Never-run workflows are not complex.
func ObservedHint(threshold time.Duration) ComplexityHint {
	return func(wf *hookboard.Workflow) bool {
		return wf.ExecutionCount > 0 && time.Duration(wf.AvgExecutionTimeMs)*time.Millisecond > threshold
	}
}

// DefaultHint prefers observed history and falls back to keywords for
// workflows that have never run.
func DefaultHint(threshold time.Duration, keywords []string) ComplexityHint {
	observed := ObservedHint(threshold)
	named := KeywordHint(keywords)
	return func(wf *hookboard.Workflow) bool {
		if wf.ExecutionCount > 0 {
			return observed(wf)
		}
		return named(wf)
	}
}

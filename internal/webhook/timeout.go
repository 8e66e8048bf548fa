package webhook

import "time"

// Intent is the declared purpose of a call.
type Intent string

const (
	IntentTest    Intent = "test"
	IntentTrigger Intent = "trigger"
)

// Timeouts holds the per-attempt deadlines.
type Timeouts struct {
	Test    time.Duration // diagnostics, fail fast
	Simple  time.Duration // real triggers; timeout is a failure
	Complex time.Duration // real triggers; timeout is a soft success
}

// DefaultTimeouts returns 10s / 30s / 15s.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Test:    10 * time.Second,
		Simple:  30 * time.Second,
		Complex: 15 * time.Second,
	}
}

// TimeoutFor selects the deadline for an attempt. Test calls ignore the
// complexity hint.
func (t Timeouts) TimeoutFor(intent Intent, complex bool) time.Duration {
	switch {
	case intent == IntentTest:
		return t.Test
	case complex:
		return t.Complex
	default:
		return t.Simple
	}
}

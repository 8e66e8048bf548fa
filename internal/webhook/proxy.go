package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/soochol/hookboard/internal/hookboard"
)

// TestMessage is sent in the body of connection tests.
const TestMessage = "Connection test from hookboard"

// Proxy combines the fallback strategy, the timeout policy and error
// classification. Only *TriggerError leaves it.
type Proxy struct {
	fallback *Fallback
	timeouts Timeouts
	hint     ComplexityHint
	now      func() time.Time
}

// NewProxy creates a Proxy. A nil hint uses DefaultHint with a 30s
// threshold and DefaultKeywords.
func NewProxy(caller *Caller, timeouts Timeouts, hint ComplexityHint) *Proxy {
	return newProxy(caller, timeouts, hint)
}

func newProxy(caller doer, timeouts Timeouts, hint ComplexityHint) *Proxy {
	if hint == nil {
		hint = DefaultHint(30*time.Second, DefaultKeywords)
	}
	return &Proxy{
		fallback: NewFallback(caller),
		timeouts: timeouts,
		hint:     hint,
		now:      time.Now,
	}
}

// Trigger invokes wf's target with params. A workflow without a target URL
// fails with configuration_missing before any network I/O.
func (p *Proxy) Trigger(ctx context.Context, wf *hookboard.Workflow, params map[string]any) Outcome {
	if !wf.Configured() {
		return Outcome{Kind: OutcomeFailure, Err: ErrConfigurationMissing(wf.Name)}
	}

	isComplex := p.hint(wf)
	timeout := p.timeouts.TimeoutFor(IntentTrigger, isComplex)
	if params == nil {
		params = map[string]any{}
	}

	res, err := p.fallback.Invoke(ctx, Invocation{
		URL:     wf.TargetURL,
		Headers: wf.Headers,
		Params:  params,
		Timeout: timeout,
	})
	out := Outcome{
		Method:     res.Method,
		Attempts:   res.Attempts,
		StatusCode: res.StatusCode,
		Complex:    isComplex,
		Timeout:    timeout,
	}

	switch {
	case err != nil:
		out.Kind = OutcomeFailure
		out.Err = networkError(err)
	case res.TimedOut && isComplex:
		slog.Info("complex workflow did not answer in time, treating as started",
			"workflow_id", wf.ID, "timeout", timeout)
		out.Kind = OutcomeSoftTimeout
		out.Payload = softTimeoutPayload(p.now())
	case res.TimedOut:
		out.Kind = OutcomeFailure
		out.Err = timeoutError(timeout.String())
	case res.OK():
		out.Kind = OutcomeSuccess
		out.Payload = parsePayload(res.Body)
	default:
		out.Kind = OutcomeFailure
		out.Err = classifyStatus(res.StatusCode, res.Body)
	}
	return out
}

// TestConnection probes wf's target and reports whether something is
// listening and not crashing (status < 500). 4xx is reachable. Timeouts and
// network failures are returned as errors.
func (p *Proxy) TestConnection(ctx context.Context, wf *hookboard.Workflow) (bool, error) {
	if !wf.Configured() {
		return false, ErrConfigurationMissing(wf.Name)
	}

	timestamp := p.now().UTC().Format(time.RFC3339)
	timeout := p.timeouts.TimeoutFor(IntentTest, false)
	res, err := p.fallback.Invoke(ctx, Invocation{
		URL:     wf.TargetURL,
		Headers: wf.Headers,
		Params: map[string]any{
			"test":      true,
			"timestamp": timestamp,
			"message":   TestMessage,
		},
		Query: map[string]any{
			"test":      true,
			"timestamp": timestamp,
		},
		Timeout: timeout,
	})
	if err != nil {
		return false, networkError(err)
	}
	if res.TimedOut {
		return false, timeoutError(timeout.String())
	}
	return res.StatusCode < 500, nil
}

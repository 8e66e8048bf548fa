package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// doer issues one attempt. *Caller implements it.
type doer interface {
	Call(ctx context.Context, req Request) (Attempt, error)
}

// Invocation is one logical call against a target, possibly spanning a
// POST and a GET attempt.
type Invocation struct {
	URL     string
	Headers map[string]string
	Params  map[string]any // POST body
	Query   map[string]any // GET fallback parameters; nil uses Params
	Timeout time.Duration  // per attempt
}

// Result is the final attempt of an invocation.
type Result struct {
	Attempt
	Attempts int
}

// Fallback tries POST first and retries once with GET only when the POST
// answered 404. Timeouts and every other status are terminal.
type Fallback struct {
	caller doer
}

// NewFallback creates a Fallback over the given caller.
func NewFallback(caller doer) *Fallback {
	return &Fallback{caller: caller}
}

// Invoke runs the POST→GET sequence. The returned error is a transport
// failure of the last attempt; HTTP statuses are reported in Result.
func (f *Fallback) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	post, err := f.caller.Call(ctx, Request{
		Method:  http.MethodPost,
		URL:     inv.URL,
		Headers: inv.Headers,
		Body:    inv.Params,
		Timeout: inv.Timeout,
	})
	if err != nil {
		return Result{Attempt: post, Attempts: 1}, err
	}
	if post.TimedOut || post.StatusCode != http.StatusNotFound {
		return Result{Attempt: post, Attempts: 1}, nil
	}

	query := inv.Query
	if query == nil {
		query = inv.Params
	}
	getURL, err := BuildQueryURL(inv.URL, query)
	if err != nil {
		return Result{Attempt: post, Attempts: 1}, err
	}
	slog.Info("webhook POST returned 404, retrying with GET", "url", inv.URL)

	get, err := f.caller.Call(ctx, Request{
		Method:  http.MethodGet,
		URL:     getURL,
		Headers: inv.Headers,
		Timeout: inv.Timeout,
	})
	return Result{Attempt: get, Attempts: 2}, err
}

// BuildQueryURL appends every key of params to target's query string
// exactly once, replacing any existing value for the same key.
func BuildQueryURL(target string, params map[string]any) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, Stringify(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stringify coerces a parameter value to its query-string form.
// Primitives use their plain string conversion. Objects and arrays are
// encoded as JSON: they survive as text but lose their structure as query
// parameters.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// parsePayload decodes a 2xx body as JSON, falling back to
// {"message": raw} for non-JSON receivers.
func parsePayload(body string) any {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil || v == nil {
		return map[string]any{"message": body}
	}
	return v
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultMaxResponseBytes caps how much of a response body is read.
const DefaultMaxResponseBytes = 1 << 20

// Attempt is the normalized result of one HTTP attempt.
type Attempt struct {
	Method     string
	StatusCode int
	Body       string
	TimedOut   bool
}

// OK reports a 2xx response.
func (a Attempt) OK() bool {
	return !a.TimedOut && a.StatusCode >= 200 && a.StatusCode < 300
}

// Request describes a single attempt. For GET, URL must already carry the
// query string; Body is ignored.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// Caller issues single HTTP attempts. It never retries: retries belong to
// the fallback strategy so that timeouts are accounted per attempt.
type Caller struct {
	client  *resty.Client
	maxBody int
}

// NewCaller creates a Caller. maxBody <= 0 uses DefaultMaxResponseBytes.
func NewCaller(maxBody int) *Caller {
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	client := resty.New().
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Caller{client: client, maxBody: maxBody}
}

// Call performs one attempt. A deadline hit is reported as Attempt.TimedOut
// with a nil error; any other transport failure is returned as an error.
func (c *Caller) Call(ctx context.Context, req Request) (Attempt, error) {
	attempt := Attempt{Method: req.Method}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// The body is read here, at most maxBody bytes of it.
	r := c.client.R().
		SetContext(reqCtx).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json").
		SetHeaders(req.Headers)

	if req.Method == http.MethodPost {
		body := req.Body
		if body == nil {
			body = map[string]any{}
		}
		data, err := json.Marshal(body)
		if err != nil {
			return attempt, fmt.Errorf("encode request body: %w", err)
		}
		r.SetBody(data)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		if isTimeout(reqCtx, err) && ctx.Err() == nil {
			attempt.TimedOut = true
			return attempt, nil
		}
		return attempt, err
	}

	raw := resp.RawBody()
	defer raw.Close()

	attempt.StatusCode = resp.StatusCode()
	body, err := io.ReadAll(io.LimitReader(raw, int64(c.maxBody)))
	if err != nil {
		if isTimeout(reqCtx, err) && ctx.Err() == nil {
			attempt.TimedOut = true
			return attempt, nil
		}
		return attempt, fmt.Errorf("read response body: %w", err)
	}
	attempt.Body = string(body)
	return attempt, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

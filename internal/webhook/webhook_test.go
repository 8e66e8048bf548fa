package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/hookboard/internal/hookboard"
)

// receiver records every request it sees and answers per method.
type receiver struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	handle   func(w http.ResponseWriter, r *http.Request)
}

func newReceiver(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*receiver, *httptest.Server) {
	t.Helper()
	rc := &receiver{handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rc.mu.Lock()
		rc.requests = append(rc.requests, r.Clone(context.Background()))
		rc.bodies = append(rc.bodies, string(body))
		rc.mu.Unlock()
		rc.handle(w, r)
	}))
	t.Cleanup(srv.Close)
	return rc, srv
}

func (rc *receiver) count(method string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	n := 0
	for _, r := range rc.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (rc *receiver) last(method string) *http.Request {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for i := len(rc.requests) - 1; i >= 0; i-- {
		if rc.requests[i].Method == method {
			return rc.requests[i]
		}
	}
	return nil
}

func testTimeouts() Timeouts {
	return Timeouts{Test: 200 * time.Millisecond, Simple: 200 * time.Millisecond, Complex: 100 * time.Millisecond}
}

func never(*hookboard.Workflow) bool  { return false }
func always(*hookboard.Workflow) bool { return true }

func wfFor(url string) *hookboard.Workflow {
	return &hookboard.Workflow{ID: "wf-1", Name: "Daily report", TargetURL: url}
}

// blockUntilGone holds the response until the client gives up.
func blockUntilGone(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(3 * time.Second):
	}
}

func TestTriggerPostSuccessParsesJSON(t *testing.T) {
	rc, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"rows":3}`))
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(srv.URL), map[string]any{"city": "Seoul"})

	require.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, map[string]any{"ok": true, "rows": float64(3)}, out.Payload)
	assert.Equal(t, http.MethodPost, out.Method)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 0, rc.count(http.MethodGet))

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(rc.bodies[0]), &sent))
	assert.Equal(t, "Seoul", sent["city"])
	assert.Equal(t, "application/json", rc.last(http.MethodPost).Header.Get("Content-Type"))
}

func TestTriggerNonJSONBodyFallsBackToMessage(t *testing.T) {
	_, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Workflow was started"))
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(srv.URL), nil)

	require.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, map[string]any{"message": "Workflow was started"}, out.Payload)
}

func TestTriggerFallsBackToGetOnlyOn404(t *testing.T) {
	rc, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"via":"get"}`))
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)
	params := map[string]any{"name": "kim", "count": float64(2), "dry": true, "tags": []any{"a", "b"}}

	out := p.Trigger(context.Background(), wfFor(srv.URL+"/hook"), params)

	require.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, 1, rc.count(http.MethodPost))
	assert.Equal(t, 1, rc.count(http.MethodGet))
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, http.MethodGet, out.Method)

	q := rc.last(http.MethodGet).URL.Query()
	assert.Len(t, q, len(params))
	for k := range params {
		assert.Len(t, q[k], 1, "key %s", k)
	}
	assert.Equal(t, "kim", q.Get("name"))
	assert.Equal(t, "2", q.Get("count"))
	assert.Equal(t, "true", q.Get("dry"))
	assert.Equal(t, `["a","b"]`, q.Get("tags"))
}

func TestTriggerServerErrorDoesNotFallBack(t *testing.T) {
	rc, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(srv.URL), map[string]any{"a": "b"})

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.Equal(t, KindServerError, out.Err.Kind)
	assert.Equal(t, 500, out.Err.StatusCode)
	assert.Contains(t, out.Err.Detail, "boom")
	assert.Equal(t, 0, rc.count(http.MethodGet))
}

func TestTriggerClientErrorDoesNotFallBack(t *testing.T) {
	rc, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(srv.URL), nil)

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.Equal(t, KindClientError, out.Err.Kind)
	assert.Equal(t, 0, rc.count(http.MethodGet))
}

func TestTriggerNotFoundAfterFallback(t *testing.T) {
	_, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"The requested webhook \"abc\" is not registered."}`))
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(srv.URL), nil)

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.Equal(t, KindNotFound, out.Err.Kind)
	assert.Equal(t, 2, out.Attempts)
	assert.Contains(t, out.Err.Message, "activate the remote workflow")
}

func TestTriggerComplexTimeoutIsSoftSuccess(t *testing.T) {
	rc, srv := newReceiver(t, blockUntilGone)
	p := NewProxy(NewCaller(0), testTimeouts(), always)
	fixed := time.UnixMilli(1700000000123)
	p.now = func() time.Time { return fixed }

	out := p.Trigger(context.Background(), wfFor(srv.URL), nil)

	require.Equal(t, OutcomeSoftTimeout, out.Kind)
	assert.True(t, out.Succeeded())
	assert.Nil(t, out.Err)
	payload := out.Payload.(map[string]any)
	assert.Equal(t, "triggered", payload["status"])
	assert.Equal(t, "timeout-1700000000123", payload["execution_ref"])
	assert.Equal(t, 0, rc.count(http.MethodGet))
}

func TestTriggerSimpleTimeoutFails(t *testing.T) {
	rc, srv := newReceiver(t, blockUntilGone)
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(srv.URL), nil)

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.Equal(t, KindTimeout, out.Err.Kind)
	assert.Equal(t, 200*time.Millisecond, out.Timeout)
	assert.Equal(t, 0, rc.count(http.MethodGet))
}

func TestTriggerConfigurationMissing(t *testing.T) {
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), &hookboard.Workflow{ID: "wf-x", Name: "Empty"}, nil)

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.Equal(t, KindConfigurationMissing, out.Err.Kind)
	assert.Equal(t, 0, out.Attempts)
}

func TestTriggerNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	p := NewProxy(NewCaller(0), testTimeouts(), never)

	out := p.Trigger(context.Background(), wfFor(url), nil)

	require.Equal(t, OutcomeFailure, out.Kind)
	assert.Equal(t, KindNetworkError, out.Err.Kind)
	assert.Equal(t, KindNetworkError, KindOf(out.Err))
}

func TestTriggerSendsConfiguredHeaders(t *testing.T) {
	rc, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	p := NewProxy(NewCaller(0), testTimeouts(), never)
	wf := wfFor(srv.URL)
	wf.Headers = map[string]string{"Authorization": "Bearer secret"}

	out := p.Trigger(context.Background(), wf, nil)

	require.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, "Bearer secret", rc.last(http.MethodPost).Header.Get("Authorization"))
}

func TestCallerTruncatesLargeBodies(t *testing.T) {
	_, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	})
	c := NewCaller(4)

	a, err := c.Call(context.Background(), Request{Method: http.MethodPost, URL: srv.URL})

	require.NoError(t, err)
	assert.Equal(t, "0123", a.Body)
}

func TestCallerStopsReadingAtCap(t *testing.T) {
	_, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		w.(http.Flusher).Flush()
		// The rest of the body never arrives.
		blockUntilGone(w, r)
	})
	c := NewCaller(16)

	start := time.Now()
	a, err := c.Call(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Timeout: 2 * time.Second})

	require.NoError(t, err)
	assert.False(t, a.TimedOut)
	assert.Equal(t, http.StatusOK, a.StatusCode)
	assert.Equal(t, strings.Repeat("x", 16), a.Body)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTestConnection(t *testing.T) {
	t.Run("get fallback carries test query", func(t *testing.T) {
		rc, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		p := NewProxy(NewCaller(0), testTimeouts(), never)

		ok, err := p.TestConnection(context.Background(), wfFor(srv.URL))

		require.NoError(t, err)
		assert.True(t, ok)
		q := rc.last(http.MethodGet).URL.Query()
		assert.Equal(t, "true", q.Get("test"))
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Empty(t, q.Get("message"))

		var sent map[string]any
		require.NoError(t, json.Unmarshal([]byte(rc.bodies[0]), &sent))
		assert.Equal(t, TestMessage, sent["message"])
		assert.Equal(t, true, sent["test"])
	})

	t.Run("client error is reachable", func(t *testing.T) {
		_, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		p := NewProxy(NewCaller(0), testTimeouts(), never)

		ok, err := p.TestConnection(context.Background(), wfFor(srv.URL))

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("server error is unreachable", func(t *testing.T) {
		_, srv := newReceiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		p := NewProxy(NewCaller(0), testTimeouts(), never)

		ok, err := p.TestConnection(context.Background(), wfFor(srv.URL))

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("timeout is an error", func(t *testing.T) {
		_, srv := newReceiver(t, blockUntilGone)
		p := NewProxy(NewCaller(0), testTimeouts(), always)

		_, err := p.TestConnection(context.Background(), wfFor(srv.URL))

		assert.Equal(t, KindTimeout, KindOf(err))
	})

	t.Run("missing url", func(t *testing.T) {
		p := NewProxy(NewCaller(0), testTimeouts(), never)

		_, err := p.TestConnection(context.Background(), &hookboard.Workflow{Name: "x"})

		assert.Equal(t, KindConfigurationMissing, KindOf(err))
	})
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{true, "true"},
		{float64(1.5), "1.5"},
		{float64(10), "10"},
		{42, "42"},
		{nil, "null"},
		{map[string]any{"a": float64(1)}, `{"a":1}`},
		{[]any{"x", float64(2)}, `["x",2]`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Stringify(c.in))
	}
}

func TestBuildQueryURLReplacesExistingKey(t *testing.T) {
	got, err := BuildQueryURL("https://hooks.example.com/run?token=abc&name=old", map[string]any{"name": "new"})

	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/run?name=new&token=abc", got)
}

func TestTimeoutFor(t *testing.T) {
	tt := DefaultTimeouts()

	assert.Equal(t, 10*time.Second, tt.TimeoutFor(IntentTest, true))
	assert.Equal(t, 10*time.Second, tt.TimeoutFor(IntentTest, false))
	assert.Equal(t, 30*time.Second, tt.TimeoutFor(IntentTrigger, false))
	assert.Equal(t, 15*time.Second, tt.TimeoutFor(IntentTrigger, true))
}

func TestDefaultHint(t *testing.T) {
	hint := DefaultHint(30*time.Second, DefaultKeywords)

	assert.True(t, hint(&hookboard.Workflow{Name: "Influencer Outreach"}))
	assert.True(t, hint(&hookboard.Workflow{Name: "x", TargetURL: "https://h.example.com/batch-import"}))
	assert.False(t, hint(&hookboard.Workflow{Name: "Send email"}))

	// Observed history wins over the name once the workflow has run.
	assert.False(t, hint(&hookboard.Workflow{Name: "Batch job", ExecutionCount: 4, AvgExecutionTimeMs: 2000}))
	assert.True(t, hint(&hookboard.Workflow{Name: "Send email", ExecutionCount: 4, AvgExecutionTimeMs: 45000}))
}

package webhook

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the fixed failure taxonomy seen by callers of the proxy.
type ErrorKind string

const (
	KindConfigurationMissing ErrorKind = "configuration_missing"
	KindNotFound             ErrorKind = "not_found"
	KindServerError          ErrorKind = "server_error"
	KindClientError          ErrorKind = "client_error"
	KindNetworkError         ErrorKind = "network_error"
	KindTimeout              ErrorKind = "timeout"
)

// maxDetail caps how much of a remote response body is kept in errors.
const maxDetail = 512

// TriggerError is a classified trigger failure. It is the only error type
// that leaves the Proxy.
type TriggerError struct {
	Kind       ErrorKind
	StatusCode int    // 0 when no response was received
	Message    string // actionable, user-facing text
	Detail     string // truncated response body or underlying error text
	Err        error
}

func (e *TriggerError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + " (" + e.Detail + ")"
}

func (e *TriggerError) Unwrap() error { return e.Err }

// KindOf returns the kind of a *TriggerError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var te *TriggerError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// ErrConfigurationMissing builds the precondition failure for a workflow
// without a target URL. No network I/O happens when this is returned.
func ErrConfigurationMissing(workflowName string) *TriggerError {
	return &TriggerError{
		Kind:    KindConfigurationMissing,
		Message: fmt.Sprintf("workflow %q has no target URL configured", workflowName),
	}
}

// classifyStatus maps a non-2xx final response to the taxonomy.
func classifyStatus(status int, body string) *TriggerError {
	detail := truncate(strings.TrimSpace(body), maxDetail)
	switch {
	case status == 404:
		msg := "webhook not found (404): check that the URL is correct and the remote workflow is activated"
		if strings.Contains(strings.ToLower(body), "not registered") {
			msg = "webhook not registered (404): activate the remote workflow, or run it manually once so its webhook is registered"
		}
		return &TriggerError{Kind: KindNotFound, StatusCode: status, Message: msg, Detail: detail}
	case status >= 500:
		return &TriggerError{
			Kind:       KindServerError,
			StatusCode: status,
			Message:    fmt.Sprintf("remote server error (HTTP %d): check the workflow configuration on the remote system", status),
			Detail:     detail,
		}
	default:
		return &TriggerError{
			Kind:       KindClientError,
			StatusCode: status,
			Message:    fmt.Sprintf("request rejected by remote endpoint (HTTP %d)", status),
			Detail:     detail,
		}
	}
}

func networkError(err error) *TriggerError {
	return &TriggerError{
		Kind:    KindNetworkError,
		Message: "unable to reach the webhook URL: check the URL and that the remote system is reachable",
		Detail:  err.Error(),
		Err:     err,
	}
}

func timeoutError(after string) *TriggerError {
	return &TriggerError{
		Kind:    KindTimeout,
		Message: "webhook did not answer within " + after,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

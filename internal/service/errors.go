package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sony/gobreaker/v2"
)

// ErrorKind classifies intent-pipeline failures
type ErrorKind string

const (
	// ErrUpstreamUnavailable: the completion service could not be reached (network, timeout, open breaker)
	ErrUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// ErrUpstreamError: the completion service answered with a non-2xx status or a malformed envelope
	ErrUpstreamError ErrorKind = "upstream_error"
	// ErrExtractionFailure: no JSON object could be recovered from the model text
	ErrExtractionFailure ErrorKind = "extraction_failure"
	// ErrInvalidField: one field of the recovered object could not be coerced; only that field is dropped
	ErrInvalidField ErrorKind = "invalid_field"
)

// IntentError is the tagged error returned by the intent pipeline
type IntentError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int    // set for ErrUpstreamError when the service answered
	Field      string // set for ErrInvalidField
	Err        error
}

func (e *IntentError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *IntentError) Unwrap() error {
	return e.Err
}

// TriggersFallback reports whether the failure replaces the whole intent with the fallback intent
func (k ErrorKind) TriggersFallback() bool {
	switch k {
	case ErrUpstreamUnavailable, ErrUpstreamError, ErrExtractionFailure:
		return true
	case ErrInvalidField:
		return false
	}
	return false
}

// Message is the user-facing description of the failure
func (k ErrorKind) Message() string {
	switch k {
	case ErrUpstreamUnavailable:
		return "无法连接到语言模型服务，已使用关键词查询"
	case ErrUpstreamError:
		return "语言模型服务返回错误，已使用关键词查询"
	case ErrExtractionFailure:
		return "无法解析语言模型的输出，已使用关键词查询"
	case ErrInvalidField:
		return "部分查询条件无效，已忽略"
	}
	return "查询解析失败"
}

// HTTPStatusError is a non-2xx answer from the completion service
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("completion %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("completion %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// errEnvelope marks a 2xx answer whose body could not be decoded
var errEnvelope = errors.New("malformed completion response")

// classifyCompletionError maps a transport-level failure to an IntentError
func classifyCompletionError(op string, err error) *IntentError {
	var intentErr *IntentError
	if errors.As(err, &intentErr) {
		return intentErr
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &IntentError{Kind: ErrUpstreamUnavailable, Op: op, Err: err}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return &IntentError{Kind: ErrUpstreamError, Op: op, StatusCode: statusErr.StatusCode, Err: err}
	}

	if errors.Is(err, errEnvelope) {
		return &IntentError{Kind: ErrUpstreamError, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &IntentError{Kind: ErrUpstreamUnavailable, Op: op, Err: err}
	}

	// Anything else failed before a usable answer arrived
	return &IntentError{Kind: ErrUpstreamUnavailable, Op: op, Err: err}
}

// countsAsBreakerFailure reports whether err should move the breaker towards open.
// Only unreachable upstreams and 5xx answers count.
func countsAsBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	if errors.Is(err, errEnvelope) {
		return false
	}
	return true
}

// Package apierr defines the gateway's error taxonomy and its mapping to
// HTTP responses. Every error returned to a caller is one of these; anything
// else is wrapped as an internal error before it reaches the wire.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes carried on Error.Code.
const (
	CodeUnauthorized        = "unauthorized"
	CodeRateLimited         = "rate_limited"
	CodeInvalidEndpoint     = "invalid_endpoint"
	CodeUnsupportedModel    = "unsupported_model"
	CodeProviderMismatch    = "provider_mismatch"
	CodeRequestTimeout      = "request_timeout"
	CodeUpstreamRateLimited = "upstream_rate_limited"
	CodeUpstreamError       = "upstream_error"
	CodeInternal            = "internal_error"
)

// Error is a caller-visible gateway error. RetryAfter, when positive, is
// rendered as a Retry-After header in seconds.
type Error struct {
	Code       string
	Status     int
	Message    string
	RetryAfter int
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Unauthorized covers missing, unknown, and inactive credentials.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

// RateLimited is the gateway's own quota rejection.
func RateLimited(resetSeconds int) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    "rate limit exceeded",
		RetryAfter: resetSeconds,
	}
}

func InvalidEndpoint(msg string) *Error {
	return &Error{Code: CodeInvalidEndpoint, Status: http.StatusBadRequest, Message: msg}
}

func UnsupportedModel(model string) *Error {
	return &Error{
		Code:    CodeUnsupportedModel,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("unsupported model %q", model),
	}
}

func ProviderMismatch(endpointProvider, credentialProvider string) *Error {
	return &Error{
		Code:    CodeProviderMismatch,
		Status:  http.StatusForbidden,
		Message: fmt.Sprintf("endpoint provider %s does not match credential provider %s", endpointProvider, credentialProvider),
	}
}

// RequestTimeout is returned when a single upstream attempt exceeds its
// wall-clock ceiling. Timeouts are never retried.
func RequestTimeout(err error) *Error {
	return &Error{
		Code:    CodeRequestTimeout,
		Status:  http.StatusGatewayTimeout,
		Message: "upstream request timed out",
		cause:   err,
	}
}

// UpstreamRateLimited is returned after the forwarder has exhausted its
// retries against a 429-ing provider. Distinct from the gateway's own
// RateLimited.
func UpstreamRateLimited(resetSeconds int) *Error {
	return &Error{
		Code:       CodeUpstreamRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    "upstream provider rate limit exceeded",
		RetryAfter: resetSeconds,
	}
}

// Upstream wraps any non-2xx, non-429 provider response.
func Upstream(status int, body string) *Error {
	return &Error{
		Code:    CodeUpstreamError,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("upstream error (status %d): %s", status, body),
	}
}

func Internal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		cause:   err,
	}
}

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Package apperr defines the closed error taxonomy shared by every service
// in the orchestration and caching layer, and the HTTP status dispatch for
// it. Call sites construct one of the sentinel-backed errors below and
// propagate it with %w; handlers recover the taxonomy with errors.As
// instead of branching on error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a closed set of error classifications. New values must be added
// here and to httpStatus below, never inferred from a message string.
type Code string

const (
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeModelUnavailable   Code = "MODEL_UNAVAILABLE"
	CodeModelMalformed     Code = "MODEL_MALFORMED"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodePersistenceFailed  Code = "PERSISTENCE_FAILED"
	CodeCacheDegraded      Code = "CACHE_DEGRADED"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
)

// httpStatus maps each code to the status an API handler should return.
// CodeCacheDegraded has no dedicated status: it never escapes to a caller
// on its own, it only downgrades an operation to a degraded-but-successful
// response.
var httpStatus = map[Code]int{
	CodeQuotaExceeded:       http.StatusTooManyRequests,
	CodeModelUnavailable:    http.StatusServiceUnavailable,
	CodeModelMalformed:      http.StatusBadGateway,
	CodeUpstreamUnavailable: http.StatusServiceUnavailable,
	CodePersistenceFailed:   http.StatusInternalServerError,
	CodeDeadlineExceeded:    http.StatusGatewayTimeout,
	CodeValidationFailed:    http.StatusBadRequest,
}

// Error is the taxonomy's concrete error type. Wrap a lower-level cause
// with Wrap so the envelope keeps both the classification and the root
// cause for logs.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code an API handler should surface for
// this error. Degraded-cache conditions are not meant to reach a handler
// as an error at all; callers that do hit this path get 500 as a safe
// default rather than a silently wrong 2xx.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New constructs a taxonomy error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs a taxonomy error that carries cause as its Unwrap chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// QuotaExceeded reports that a user has exhausted a QuotaKind's window.
func QuotaExceeded(message string) *Error {
	return New(CodeQuotaExceeded, message)
}

// ModelUnavailable reports the origin model could not be reached at all.
func ModelUnavailable(cause error) *Error {
	return Wrap(CodeModelUnavailable, "model endpoint unavailable", cause)
}

// ModelMalformed reports the origin model responded but its payload could
// not be parsed into the expected artifact shape.
func ModelMalformed(cause error) *Error {
	return Wrap(CodeModelMalformed, "model response malformed", cause)
}

// UpstreamUnavailable reports a non-model upstream dependency (catalog,
// profile service) did not respond.
func UpstreamUnavailable(cause error) *Error {
	return Wrap(CodeUpstreamUnavailable, "upstream dependency unavailable", cause)
}

// PersistenceFailed reports a durable write (quota ledger, audit log,
// leaderboard snapshot) did not complete.
func PersistenceFailed(cause error) *Error {
	return Wrap(CodePersistenceFailed, "persistence operation failed", cause)
}

// CacheDegraded reports a cache tier failed but the operation can still
// proceed against the origin; it is informational, not fatal.
func CacheDegraded(cause error) *Error {
	return Wrap(CodeCacheDegraded, "cache tier degraded", cause)
}

// DeadlineExceeded reports the operation's context deadline elapsed.
func DeadlineExceeded(cause error) *Error {
	return Wrap(CodeDeadlineExceeded, "operation deadline exceeded", cause)
}

// ValidationFailed reports caller input failed validation before any
// upstream call was attempted.
func ValidationFailed(message string) *Error {
	return New(CodeValidationFailed, message)
}

// As recovers a taxonomy error from err's chain, mirroring errors.As so
// call sites can write: if ae, ok := apperr.As(err); ok { ... }.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code for err, or "" if err does not wrap an
// *Error.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}

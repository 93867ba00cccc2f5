package volt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by [Error].
const (
	CodeConfiguration       = "CONFIGURATION"
	CodeNetwork             = "NETWORK"
	CodeTimeout             = "TIMEOUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeValidation          = "VALIDATION"
	CodeNotFound            = "NOT_FOUND"
	CodeServer              = "SERVER"
	CodeDecode              = "DECODE"
	CodeProvisioningTimeout = "PROVISIONING_TIMEOUT"
	CodePodFailed           = "POD_FAILED"
	CodeCanceled            = "CANCELED"
)

// Error represents a VoltageGPU API or client error.
//
// Every error returned by the SDK is an *Error (possibly wrapped). Use
// [errors.Is] with the sentinel values below to test the class:
//
//	if errors.Is(err, volt.ErrNotFound) {
//	    // already gone
//	}
//
// or [errors.As] to read the HTTP status and message:
//
//	var apiErr *volt.Error
//	if errors.As(err, &apiErr) {
//	    fmt.Println(apiErr.Status, apiErr.Message)
//	}
type Error struct {
	// Code is the error class, one of the Code* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Status is the HTTP status returned by the server, or 0 when the
	// request never produced a response.
	Status int

	// Field names the offending input field for validation errors, when known.
	Field string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("volt: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("volt: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code. This makes the
// sentinel values usable with [errors.Is].
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the transport may retry a request that failed
// with this error.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeNetwork, CodeTimeout, CodeRateLimited, CodeServer:
		return true
	}
	return false
}

// Sentinel errors.
var (
	ErrConfiguration       = &Error{Code: CodeConfiguration, Message: "client is not configured"}
	ErrNetwork             = &Error{Code: CodeNetwork, Message: "network failure"}
	ErrTimeout             = &Error{Code: CodeTimeout, Message: "request timed out"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "invalid credentials", Status: 401}
	ErrRateLimited         = &Error{Code: CodeRateLimited, Message: "rate limit exceeded", Status: 429}
	ErrValidation          = &Error{Code: CodeValidation, Message: "invalid request", Status: 400}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "resource not found", Status: 404}
	ErrServer              = &Error{Code: CodeServer, Message: "internal server error", Status: 500}
	ErrDecode              = &Error{Code: CodeDecode, Message: "unexpected response shape"}
	ErrProvisioningTimeout = &Error{Code: CodeProvisioningTimeout, Message: "pod did not converge in time"}
	ErrPodFailed           = &Error{Code: CodePodFailed, Message: "pod entered the error state"}
	ErrCanceled            = &Error{Code: CodeCanceled, Message: "operation canceled"}
)

// IsNotFound reports whether err is a NOT_FOUND error. Delete calls surface
// NOT_FOUND for resources that are already gone; callers that treat a repeat
// delete as success can use this check.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func newError(code, message string, status int, cause error) *Error {
	return &Error{Code: code, Message: message, Status: status, Cause: cause}
}

func validationError(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

func decodeError(message string, cause error) *Error {
	return &Error{Code: CodeDecode, Message: message, Cause: cause}
}

// contextError maps a finished context into CANCELED or TIMEOUT.
func contextError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, "context deadline exceeded", 0, err)
	}
	return newError(CodeCanceled, "operation canceled", 0, err)
}

// statusError classifies a non-2xx HTTP response.
func statusError(status int, message, field string) *Error {
	e := &Error{Status: status, Message: message, Field: field}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = CodeUnauthorized
	case status == http.StatusNotFound:
		e.Code = CodeNotFound
	case status == http.StatusTooManyRequests:
		e.Code = CodeRateLimited
	case status >= 500:
		e.Code = CodeServer
	default:
		e.Code = CodeValidation
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

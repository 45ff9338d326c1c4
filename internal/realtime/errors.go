package realtime

import (
	"fmt"
	"time"

	v1 "slate/contracts/realtime/v1"
)

// ErrorKind classifies gate and handler failures. Every denial carries a
// machine-readable kind and code plus a human-readable message; kinds are
// terminal for the current event only and never crash the connection.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation_error"
	KindAuthentication ErrorKind = "authentication_error"
	KindAuthorization  ErrorKind = "authorization_error"
	KindRateLimit      ErrorKind = "rate_limit_error"
	KindInfrastructure ErrorKind = "infrastructure_error"
)

// Error is the typed failure surfaced as an `error` event to the client.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	RetryAfter time.Duration
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Payload maps the error onto the wire shape.
func (e *Error) Payload() v1.ErrorPayload {
	return v1.ErrorPayload{
		Message:    e.Message,
		Type:       string(e.Kind),
		Code:       e.Code,
		RetryAfter: e.RetryAfter.Seconds(),
	}
}

func validationError(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func authenticationError(code, msg string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: msg}
}

func authorizationError(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg}
}

// canvasNotFound is the distinct authorization variant for a missing canvas.
// "Not found" must never be conflated with "permission denied".
func canvasNotFound(canvasID string) *Error {
	return &Error{
		Kind:    KindAuthorization,
		Code:    "canvas_not_found",
		Message: fmt.Sprintf("canvas not found: %s", canvasID),
	}
}

func rateLimitError(retryAfter time.Duration, reason string) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Code:       reason,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

func infrastructureError(msg string, cause error) *Error {
	return &Error{
		Kind:    KindInfrastructure,
		Code:    "infrastructure_error",
		Message: msg,
		cause:   cause,
	}
}

package errors

import "net/http"

// Domain is the error domain for QuestBridge errors.
const Domain = "github.com/louisbranch/questbridge"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with additional context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HTTPStatus maps the error code family to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch {
	case e == nil:
		return http.StatusOK
	case e.Code.IsAuthorization():
		return http.StatusForbidden
	case e.Code == CodeQuestNotFound || e.Code == CodeUserNotFound:
		return http.StatusNotFound
	case e.Code.IsState():
		return http.StatusConflict
	case e.Code.IsValidation():
		return http.StatusBadRequest
	case e.Code == CodeQuestNameEmpty || e.Code == CodeQuestTypeInvalid || e.Code == CodeAddressInvalid || e.Code == CodeInvalidArgument || e.Code == CodeAnswerIncorrect:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

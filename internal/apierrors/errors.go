package apierrors

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes returned to API clients
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeMissingDestination = "MISSING_DESTINATION"
	CodeMissingCallSid     = "MISSING_CALL_SID"
	CodeTelephonyError     = "TELEPHONY_PROVIDER_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// APIError is an error that knows how it should be presented over HTTP.
// Message is always safe to show to clients; the wrapped error never leaves the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// BadRequest returns a 400 error
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// BadGateway returns a 502 error for upstream provider failures
func BadGateway(code, message string, err error) *APIError {
	return &APIError{StatusCode: http.StatusBadGateway, Code: code, Message: message, Err: err}
}

// InternalError returns a sanitized 500 error - never exposes internal details
func InternalError(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "An internal error occurred. Please try again later.",
		Err:        err,
	}
}

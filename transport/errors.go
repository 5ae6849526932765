package transport

import (
	"errors"
	"fmt"
	"time"
)

// ClientError represents the typed errors produced by transports and the
// execution engine.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

// Error codes attached to network and timeout errors.
const (
	CodeTimedOut        = "ETIMEDOUT"
	CodeConnAborted     = "ECONNABORTED"
	CodeConnRefused     = "ECONNREFUSED"
	CodeConnReset       = "ECONNRESET"
	CodeNotFound        = "ENOTFOUND"
	CodeNetUnreachable  = "ENETUNREACH"
	CodeTryAgain        = "EAI_AGAIN"
	CodeNetwork         = "ERR_NETWORK"
	CodeCanceled        = "ERR_CANCELED"
	CodeBadRequest      = "ERR_BAD_REQUEST"
	CodeBadResponseBody = "ERR_BAD_RESPONSE"
)

// Coder is implemented by errors carrying a machine-readable code.
type Coder interface {
	Code() string
}

// networkError represents network-related errors
type networkError struct {
	message  string
	code     string
	response *Response
	wrapped  error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType { return NetworkError }

func (e *networkError) Code() string { return e.code }

func (e *networkError) Unwrap() error { return e.wrapped }

// timeoutError represents timeout-related errors
type timeoutError struct {
	message string
	code    string
	timeout time.Duration
	wrapped error
}

func (e *timeoutError) Error() string {
	if e.timeout > 0 {
		return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
	}
	return fmt.Sprintf("timeout error: %s", e.message)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }

func (e *timeoutError) Code() string { return e.code }

func (e *timeoutError) Unwrap() error { return e.wrapped }

// Timeout returns the configured timeout that elapsed, if known.
func (e *timeoutError) Timeout() time.Duration { return e.timeout }

// httpError represents a completed exchange with a non-2xx status
type httpError struct {
	message  string
	response *Response
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.response.StatusCode)
}

func (e *httpError) Type() ErrorType { return HTTPError }

func (e *httpError) StatusCode() int { return e.response.StatusCode }

func (e *httpError) Body() []byte { return e.response.Body }

// validationError represents request validation errors
type validationError struct {
	message string
	field   string
	wrapped error
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType { return ValidationError }

func (e *validationError) Code() string { return CodeBadRequest }

func (e *validationError) Unwrap() error { return e.wrapped }

// interceptorError represents interceptor-related errors
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }

func (e *interceptorError) Unwrap() error { return e.wrapped }

// Stage returns the interceptor stage that failed.
func (e *interceptorError) Stage() string { return e.stage }

// NewNetworkError creates a new network error. resp may carry a partial
// response when one was received before the failure.
func NewNetworkError(message, code string, resp *Response, wrapped error) ClientError {
	return &networkError{
		message:  message,
		code:     code,
		response: resp,
		wrapped:  wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration, wrapped error) ClientError {
	return &timeoutError{
		message: message,
		code:    CodeTimedOut,
		timeout: timeout,
		wrapped: wrapped,
	}
}

// NewHTTPError creates a new HTTP status error carrying the full response
func NewHTTPError(message string, resp *Response) ClientError {
	return &httpError{
		message:  message,
		response: resp,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string, wrapped error) ClientError {
	return &validationError{
		message: message,
		field:   field,
		wrapped: wrapped,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		wrapped: wrapped,
		stage:   stage,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return 0
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	return StatusCode(err) == statusCode && statusCode != 0
}

// IsServerError reports whether err carries a 5xx response.
func IsServerError(err error) bool {
	code := StatusCode(err)
	return code >= 500 && code < 600
}

// IsClientError reports whether err carries a 4xx response.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}

// ErrorCode returns the code of the first error in the chain that has one.
func ErrorCode(err error) string {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return ""
}

// ResponseOf returns the (possibly partial) response attached to err.
func ResponseOf(err error) (*Response, bool) {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.response, true
	}
	var netErr *networkError
	if errors.As(err, &netErr) && netErr.response != nil {
		return netErr.response, true
	}
	return nil, false
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

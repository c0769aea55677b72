package models

import "fmt"

// ErrorCode is a string type for consistent error codes.
type ErrorCode string

// Predefined error codes for common API errors.
const (
	// Generic
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeMethodNotAllowed    ErrorCode = "method_not_allowed"

	// Data sources
	ErrorCodeUnknownSource   ErrorCode = "unknown_source"
	ErrorCodeSourceDisabled  ErrorCode = "source_disabled"
	ErrorCodeUpstreamFailed  ErrorCode = "upstream_failed"
	ErrorCodeNoDataAvailable ErrorCode = "no_data_available"
	ErrorCodeRenderFailed    ErrorCode = "render_failed"

	ErrorCodeRefreshInProgress     ErrorCode = "refresh_in_progress"
	ErrorCodeAuthorizationRequired ErrorCode = "authorization_required"
)

type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

// Error makes APIError implement the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError is a constructor for APIError.
func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

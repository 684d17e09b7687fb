package infisical

import (
	"errors"
	"fmt"
)

// Error represents an error from the Infisical API
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Body       string `json:"body,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("infisical: %s (status: %d, request_id: %s)", e.Message, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("infisical: %s (status: %d)", e.Message, e.StatusCode)
}

// IsRetryable returns true if the error might be resolved by retrying
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func (e *Error) IsServerError() bool {
	return e.StatusCode >= 500
}

func (e *Error) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func (e *Error) IsNotFound() bool {
	return e.StatusCode == 404
}

// AsError unwraps err to an API error when there is one in the chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsNotFoundError(err error) bool {
	if e, ok := AsError(err); ok {
		return e.IsNotFound()
	}
	return false
}

func IsAuthError(err error) bool {
	if e, ok := AsError(err); ok {
		return e.IsAuthError()
	}
	return false
}

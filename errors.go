package connect

import (
	"fmt"
)

// Widget error codes as constants
const (
	ErrorCodeConfigurationMissing = "configuration_missing"
	ErrorCodePopupBlocked         = "popup_blocked"
	ErrorCodeStateMismatch        = "state_mismatch"
	ErrorCodeTokenExchangeFailed  = "token_exchange_failed"
	ErrorCodeRefreshFailed        = "refresh_failed"
	ErrorCodeNetworkError         = "network_error"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
)

// WidgetError is a typed failure of the connect flow
type WidgetError struct {
	Code        string // widget error code (e.g., "popup_blocked", "refresh_failed")
	Description string // human-readable error description

	// HTTPStatus and ProviderError carry token endpoint detail for
	// "token_exchange_failed"; zero/empty otherwise.
	HTTPStatus    int
	ProviderError string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface
func (e *WidgetError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d, provider error %q)", e.Code, e.Description, e.HTTPStatus, e.ProviderError)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap supports errors.Is/As on the underlying cause
func (e *WidgetError) Unwrap() error { return e.Err }

// NewWidgetError creates a new widget error
func NewWidgetError(code, description string) *WidgetError {
	return &WidgetError{Code: code, Description: description}
}

// Common widget errors as reusable constructors
var (
	// ErrConfigurationMissing indicates required client configuration could not
	// be resolved. Fatal: surfaced to the user, never retried.
	ErrConfigurationMissing = func(desc string) *WidgetError {
		return NewWidgetError(ErrorCodeConfigurationMissing, desc)
	}

	// ErrPopupBlocked indicates the runtime refused to open the authorization
	// popup. Recoverable via full-page redirect.
	ErrPopupBlocked = func(desc string) *WidgetError {
		return NewWidgetError(ErrorCodePopupBlocked, desc)
	}

	// ErrStateMismatch indicates the callback state did not match the issued
	// value. Security event: the description stays generic on purpose.
	ErrStateMismatch = func() *WidgetError {
		return NewWidgetError(ErrorCodeStateMismatch, "authorization failed")
	}

	// ErrTokenExchangeFailed indicates the token endpoint rejected a code
	// exchange. Not retried: the authorization code is single-use.
	ErrTokenExchangeFailed = func(httpStatus int, providerError, desc string) *WidgetError {
		return &WidgetError{
			Code:          ErrorCodeTokenExchangeFailed,
			Description:   desc,
			HTTPStatus:    httpStatus,
			ProviderError: providerError,
		}
	}

	// ErrRefreshFailed indicates silent refresh failed. Session termination:
	// tokens are cleared and the user must reconnect interactively.
	ErrRefreshFailed = func(desc string, cause error) *WidgetError {
		return &WidgetError{Code: ErrorCodeRefreshFailed, Description: desc, Err: cause}
	}

	// ErrNetworkError wraps transport-level failures reaching the provider.
	ErrNetworkError = func(desc string, cause error) *WidgetError {
		return &WidgetError{Code: ErrorCodeNetworkError, Description: desc, Err: cause}
	}

	// ErrRateLimitExceeded indicates the token endpoint guard rejected a call.
	ErrRateLimitExceeded = func(desc string) *WidgetError {
		return NewWidgetError(ErrorCodeRateLimitExceeded, desc)
	}
)

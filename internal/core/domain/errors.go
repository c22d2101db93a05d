package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors represent business-level failures shared across adapters.
// Vendor packages wrap these so callers can classify without importing
// vendor SDKs.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown connector type. Hitting this
	// is a programmer error, not a runtime condition to recover from.
	ErrUnsupportedType = errors.New("unsupported connector type")

	// ErrNotAuthenticated indicates no valid token is available and none
	// can be obtained. Terminal for the call.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthExpired indicates the vendor rejected the token twice, once
	// after a forced refresh. The grant is likely revoked.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNoRefreshToken indicates a refresh was requested but no refresh
	// token is present.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrTokenRefreshFailed indicates the vendor's refresh-token grant failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrCredentialConflict indicates the stored credentials changed since
	// they were read; the caller should re-read rather than overwrite.
	ErrCredentialConflict = errors.New("credential version conflict")

	// ErrPermissionDenied indicates a required scope is missing, such as a
	// publish attempted without a write scope.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMissingConfig indicates a vendor app registration is absent from
	// the environment. Surfaced as an authentication failure, not a crash.
	ErrMissingConfig = errors.New("vendor configuration missing")

	// ErrRateLimited indicates the vendor API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrFileTooLarge indicates content above the configured size ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFileType indicates a MIME type outside the allow-list.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// APIError is the normalized shape of a vendor HTTP failure. Adapters wrap
// vendor SDK errors into this so the shared retry and sync machinery can
// classify them without vendor knowledge.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsNotFound reports whether err is a 404 or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusGone
	}
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether err is a 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrAuthExpired)
}

// IsForbidden reports whether err is a 403.
func IsForbidden(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden
	}
	return errors.Is(err, ErrPermissionDenied)
}

// IsRateLimited reports whether err is a 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable classifies an item-level failure for SyncError reporting.
// Rate limits and server-side failures are worth retrying; authentication,
// not-found, oversize and unsupported-type failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if apiErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
		return apiErr.StatusCode >= 500
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return true
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrAuthExpired),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedFileType):
		return false
	}
	// Unclassified errors are assumed transient (network, timeout).
	return true
}

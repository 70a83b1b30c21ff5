package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

var (
	// ErrBanned is returned when the backend reports the signed-in account as
	// banned. The BannedHandler has already been notified.
	ErrBanned = driven.ErrBanned

	// ErrSessionExpired is returned when authentication could not be
	// recovered. The session has been cleared and the SessionExpiredHandler
	// notified.
	ErrSessionExpired = driven.ErrSessionExpired

	// ErrRefreshFailed is returned, alongside ErrSessionExpired, when the
	// token refresh call itself failed.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// APIError is a non-2xx response that was not recovered by the client.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := errorMessage(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Message returns the backend's error message, if the body carries one.
func (e *APIError) Message() string {
	return errorMessage(e.Body)
}

// StatusCode extracts the HTTP status of an unrecovered API failure.
// ok is false when err does not wrap an *APIError.
func StatusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

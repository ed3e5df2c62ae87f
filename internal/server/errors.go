// ABOUTME: Maps domain errors to HTTP status codes and JSON error bodies
// ABOUTME: Tenant busy is retryable; storage faults are server errors

package server

import (
	"errors"
	"net/http"

	"github.com/2389/tenantdb/internal/account"
	"github.com/2389/tenantdb/internal/store"
	"github.com/2389/tenantdb/internal/tenant"
)

// requestError is a client error with a message safe to return.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

var errUnauthenticated = &requestError{status: http.StatusUnauthorized, msg: "not authenticated"}

// statusFor returns the HTTP status for err and whether its message may be
// shown to the client.
func statusFor(err error) (int, bool) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, true
	case errors.Is(err, tenant.ErrBusy):
		return http.StatusServiceUnavailable, false
	case errors.Is(err, tenant.ErrExists),
		errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, store.ErrDuplicateUser):
		return http.StatusConflict, true
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, tenant.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, account.ErrBadCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrEmptyPassword):
		return http.StatusBadRequest, true
	default:
		// Provisioning, connection and rename faults included.
		return http.StatusInternalServerError, false
	}
}

// writeError writes err as a JSON error body with the matching status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, public := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		msg = "tenant is busy, retry shortly"
	case !public:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

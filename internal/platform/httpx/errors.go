package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kis-labs/webbuilder/internal/shared"
)

// ErrEmptyBody is returned by DecodeJSON when the request carries no body.
var ErrEmptyBody = errors.New("request body is missing")

type errorMapping struct {
	target  error
	status  int
	message string
}

// Order matters: the first match wins.
var mappings = []errorMapping{
	{shared.ErrMissingToken, http.StatusUnauthorized, "Token required"},
	{shared.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid refresh token"},
	{shared.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{shared.ErrPrincipalNotFound, http.StatusNotFound, "User not found"},
	{shared.ErrPrincipalDeactivated, http.StatusForbidden, "User is deactivated"},
	{shared.ErrInvalidCredential, http.StatusBadRequest, "Username or password is invalid"},
	{shared.ErrAccessDenied, http.StatusForbidden, "Access denied"},
	{shared.ErrLoginNameTaken, http.StatusBadRequest, "Username already exists. Please choose another."},
	{shared.ErrAlreadyActive, http.StatusBadRequest, "User is already active"},
	{shared.ErrAliasConflict, http.StatusConflict, "Alias already exists"},
}

// StatusFor returns the HTTP status and client-safe message for err.
func StatusFor(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrEmptyBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Request timed out, please retry"
	case errors.Is(err, shared.ErrConnectionUnavailable):
		return http.StatusInternalServerError, "Database unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// RespondError maps domain errors to a JSON error response. Server-side
// failures are logged; client errors are not.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := StatusFor(err)
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case status >= http.StatusInternalServerError:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	if status == http.StatusConflict {
		w.Header().Set("Retry-After", "1")
	}
	Error(w, status, message)
}

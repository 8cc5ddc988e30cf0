package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/patrol-auth/internal/domain"
)

// httpError maps a service error to its HTTP status. Store and integrity
// failures get a generic message so internal detail never reaches clients.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, publicMessage(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrOTPAttemptsExceeded):
		writeError(w, http.StatusTooManyRequests, "too many attempts, request a new code")
	case errors.Is(err, domain.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, "code expired")
	case errors.Is(err, domain.ErrOTPInvalid):
		writeError(w, http.StatusBadRequest, "invalid code")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, publicMessage(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, publicMessage(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrUnavailable):
		slog.Error("account store unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	case errors.Is(err, domain.ErrCorrupted):
		slog.Error("corrupted account record", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// publicMessage strips the trailing sentinel text from a wrapped error, so
// "invalid credentials: unauthorized" becomes "invalid credentials".
func publicMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

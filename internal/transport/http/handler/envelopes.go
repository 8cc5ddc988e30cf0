package handler

import (
	"encoding/json"
	"net/http"

	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// AuthEnvelope wraps login and refresh responses.
type AuthEnvelope struct {
	AccessToken  string                  `json:"access_token"`
	RefreshToken string                  `json:"refresh_token"`
	TokenType    string                  `json:"token_type"`
	ExpiresIn    int64                   `json:"expires_in"` // seconds
	User         *domain.IdentitySummary `json:"user,omitempty"`
}

// UserEnvelope wraps a single identity summary.
type UserEnvelope struct {
	Message string                  `json:"message,omitempty"`
	User    *domain.IdentitySummary `json:"user"`
}

func summary(id domain.Identity) *domain.IdentitySummary {
	s := domain.Summarize(id)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decode reads a JSON body into dst and runs struct validation on it.
// It writes the 400 response itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

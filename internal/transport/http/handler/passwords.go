package handler

import (
	"net/http"

	"github.com/patrol-auth/internal/application/password"
	"github.com/patrol-auth/internal/transport/http/middleware"
)

// otpSentMessage is returned whether or not the contact is registered.
const otpSentMessage = "if the contact is registered, a code has been sent"

// PasswordHandler handles OTP issuance, signup verification and password
// changes.
type PasswordHandler struct {
	svc password.Service
}

func NewPasswordHandler(svc password.Service) *PasswordHandler {
	return &PasswordHandler{svc: svc}
}

func (h *PasswordHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req password.OTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestOTP(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: otpSentMessage})
}

func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req password.ResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetWithOTP(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}

func (h *PasswordHandler) VerifySignup(w http.ResponseWriter, r *http.Request) {
	var req password.SignupVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.VerifySignup(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Message: "account verified", User: summary(id)})
}

func (h *PasswordHandler) RequestChangeOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.RequestChangeOTP(r.Context(), id); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req password.ChangeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangeWithOTP(r.Context(), id, req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}

func (h *PasswordHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req password.SetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SetPassword(r.Context(), id, req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}

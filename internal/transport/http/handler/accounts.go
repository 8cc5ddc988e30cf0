package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/patrol-auth/internal/application/account"
	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/transport/http/middleware"
)

// AccountHandler handles account provisioning and activation.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

func (h *AccountHandler) Provision(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ProvisionRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.Provision(r.Context(), actor, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserEnvelope{Message: "account created", User: summary(id)})
}

func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	role, ok := domain.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	var req struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.SetActive(r.Context(), actor, role, chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Message: "status updated", User: summary(id)})
}

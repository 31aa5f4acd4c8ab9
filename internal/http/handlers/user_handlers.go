package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ringring/ringring-server/internal/domain"
	"github.com/ringring/ringring-server/pkg/logger"
)

// Register creates a pending account and emails its activation code.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Email)
	if err != nil {
		logger.WarnContext(r.Context(), "Registration rejected", "email", req.Email, "status", domain.StatusFromError(err))
		writeResult(w, err, nil)
		return
	}

	writeJSON(w, http.StatusCreated, statusResponse{Status: domain.StatusOkay, User: user})
}

// Activate verifies the supplied code and provisions the SIP endpoint, or
// refreshes the SIP password when the account is already active.
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var req struct {
		ActivationCode string `json:"activation_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	user, err := h.svc.Activate(r.Context(), email, req.ActivationCode)
	writeResult(w, err, user)
}

// RenewActivationCode issues a fresh code and emails it.
func (h *Handlers) RenewActivationCode(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	err := h.svc.RenewActivationCode(r.Context(), email)
	writeResult(w, err, nil)
}

// Invite lets an existing user invite a new address, rate limited per
// recipient.
func (h *Handlers) Invite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	err := h.svc.Invite(r.Context(), req.From, req.To)
	writeResult(w, err, nil)
}

// GetUser returns the masked view of one account.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	onlyActivated := r.URL.Query().Get("activated") == "true"

	user, err := h.svc.GetUser(r.Context(), email, onlyActivated)
	writeResult(w, err, user)
}

// GetUsers returns masked views for a batch of addresses.
func (h *Handlers) GetUsers(w http.ResponseWriter, r *http.Request) {
	emails := r.URL.Query()["email"]
	onlyActivated := r.URL.Query().Get("activated") == "true"

	users, err := h.svc.GetUsers(r.Context(), emails, onlyActivated)
	if err != nil {
		writeResult(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: domain.StatusOkay, Users: users})
}

// ResetUsers truncates all user and provisioning tables. Admin only.
func (h *Handlers) ResetUsers(w http.ResponseWriter, r *http.Request) {
	err := h.svc.ResetUsers(r.Context())
	if err == nil {
		logger.WarnContext(r.Context(), "All users and provisioning records reset")
	}
	writeResult(w, err, nil)
}

// ResetInvites truncates the invite table. Admin only.
func (h *Handlers) ResetInvites(w http.ResponseWriter, r *http.Request) {
	err := h.svc.ResetInvites(r.Context())
	if err == nil {
		logger.WarnContext(r.Context(), "All invites reset")
	}
	writeResult(w, err, nil)
}

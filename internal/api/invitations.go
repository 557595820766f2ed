package api

import (
	"net/http"

	"github.com/chipin/chipin/internal/middleware"
)

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type invitationResponse struct {
	ID        string   `json:"id"`
	GroupID   string   `json:"group_id"`
	Email     string   `json:"email"`
	Token     string   `json:"token"`
	Status    string   `json:"status"`
	ExpiresAt int64    `json:"expires_at"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (h *Handler) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.invites.CreateInvitation(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()), req.Email, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	inv := result.Invitation
	writeJSON(w, http.StatusCreated, invitationResponse{
		ID:        inv.ID,
		GroupID:   inv.GroupID,
		Email:     inv.Email,
		Token:     inv.Token,
		Status:    inv.Status,
		ExpiresAt: inv.ExpiresAt,
		Warnings:  result.Warnings,
	})
}

type invitationTokenRequest struct {
	Token string `json:"token"`
}

type acceptInvitationResponse struct {
	GroupID       string   `json:"group_id"`
	MemberCreated bool     `json:"member_created"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (h *Handler) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationTokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "token is required"})
		return
	}

	result, err := h.invites.AcceptInvitation(r.Context(), req.Token, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acceptInvitationResponse{
		GroupID:       result.GroupID,
		MemberCreated: result.MemberCreated,
		Warnings:      result.Warnings,
	})
}

func (h *Handler) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationTokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "token is required"})
		return
	}

	if err := h.invites.DeclineInvitation(r.Context(), req.Token, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

// Package api exposes the ledger over a typed JSON HTTP surface.
// Every request body is decoded into an explicit request struct and
// validated at the boundary before reaching the core; every error is
// classified through the ledger taxonomy into an HTTP status.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chipin/chipin/internal/auth"
	"github.com/chipin/chipin/internal/invite"
	"github.com/chipin/chipin/internal/ledger"
	"github.com/chipin/chipin/internal/storage"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	store         storage.Store
	ledger        *ledger.Service
	invites       *invite.Service
	authenticator auth.Authenticator
	jwt           *auth.JWTManager
}

// New creates the API handler.
func New(store storage.Store, ledgerSvc *ledger.Service, inviteSvc *invite.Service, authenticator auth.Authenticator, jwt *auth.JWTManager) *Handler {
	return &Handler{
		store:         store,
		ledger:        ledgerSvc,
		invites:       inviteSvc,
		authenticator: authenticator,
		jwt:           jwt,
	}
}

// Register mounts all routes on the mux. Everything except register,
// login and metrics sits behind the auth middleware the caller wraps.
func (h *Handler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)

	authed := func(fn http.HandlerFunc) http.Handler { return requireAuth(fn) }
	mux.Handle("POST /api/groups", authed(h.handleCreateGroup))
	mux.Handle("GET /api/groups/{id}/ledger", authed(h.handleGroupLedger))
	mux.Handle("POST /api/groups/{id}/expenses", authed(h.handleCreateExpense))
	mux.Handle("GET /api/groups/{id}/balances", authed(h.handleBalances))
	mux.Handle("POST /api/groups/{id}/settlements", authed(h.handleSettle))
	mux.Handle("POST /api/groups/{id}/invitations", authed(h.handleCreateInvitation))
	mux.Handle("POST /api/invitations/accept", authed(h.handleAcceptInvitation))
	mux.Handle("POST /api/invitations/decline", authed(h.handleDeclineInvitation))
	mux.Handle("GET /api/notifications", authed(h.handleListNotifications))
	mux.Handle("POST /api/notifications/{id}/read", authed(h.handleMarkNotificationRead))
}

// errorResponse is the JSON shape of every failure.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError classifies err through the ledger taxonomy.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrStateConflict), errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrConcurrency):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		slog.Error("internal error", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decode reads a JSON request body into a typed request struct,
// rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ledger.ErrValidation, err)
	}
	return nil
}

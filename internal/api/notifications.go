package api

import (
	"encoding/json"
	"net/http"

	"github.com/chipin/chipin/internal/middleware"
)

type notificationResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Read      bool            `json:"read"`
	CreatedAt int64           `json:"created_at"`
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.store.ListNotifications(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		payload := json.RawMessage(n.Payload)
		if !json.Valid(payload) {
			payload, _ = json.Marshal(n.Payload)
		}
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Payload:   payload,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.store.MarkNotificationRead(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

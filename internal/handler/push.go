package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	publicKey string
	logger    *slog.Logger
}

// NewPushHandler takes the VAPID public key clients subscribe with; empty
// means push is not configured.
func NewPushHandler(ps *store.PushStore, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, publicKey: publicKey, logger: logger}
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "push notifications are not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint, p256dh, and auth are required"})
		return
	}

	sub, err := h.pushStore.CreateSubscription(auth.UserID(r.Context()), req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.pushStore.DeleteSubscription(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

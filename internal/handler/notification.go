package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/store"
	"github.com/dukerupert/splitweek/internal/websocket"
)

const notificationLimit = 50

type NotificationHandler struct {
	store  *store.NotificationStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewNotificationHandler(ns *store.NotificationStore, hub *websocket.Hub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{store: ns, hub: hub, logger: logger}
}

// tell lets the user's other open sessions refresh their badge.
func (h *NotificationHandler) tell(userID int64, action string, id int64) {
	if h.hub != nil {
		h.hub.SendToUser(userID, websocket.NewMessage("notification", action, 0, id, nil))
	}
}

// List handles GET /api/notifications?unread_only=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))
	list, err := h.store.List(auth.UserID(r.Context()), unreadOnly, notificationLimit)
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.UnreadCount(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("count notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count notifications"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	userID := auth.UserID(r.Context())
	ok, err := h.store.MarkRead(id, userID)
	if err != nil {
		h.logger.Error("mark notification read", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update notification"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Notification not found."})
		return
	}
	h.tell(userID, "read", id)
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	n, err := h.store.MarkAllRead(userID)
	if err != nil {
		h.logger.Error("mark all notifications read", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update notifications"})
		return
	}
	h.tell(userID, "read_all", 0)
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

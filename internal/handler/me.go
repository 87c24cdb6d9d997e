package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/linking"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/store"
)

type MeHandler struct {
	users    *store.UserStore
	children *linking.Service
	logger   *slog.Logger
}

func NewMeHandler(us *store.UserStore, children *linking.Service, logger *slog.Logger) *MeHandler {
	return &MeHandler{users: us, children: children, logger: logger}
}

type meResponse struct {
	*model.User
	Children []model.ChildSummary `json:"children"`
}

// Get handles GET /api/auth/me
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	user, err := h.users.GetByID(userID)
	if err != nil {
		h.logger.Error("load current user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load user"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user no longer exists"})
		return
	}
	children, err := h.children.ListChildren(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "failed to load children")
		return
	}
	if children == nil {
		children = []model.ChildSummary{}
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, Children: children})
}

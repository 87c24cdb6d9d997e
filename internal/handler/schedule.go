package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/custody"
)

type ScheduleHandler struct {
	mgr    *custody.Manager
	logger *slog.Logger
}

func NewScheduleHandler(mgr *custody.Manager, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{mgr: mgr, logger: logger}
}

// Get handles GET /api/children/{id}/schedule?month=YYYY-MM
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	days, err := h.mgr.Get(r.Context(), auth.UserID(r.Context()), childID, r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, h.logger, err, "failed to load schedule")
		return
	}
	if days == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// Create handles POST /api/children/{id}/schedule
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req custody.Entry
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.mgr.Upsert(r.Context(), auth.UserID(r.Context()), childID, req)
	if err != nil {
		writeError(w, h.logger, err, "failed to save schedule entry")
		return
	}
	status := http.StatusOK
	if res.Action == custody.ActionCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type detailsRequest struct {
	Notes           *string `json:"notes"`
	HandoffTime     *string `json:"handoff_time"`
	HandoffLocation *string `json:"handoff_location"`
}

// Update handles PUT /api/children/{id}/schedule/{entryId}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	entryID, err := parseIDParam(r, "entryId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entry id"})
		return
	}
	var req detailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := h.mgr.UpdateDetails(r.Context(), auth.UserID(r.Context()), childID, entryID, req.Notes, req.HandoffTime, req.HandoffLocation)
	if err != nil {
		writeError(w, h.logger, err, "failed to update schedule entry")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

type bulkRequest struct {
	Entries []custody.Entry `json:"entries"`
}

// Bulk handles POST /api/children/{id}/schedule/bulk. Entries written
// before a failure stay written and are listed in the error response.
func (h *ScheduleHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Entries) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entries are required"})
		return
	}
	results, err := h.mgr.BulkUpsert(r.Context(), auth.UserID(r.Context()), childID, req.Entries)
	if err != nil {
		if len(results) > 0 {
			h.logger.Error("bulk upsert stopped partway", "child_id", childID, "written", len(results), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to save all entries", "results": results})
			return
		}
		writeError(w, h.logger, err, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Pattern handles POST /api/children/{id}/schedule/pattern
func (h *ScheduleHandler) Pattern(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req custody.Pattern
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := h.mgr.ApplyPattern(r.Context(), auth.UserID(r.Context()), childID, req)
	if err != nil {
		writeError(w, h.logger, err, "failed to apply pattern")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ConfirmHandoff handles POST /api/children/{id}/schedule/{entryId}/confirm-handoff
func (h *ScheduleHandler) ConfirmHandoff(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	entryID, err := parseIDParam(r, "entryId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entry id"})
		return
	}
	day, err := h.mgr.ConfirmHandoff(r.Context(), auth.UserID(r.Context()), childID, entryID)
	if err != nil {
		writeError(w, h.logger, err, "failed to confirm handoff")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

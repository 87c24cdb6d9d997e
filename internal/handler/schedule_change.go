package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/negotiation"
)

type ScheduleChangeHandler struct {
	neg    *negotiation.Negotiator
	logger *slog.Logger
}

func NewScheduleChangeHandler(neg *negotiation.Negotiator, logger *slog.Logger) *ScheduleChangeHandler {
	return &ScheduleChangeHandler{neg: neg, logger: logger}
}

func writeRequests(w http.ResponseWriter, reqs []model.ChangeRequest) {
	if reqs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// List handles GET /api/children/{id}/schedule-changes?status=
func (h *ScheduleChangeHandler) List(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	reqs, err := h.neg.List(r.Context(), auth.UserID(r.Context()), childID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err, "failed to list change requests")
		return
	}
	writeRequests(w, reqs)
}

type createChangeRequest struct {
	Reason       *string `json:"reason"`
	OriginalData *string `json:"original_data"`
	ProposedData *string `json:"proposed_data"`
}

// Create handles POST /api/children/{id}/schedule-changes
func (h *ScheduleChangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req createChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OriginalData == nil || req.ProposedData == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "original_data and proposed_data are required"})
		return
	}
	created, err := h.neg.Create(r.Context(), auth.UserID(r.Context()), childID, negotiation.NewRequest{
		Reason:       req.Reason,
		OriginalData: *req.OriginalData,
		ProposedData: *req.ProposedData,
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to create change request")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": created.ID})
}

// History handles GET /api/children/{id}/schedule-changes/history
func (h *ScheduleChangeHandler) History(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	reqs, err := h.neg.History(r.Context(), auth.UserID(r.Context()), childID)
	if err != nil {
		writeError(w, h.logger, err, "failed to load change history")
		return
	}
	writeRequests(w, reqs)
}

// Export handles GET /api/children/{id}/schedule-changes/export
func (h *ScheduleChangeHandler) Export(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	data, err := h.neg.Export(r.Context(), auth.UserID(r.Context()), childID)
	if err != nil {
		writeError(w, h.logger, err, "failed to export change requests")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+negotiation.ExportFilename(childID)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Archive handles POST /api/children/{id}/schedule-changes/export/archive
func (h *ScheduleChangeHandler) Archive(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	key, err := h.neg.Archive(r.Context(), auth.UserID(r.Context()), childID)
	if err != nil {
		writeError(w, h.logger, err, "failed to archive export")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// Chain handles GET /api/schedule-changes/{id}/chain
func (h *ScheduleChangeHandler) Chain(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	chain, err := h.neg.Chain(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err, "failed to load negotiation chain")
		return
	}
	writeRequests(w, chain)
}

// Approve handles POST /api/schedule-changes/{id}/approve
func (h *ScheduleChangeHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	res, err := h.neg.Approve(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err, "failed to approve change request")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Decline handles POST /api/schedule-changes/{id}/decline
func (h *ScheduleChangeHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	res, err := h.neg.Decline(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err, "failed to decline change request")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type counterRequest struct {
	CounterData *string `json:"counter_data"`
}

// Counter handles POST /api/schedule-changes/{id}/counter. The body is
// optional; without counter_data the original proposal is re-offered.
func (h *ScheduleChangeHandler) Counter(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req counterRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	res, err := h.neg.Counter(r.Context(), auth.UserID(r.Context()), id, req.CounterData)
	if err != nil {
		writeError(w, h.logger, err, "failed to counter change request")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

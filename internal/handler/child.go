package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/linking"
	"github.com/dukerupert/splitweek/internal/store"
)

type ChildHandler struct {
	svc    *linking.Service
	logger *slog.Logger
}

func NewChildHandler(svc *linking.Service, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{svc: svc, logger: logger}
}

type childRequest struct {
	FirstName              string  `json:"first_name"`
	LastName               string  `json:"last_name"`
	DateOfBirth            *string `json:"date_of_birth"`
	Allergies              *string `json:"allergies"`
	MedicalNotes           *string `json:"medical_notes"`
	EmergencyContact1Name  *string `json:"emergency_contact1_name"`
	EmergencyContact1Phone *string `json:"emergency_contact1_phone"`
	EmergencyContact2Name  *string `json:"emergency_contact2_name"`
	EmergencyContact2Phone *string `json:"emergency_contact2_phone"`
}

func (req childRequest) fields() store.ChildFields {
	return store.ChildFields{
		FirstName:              strings.TrimSpace(req.FirstName),
		LastName:               strings.TrimSpace(req.LastName),
		DateOfBirth:            req.DateOfBirth,
		Allergies:              req.Allergies,
		MedicalNotes:           req.MedicalNotes,
		EmergencyContact1Name:  req.EmergencyContact1Name,
		EmergencyContact1Phone: req.EmergencyContact1Phone,
		EmergencyContact2Name:  req.EmergencyContact2Name,
		EmergencyContact2Phone: req.EmergencyContact2Phone,
	}
}

// List handles GET /api/children
func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.svc.ListChildren(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "failed to list children")
		return
	}
	if children == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// Create handles POST /api/children
func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	child, err := h.svc.CreateChild(r.Context(), auth.UserID(r.Context()), req.fields())
	if err != nil {
		writeError(w, h.logger, err, "failed to create child")
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

// Get handles GET /api/children/{id}
func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	profile, err := h.svc.GetChild(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err, "failed to load child")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update handles PUT /api/children/{id}
func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req childRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	child, err := h.svc.UpdateChild(r.Context(), auth.UserID(r.Context()), id, req.fields())
	if err != nil {
		writeError(w, h.logger, err, "failed to update child")
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// Parents handles GET /api/children/{id}/parents
func (h *ChildHandler) Parents(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	parents, err := h.svc.ListParents(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err, "failed to list parents")
		return
	}
	writeJSON(w, http.StatusOK, parents)
}

type inviteRequest struct {
	Email *string `json:"email"`
}

// Invite handles POST /api/children/{id}/invite. The body is optional.
func (h *ChildHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req inviteRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	res, err := h.svc.GenerateInvite(r.Context(), auth.UserID(r.Context()), id, req.Email)
	if err != nil {
		writeError(w, h.logger, err, "failed to create invite")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

// AcceptInvite handles POST /api/children/accept-invite
func (h *ChildHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AcceptInvite(r.Context(), auth.UserID(r.Context()), strings.TrimSpace(req.Token))
	if err != nil {
		writeError(w, h.logger, err, "failed to accept invite")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

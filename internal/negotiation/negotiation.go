// Package negotiation runs the schedule change request workflow: a parent
// proposes, the other parent approves, declines or counters, and approved
// proposals are written to the custody calendar.
package negotiation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/splitweek/internal/custody"
	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/notify"
	"github.com/dukerupert/splitweek/internal/store"
)

// ResponseWindow is how long a request stays open after it is made.
const ResponseWindow = 48 * time.Hour

const entity = "schedule_change"

type Notifier interface {
	Notify(ctx context.Context, userID, childID int64, n notify.Notice)
	NotifyOtherParent(ctx context.Context, actorID, childID int64, n notify.Notice)
	Changed(childID int64, entity, action string, id int64)
}

// Archiver stores export files somewhere durable.
type Archiver interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
}

type Options struct {
	// EnforceExpiry rejects responses to requests past their expiry.
	// Otherwise expires_at is informational only.
	EnforceExpiry bool
}

// NewRequest is the caller-supplied part of a change request. The data
// fields are opaque JSON documents owned by clients.
type NewRequest struct {
	Reason       *string `json:"reason"`
	OriginalData string  `json:"original_data"`
	ProposedData string  `json:"proposed_data"`
}

type ApproveResult struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	Applied      int    `json:"applied"`
	Skipped      int    `json:"skipped"`
	PayloadValid bool   `json:"payload_valid"`
}

type DeclineResult struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type CounterResult struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	ParentRequestID int64  `json:"parent_request_id"`
}

// proposedEntry is one day in an approved proposal. Key matching is
// case-insensitive, so "AssignedParentId" and "assignedParentId" both work.
type proposedEntry struct {
	Date             string  `json:"date"`
	AssignedParentID int64   `json:"assignedParentId"`
	Notes            *string `json:"notes"`
}

type Negotiator struct {
	db       *sql.DB
	stores   *store.Stores
	notifier Notifier
	archiver Archiver
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

// New builds a Negotiator. archiver may be nil when no export storage is
// configured.
func New(db *sql.DB, notifier Notifier, archiver Archiver, logger *slog.Logger, opts Options) *Negotiator {
	return &Negotiator{
		db:       db,
		stores:   store.New(db),
		notifier: notifier,
		archiver: archiver,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

func (n *Negotiator) requireAccess(childID, userID int64) error {
	ok, err := n.stores.Children.HasAccess(childID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NotFound("Child not found or access denied.")
	}
	return nil
}

// load fetches a request the actor may act on.
func (n *Negotiator) load(actorID, requestID int64) (*model.ChangeRequest, error) {
	req, err := n.stores.ChangeRequests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NotFound("Change request not found.")
	}
	ok, err := n.stores.Children.HasAccess(req.ChildID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFound("Change request not found.")
	}
	return req, nil
}

// checkOpen reports whether the request can still be answered.
func (n *Negotiator) checkOpen(req *model.ChangeRequest, at time.Time) error {
	if req.Status != model.StatusPending {
		return errAlreadyResponded
	}
	if n.opts.EnforceExpiry && !at.Before(req.ExpiresAt) {
		return model.InvalidOperation("This change request has expired.")
	}
	return nil
}

var errAlreadyResponded = model.InvalidOperation("This change request has already been responded to.")

func (n *Negotiator) Create(ctx context.Context, actorID, childID int64, r NewRequest) (*model.ChangeRequest, error) {
	if err := n.requireAccess(childID, actorID); err != nil {
		return nil, err
	}

	req, err := n.stores.ChangeRequests.Create(store.NewChangeRequest{
		ChildID:           childID,
		RequestedByUserID: actorID,
		Reason:            r.Reason,
		OriginalData:      r.OriginalData,
		ProposedData:      r.ProposedData,
		ExpiresAt:         n.now().Add(ResponseWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("create change request: %w", err)
	}

	body := "A schedule change has been requested."
	if r.Reason != nil && *r.Reason != "" {
		body = *r.Reason
	}
	n.notifier.NotifyOtherParent(ctx, actorID, childID, notify.Notice{
		Category:    model.CategoryScheduleChange,
		Title:       "New schedule change request",
		Body:        body,
		RelatedType: model.RelatedChangeRequest,
		RelatedID:   req.ID,
	})
	n.notifier.Changed(childID, entity, "created", req.ID)
	return req, nil
}

// Approve accepts another parent's request and applies its proposal to the
// calendar in the same transaction. A proposal that is not a list of
// {date, assignedParentId, notes} leaves the calendar untouched but the
// request is still approved; PayloadValid reports which happened. Entries
// with a bad date or a parent not linked to the child are skipped.
func (n *Negotiator) Approve(ctx context.Context, actorID, requestID int64) (ApproveResult, error) {
	req, err := n.load(actorID, requestID)
	if err != nil {
		return ApproveResult{}, err
	}
	if req.RequestedByUserID == actorID {
		return ApproveResult{}, model.InvalidOperation("You cannot approve your own request.")
	}
	at := n.now()
	if err := n.checkOpen(req, at); err != nil {
		return ApproveResult{}, err
	}

	res := ApproveResult{ID: req.ID, Status: model.StatusApproved}
	err = database.WithTx(n.db, func(tx *sql.Tx) error {
		s := store.New(tx)
		ok, err := s.ChangeRequests.Resolve(req.ID, model.StatusApproved, nil, at)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyResponded
		}
		res.Applied, res.Skipped, res.PayloadValid, err = applyProposal(s, req)
		return err
	})
	if err != nil {
		return ApproveResult{}, fmt.Errorf("approve change request: %w", err)
	}

	if !res.PayloadValid {
		n.logger.Warn("approved request has unreadable proposal", "request_id", req.ID, "child_id", req.ChildID)
	}

	n.notifier.Notify(ctx, req.RequestedByUserID, req.ChildID, notify.Notice{
		Category:    model.CategoryScheduleChange,
		Title:       "Schedule change approved",
		Body:        "Your schedule change request has been approved.",
		RelatedType: model.RelatedChangeRequest,
		RelatedID:   req.ID,
	})
	n.notifier.Changed(req.ChildID, entity, "approved", req.ID)
	if res.Applied > 0 {
		n.notifier.Changed(req.ChildID, "custody_day", "bulk_updated", 0)
	}
	return res, nil
}

func applyProposal(s *store.Stores, req *model.ChangeRequest) (applied, skipped int, valid bool, err error) {
	var entries []proposedEntry
	if json.Unmarshal([]byte(req.ProposedData), &entries) != nil {
		return 0, 0, false, nil
	}

	for _, e := range entries {
		if !custody.ValidDate(e.Date) {
			skipped++
			continue
		}
		linked, err := s.Children.HasAccess(req.ChildID, e.AssignedParentID)
		if err != nil {
			return applied, skipped, true, err
		}
		if !linked {
			skipped++
			continue
		}
		if _, err := s.Custody.SetAssignment(req.ChildID, e.Date, e.AssignedParentID, e.Notes); err != nil {
			return applied, skipped, true, err
		}
		applied++
	}
	return applied, skipped, true, nil
}

// Decline rejects a request without touching the calendar.
func (n *Negotiator) Decline(ctx context.Context, actorID, requestID int64) (DeclineResult, error) {
	req, err := n.load(actorID, requestID)
	if err != nil {
		return DeclineResult{}, err
	}
	at := n.now()
	if err := n.checkOpen(req, at); err != nil {
		return DeclineResult{}, err
	}

	ok, err := n.stores.ChangeRequests.Resolve(req.ID, model.StatusDeclined, nil, at)
	if err != nil {
		return DeclineResult{}, fmt.Errorf("decline change request: %w", err)
	}
	if !ok {
		return DeclineResult{}, errAlreadyResponded
	}

	n.notifier.Notify(ctx, req.RequestedByUserID, req.ChildID, notify.Notice{
		Category:    model.CategoryScheduleChange,
		Title:       "Schedule change declined",
		Body:        "Your schedule change request has been declined.",
		RelatedType: model.RelatedChangeRequest,
		RelatedID:   req.ID,
	})
	n.notifier.Changed(req.ChildID, entity, "declined", req.ID)
	return DeclineResult{ID: req.ID, Status: model.StatusDeclined}, nil
}

// Counter closes the request as CounterProposed and opens a new Pending
// request from the actor that points back at it. When counterData is nil
// the new request re-proposes the original's data.
func (n *Negotiator) Counter(ctx context.Context, actorID, requestID int64, counterData *string) (CounterResult, error) {
	req, err := n.load(actorID, requestID)
	if err != nil {
		return CounterResult{}, err
	}
	at := n.now()
	if err := n.checkOpen(req, at); err != nil {
		return CounterResult{}, err
	}

	proposed := req.ProposedData
	if counterData != nil {
		proposed = *counterData
	}
	reason := "Counter-proposal"
	parentID := req.ID

	var created *model.ChangeRequest
	err = database.WithTx(n.db, func(tx *sql.Tx) error {
		s := store.New(tx)
		ok, err := s.ChangeRequests.Resolve(req.ID, model.StatusCounterProposed, counterData, at)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyResponded
		}
		created, err = s.ChangeRequests.Create(store.NewChangeRequest{
			ChildID:           req.ChildID,
			RequestedByUserID: actorID,
			Reason:            &reason,
			OriginalData:      req.ProposedData,
			ProposedData:      proposed,
			ParentRequestID:   &parentID,
			ExpiresAt:         at.Add(ResponseWindow),
		})
		return err
	})
	if err != nil {
		return CounterResult{}, fmt.Errorf("counter change request: %w", err)
	}

	n.notifier.Notify(ctx, req.RequestedByUserID, req.ChildID, notify.Notice{
		Category:    model.CategoryScheduleChange,
		Title:       "Counter-proposal received",
		Body:        "A counter-proposal has been made to your schedule change request.",
		RelatedType: model.RelatedChangeRequest,
		RelatedID:   created.ID,
	})
	n.notifier.Changed(req.ChildID, entity, "countered", created.ID)
	return CounterResult{ID: created.ID, Status: created.Status, ParentRequestID: req.ID}, nil
}

// List returns the child's requests in one status, newest first. An empty
// status means Pending.
func (n *Negotiator) List(ctx context.Context, actorID, childID int64, status string) ([]model.ChangeRequest, error) {
	if err := n.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	if status == "" {
		status = model.StatusPending
	}
	if !model.ValidStatus(status) {
		return nil, model.Validation("status must be one of Pending, Approved, Declined, CounterProposed")
	}
	reqs, err := n.stores.ChangeRequests.ListByStatus(childID, status)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return reqs, nil
}

// History returns every answered request, most recently answered first.
func (n *Negotiator) History(ctx context.Context, actorID, childID int64) ([]model.ChangeRequest, error) {
	if err := n.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	reqs, err := n.stores.ChangeRequests.ListResolved(childID)
	if err != nil {
		return nil, fmt.Errorf("list change history: %w", err)
	}
	return reqs, nil
}

// Chain returns the negotiation that led to requestID, starting from the
// first proposal and ending with requestID itself.
func (n *Negotiator) Chain(ctx context.Context, actorID, requestID int64) ([]model.ChangeRequest, error) {
	req, err := n.load(actorID, requestID)
	if err != nil {
		return nil, err
	}

	chain := []model.ChangeRequest{*req}
	seen := map[int64]bool{req.ID: true}
	for cur := req; cur.ParentRequestID != nil; {
		parentID := *cur.ParentRequestID
		if seen[parentID] {
			break
		}
		parent, err := n.stores.ChangeRequests.GetByID(parentID)
		if err != nil {
			return nil, fmt.Errorf("walk change chain: %w", err)
		}
		if parent == nil {
			break
		}
		seen[parentID] = true
		chain = append(chain, *parent)
		cur = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ExportFilename is the download name for a child's CSV export.
func ExportFilename(childID int64) string {
	return fmt.Sprintf("schedule-changes-child-%d.csv", childID)
}

// Export renders every request for the child as CSV, newest first.
func (n *Negotiator) Export(ctx context.Context, actorID, childID int64) ([]byte, error) {
	if err := n.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	reqs, err := n.stores.ChangeRequests.ListAll(childID)
	if err != nil {
		return nil, fmt.Errorf("export change requests: %w", err)
	}
	return renderCSV(reqs), nil
}

// Archive uploads the current export and returns the object key.
func (n *Negotiator) Archive(ctx context.Context, actorID, childID int64) (string, error) {
	if n.archiver == nil {
		return "", model.InvalidOperation("Export archiving is not configured.")
	}
	data, err := n.Export(ctx, actorID, childID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/child-%d/schedule-changes-%s.csv", childID, n.now().UTC().Format("20060102-150405"))
	if err := n.archiver.Upload(ctx, key, "text/csv", data); err != nil {
		return "", fmt.Errorf("archive export: %w", err)
	}
	n.logger.Info("export archived", "child_id", childID, "key", key, "bytes", len(data))
	return key, nil
}

// Package custody manages which parent has a child on each calendar day.
package custody

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/notify"
	"github.com/dukerupert/splitweek/internal/store"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Notifier is the side-effect sink for calendar changes.
type Notifier interface {
	NotifyOtherParent(ctx context.Context, actorID, childID int64, n notify.Notice)
	Changed(childID int64, entity, action string, id int64)
}

// Entry is one requested day assignment. AssignedParentID 0 means the
// caller.
type Entry struct {
	Date             string  `json:"date"`
	AssignedParentID int64   `json:"assigned_parent_id"`
	Notes            *string `json:"notes"`
	HandoffTime      *string `json:"handoff_time"`
	HandoffLocation  *string `json:"handoff_location"`
}

// Result reports what Upsert did for one date.
type Result struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Action string `json:"action"`
}

type Manager struct {
	stores   *store.Stores
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(db *sql.DB, notifier Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		stores:   store.New(db),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if len(s) != len("2006-01-02") {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func (m *Manager) requireAccess(childID, userID int64) error {
	ok, err := m.stores.Children.HasAccess(childID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NotFound("Child not found or access denied.")
	}
	return nil
}

// Get returns the child's entries ordered by date, optionally limited to
// one month ("2026-02").
func (m *Manager) Get(ctx context.Context, actorID, childID int64, month string) ([]model.CustodyDay, error) {
	if err := m.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	if month != "" && !monthPattern.MatchString(month) {
		return nil, model.Validation("month must be in YYYY-MM format")
	}
	days, err := m.stores.Custody.List(childID, month)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return days, nil
}

// resolveParent maps a requested assignee to the parent actually stored: an
// unset id, or one not linked to the child, becomes the actor.
func resolveParent(children *store.ChildStore, actorID, childID, requested int64) (int64, error) {
	if requested == 0 || requested == actorID {
		return actorID, nil
	}
	ok, err := children.HasAccess(childID, requested)
	if err != nil {
		return 0, err
	}
	if !ok {
		return actorID, nil
	}
	return requested, nil
}

func (m *Manager) upsert(actorID, childID int64, e Entry) (Result, error) {
	parentID, err := resolveParent(m.stores.Children, actorID, childID, e.AssignedParentID)
	if err != nil {
		return Result{}, err
	}
	id, created, err := m.stores.Custody.Upsert(childID, e.Date, store.DayFields{
		AssignedParentID: parentID,
		Notes:            e.Notes,
		HandoffTime:      e.HandoffTime,
		HandoffLocation:  e.HandoffLocation,
	})
	if err != nil {
		return Result{}, err
	}
	action := ActionUpdated
	if created {
		action = ActionCreated
	}
	return Result{ID: id, Date: e.Date, Action: action}, nil
}

// Upsert writes a single day.
func (m *Manager) Upsert(ctx context.Context, actorID, childID int64, e Entry) (Result, error) {
	if err := m.requireAccess(childID, actorID); err != nil {
		return Result{}, err
	}
	if !ValidDate(e.Date) {
		return Result{}, model.Validation("date must be in YYYY-MM-DD format")
	}
	res, err := m.upsert(actorID, childID, e)
	if err != nil {
		return Result{}, fmt.Errorf("upsert custody day: %w", err)
	}
	m.notifier.Changed(childID, "custody_day", res.Action, res.ID)
	return res, nil
}

// BulkUpsert writes each entry in order. Entries are not applied
// atomically: if one fails, those before it stay written and the error is
// returned with the results so far.
func (m *Manager) BulkUpsert(ctx context.Context, actorID, childID int64, entries []Entry) ([]Result, error) {
	if err := m.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if !ValidDate(e.Date) {
			return nil, model.Validation(fmt.Sprintf("entry %d: date must be in YYYY-MM-DD format", i))
		}
	}

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		res, err := m.upsert(actorID, childID, e)
		if err != nil {
			return results, fmt.Errorf("bulk upsert %s: %w", e.Date, err)
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		m.notifier.Changed(childID, "custody_day", "bulk_updated", 0)
	}
	m.logger.Debug("bulk upsert", "child_id", childID, "entries", len(results))
	return results, nil
}

// UpdateDetails changes the notes and handoff fields of an entry. The
// assigned parent is left alone.
func (m *Manager) UpdateDetails(ctx context.Context, actorID, childID, entryID int64, notes, handoffTime, handoffLocation *string) (*model.CustodyDay, error) {
	if err := m.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	day, err := m.stores.Custody.UpdateDetails(childID, entryID, notes, handoffTime, handoffLocation)
	if err != nil {
		return nil, fmt.Errorf("update custody day: %w", err)
	}
	if day == nil {
		return nil, model.NotFound("Schedule entry not found.")
	}
	m.notifier.Changed(childID, "custody_day", ActionUpdated, day.ID)
	return day, nil
}

// ConfirmHandoff stamps the handoff as confirmed and tells the other
// parent. Any linked parent may confirm.
func (m *Manager) ConfirmHandoff(ctx context.Context, actorID, childID, entryID int64) (*model.CustodyDay, error) {
	if err := m.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	day, err := m.stores.Custody.ConfirmHandoff(childID, entryID, m.now())
	if err != nil {
		return nil, fmt.Errorf("confirm handoff: %w", err)
	}
	if day == nil {
		return nil, model.NotFound("Schedule entry not found.")
	}

	m.notifier.NotifyOtherParent(ctx, actorID, childID, notify.Notice{
		Category:    model.CategorySchedule,
		Title:       "Handoff confirmed",
		Body:        fmt.Sprintf("Handoff for %s has been confirmed.", day.Date),
		RelatedType: model.RelatedCustodyDay,
		RelatedID:   day.ID,
	})
	m.notifier.Changed(childID, "custody_day", "handoff_confirmed", day.ID)
	return day, nil
}

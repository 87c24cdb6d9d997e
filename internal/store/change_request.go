package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
)

type ChangeRequestStore struct {
	db database.DBTX
}

func NewChangeRequestStore(db database.DBTX) *ChangeRequestStore {
	return &ChangeRequestStore{db: db}
}

func scanChangeRequest(scanner interface{ Scan(...any) error }) (*model.ChangeRequest, error) {
	var r model.ChangeRequest
	var reason, counter sql.NullString
	var parentID sql.NullInt64
	var respondedAt sql.NullTime
	var first, last string

	err := scanner.Scan(
		&r.ID, &r.ChildID, &r.RequestedByUserID, &r.Status, &reason, &r.OriginalData, &r.ProposedData,
		&counter, &parentID, &r.ExpiresAt, &respondedAt, &r.CreatedAt, &r.UpdatedAt, &first, &last,
	)
	if err != nil {
		return nil, err
	}

	r.Reason = stringPtr(reason)
	r.CounterData = stringPtr(counter)
	r.ParentRequestID = int64Ptr(parentID)
	r.RespondedAt = timePtr(respondedAt)
	r.RequestedByName = model.DisplayName(first, last)
	return &r, nil
}

const changeRequestCols = `r.id, r.child_id, r.requested_by_user_id, r.status, r.reason, r.original_data, r.proposed_data,
	r.counter_data, r.parent_request_id, r.expires_at, r.responded_at, r.created_at, r.updated_at,
	COALESCE(u.first_name, ''), COALESCE(u.last_name, '')`

const changeRequestFrom = ` FROM schedule_change_requests r LEFT JOIN users u ON u.id = r.requested_by_user_id`

// NewChangeRequest holds the columns set when a request is created.
type NewChangeRequest struct {
	ChildID           int64
	RequestedByUserID int64
	Reason            *string
	OriginalData      string
	ProposedData      string
	ParentRequestID   *int64
	ExpiresAt         time.Time
}

func (s *ChangeRequestStore) Create(n NewChangeRequest) (*model.ChangeRequest, error) {
	ts := now()
	result, err := s.db.Exec(
		`INSERT INTO schedule_change_requests
		   (child_id, requested_by_user_id, status, reason, original_data, proposed_data, parent_request_id, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ChildID, n.RequestedByUserID, model.StatusPending, nullString(n.Reason), n.OriginalData, n.ProposedData,
		nullInt64(n.ParentRequestID), n.ExpiresAt.UTC(), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert change request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChangeRequestStore) GetByID(id int64) (*model.ChangeRequest, error) {
	row := s.db.QueryRow(`SELECT `+changeRequestCols+changeRequestFrom+` WHERE r.id = ?`, id)
	r, err := scanChangeRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get change request: %w", err)
	}
	return r, nil
}

// ListByStatus returns the child's requests in one status, newest first.
func (s *ChangeRequestStore) ListByStatus(childID int64, status string) ([]model.ChangeRequest, error) {
	return s.list(
		`WHERE r.child_id = ? AND r.status = ? ORDER BY r.created_at DESC, r.id DESC`,
		childID, status,
	)
}

// ListResolved returns every non-pending request, most recently updated first.
func (s *ChangeRequestStore) ListResolved(childID int64) ([]model.ChangeRequest, error) {
	return s.list(
		`WHERE r.child_id = ? AND r.status != ? ORDER BY r.updated_at DESC, r.id DESC`,
		childID, model.StatusPending,
	)
}

// ListAll returns every request for the child regardless of status, newest first.
func (s *ChangeRequestStore) ListAll(childID int64) ([]model.ChangeRequest, error) {
	return s.list(`WHERE r.child_id = ? ORDER BY r.created_at DESC, r.id DESC`, childID)
}

func (s *ChangeRequestStore) list(where string, args ...any) ([]model.ChangeRequest, error) {
	rows, err := s.db.Query(`SELECT `+changeRequestCols+changeRequestFrom+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	var out []model.ChangeRequest
	for rows.Next() {
		r, err := scanChangeRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Resolve moves a Pending request to status. The update only matches while
// the row is still Pending, so of two concurrent resolutions exactly one
// reports ok.
func (s *ChangeRequestStore) Resolve(id int64, status string, counterData *string, at time.Time) (ok bool, err error) {
	result, err := s.db.Exec(
		`UPDATE schedule_change_requests
		 SET status = ?, counter_data = COALESCE(?, counter_data), responded_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, nullString(counterData), at.UTC(), at.UTC(), id, model.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("resolve change request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

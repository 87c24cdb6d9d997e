package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
)

type CustodyStore struct {
	db database.DBTX
}

func NewCustodyStore(db database.DBTX) *CustodyStore {
	return &CustodyStore{db: db}
}

func scanCustodyDay(scanner interface{ Scan(...any) error }) (*model.CustodyDay, error) {
	var d model.CustodyDay
	var notes, handoffTime, handoffLocation sql.NullString
	var confirmedAt sql.NullTime
	var first, last string

	err := scanner.Scan(
		&d.ID, &d.ChildID, &d.Date, &d.AssignedParentID, &notes, &handoffTime, &handoffLocation,
		&confirmedAt, &d.CreatedAt, &d.UpdatedAt, &first, &last,
	)
	if err != nil {
		return nil, err
	}

	d.Notes = stringPtr(notes)
	d.HandoffTime = stringPtr(handoffTime)
	d.HandoffLocation = stringPtr(handoffLocation)
	d.HandoffConfirmedAt = timePtr(confirmedAt)
	d.AssignedParentName = model.DisplayName(first, last)
	d.IsHandoffDay = d.HandoffTime != nil
	return &d, nil
}

const custodyCols = `cd.id, cd.child_id, cd.date, cd.assigned_parent_id, cd.notes, cd.handoff_time, cd.handoff_location,
	cd.handoff_confirmed_at, cd.created_at, cd.updated_at, COALESCE(u.first_name, ''), COALESCE(u.last_name, '')`

const custodyFrom = ` FROM custody_days cd LEFT JOIN users u ON u.id = cd.assigned_parent_id`

// List returns the child's entries ordered by date. A non-empty prefix
// (for example "2026-02") limits the result to dates starting with it.
func (s *CustodyStore) List(childID int64, prefix string) ([]model.CustodyDay, error) {
	query := `SELECT ` + custodyCols + custodyFrom + ` WHERE cd.child_id = ?`
	args := []any{childID}
	if prefix != "" {
		query += ` AND substr(cd.date, 1, ?) = ?`
		args = append(args, len(prefix), prefix)
	}
	query += ` ORDER BY cd.date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list custody days: %w", err)
	}
	defer rows.Close()

	var days []model.CustodyDay
	for rows.Next() {
		d, err := scanCustodyDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custody day: %w", err)
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

// GetByID returns the entry only if it belongs to childID.
func (s *CustodyStore) GetByID(childID, id int64) (*model.CustodyDay, error) {
	row := s.db.QueryRow(`SELECT `+custodyCols+custodyFrom+` WHERE cd.id = ? AND cd.child_id = ?`, id, childID)
	d, err := scanCustodyDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get custody day: %w", err)
	}
	return d, nil
}

func (s *CustodyStore) GetByDate(childID int64, date string) (*model.CustodyDay, error) {
	row := s.db.QueryRow(`SELECT `+custodyCols+custodyFrom+` WHERE cd.child_id = ? AND cd.date = ?`, childID, date)
	d, err := scanCustodyDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get custody day by date: %w", err)
	}
	return d, nil
}

// DayFields are the mutable columns of a custody entry.
type DayFields struct {
	AssignedParentID int64
	Notes            *string
	HandoffTime      *string
	HandoffLocation  *string
}

// Upsert writes the entry for (childID, date), inserting it if absent and
// overwriting the mutable fields otherwise. created reports which happened.
func (s *CustodyStore) Upsert(childID int64, date string, f DayFields) (id int64, created bool, err error) {
	existing, err := s.GetByDate(childID, date)
	if err != nil {
		return 0, false, err
	}

	ts := now()
	_, err = s.db.Exec(
		`INSERT INTO custody_days (child_id, date, assigned_parent_id, notes, handoff_time, handoff_location, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(child_id, date) DO UPDATE SET
		   assigned_parent_id = excluded.assigned_parent_id,
		   notes = excluded.notes,
		   handoff_time = excluded.handoff_time,
		   handoff_location = excluded.handoff_location,
		   updated_at = excluded.updated_at`,
		childID, date, f.AssignedParentID, nullString(f.Notes), nullString(f.HandoffTime), nullString(f.HandoffLocation), ts, ts,
	)
	if err != nil {
		return 0, false, fmt.Errorf("upsert custody day: %w", err)
	}

	if existing != nil {
		return existing.ID, false, nil
	}
	err = s.db.QueryRow(`SELECT id FROM custody_days WHERE child_id = ? AND date = ?`, childID, date).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("get upserted custody day: %w", err)
	}
	return id, true, nil
}

// SetAssignment overwrites the parent and notes of (childID, date) and
// leaves the handoff fields alone. Used when applying an approved proposal.
func (s *CustodyStore) SetAssignment(childID int64, date string, parentID int64, notes *string) (created bool, err error) {
	existing, err := s.GetByDate(childID, date)
	if err != nil {
		return false, err
	}

	ts := now()
	if existing != nil {
		_, err = s.db.Exec(
			`UPDATE custody_days SET assigned_parent_id = ?, notes = ?, updated_at = ? WHERE id = ?`,
			parentID, nullString(notes), ts, existing.ID,
		)
		if err != nil {
			return false, fmt.Errorf("update custody assignment: %w", err)
		}
		return false, nil
	}

	_, err = s.db.Exec(
		`INSERT INTO custody_days (child_id, date, assigned_parent_id, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		childID, date, parentID, nullString(notes), ts, ts,
	)
	if err != nil {
		return false, fmt.Errorf("insert custody assignment: %w", err)
	}
	return true, nil
}

// UpdateDetails changes the notes and handoff fields of one entry. It
// returns nil if the entry does not belong to childID.
func (s *CustodyStore) UpdateDetails(childID, id int64, notes, handoffTime, handoffLocation *string) (*model.CustodyDay, error) {
	result, err := s.db.Exec(
		`UPDATE custody_days SET notes = ?, handoff_time = ?, handoff_location = ?, updated_at = ?
		 WHERE id = ? AND child_id = ?`,
		nullString(notes), nullString(handoffTime), nullString(handoffLocation), now(), id, childID,
	)
	if err != nil {
		return nil, fmt.Errorf("update custody day: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(childID, id)
}

// ConfirmHandoff stamps handoff_confirmed_at. It returns nil if the entry
// does not belong to childID.
func (s *CustodyStore) ConfirmHandoff(childID, id int64, at time.Time) (*model.CustodyDay, error) {
	result, err := s.db.Exec(
		`UPDATE custody_days SET handoff_confirmed_at = ?, updated_at = ? WHERE id = ? AND child_id = ?`,
		at.UTC(), now(), id, childID,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm handoff: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(childID, id)
}

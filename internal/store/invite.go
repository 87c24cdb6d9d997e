package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
)

type InviteStore struct {
	db database.DBTX
}

func NewInviteStore(db database.DBTX) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var inv model.Invite
	var email sql.NullString
	var acceptedBy sql.NullInt64
	var acceptedAt sql.NullTime

	err := scanner.Scan(
		&inv.ID, &inv.ChildID, &inv.InvitedByUserID, &inv.Token, &email,
		&inv.ExpiresAt, &acceptedBy, &acceptedAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Email = stringPtr(email)
	inv.AcceptedByUserID = int64Ptr(acceptedBy)
	inv.AcceptedAt = timePtr(acceptedAt)
	return &inv, nil
}

const inviteCols = `id, child_id, invited_by_user_id, token, email, expires_at, accepted_by_user_id, accepted_at, created_at`

func (s *InviteStore) Create(childID, invitedBy int64, token string, email *string, expiresAt time.Time) (*model.Invite, error) {
	result, err := s.db.Exec(
		`INSERT INTO invite_links (child_id, invited_by_user_id, token, email, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		childID, invitedBy, token, nullString(email), expiresAt.UTC(), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getByID(id)
}

func (s *InviteStore) getByID(id int64) (*model.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invite_links WHERE id = ?`, id)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) GetByToken(token string) (*model.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invite_links WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

// MarkAccepted consumes the invite. It reports false if the invite was
// already consumed.
func (s *InviteStore) MarkAccepted(id, userID int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE invite_links SET accepted_by_user_id = ?, accepted_at = ?
		 WHERE id = ? AND accepted_by_user_id IS NULL`,
		userID, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("accept invite: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes unaccepted invites that expired before the given
// time and returns the number deleted.
func (s *InviteStore) DeleteExpired(before time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM invite_links WHERE accepted_by_user_id IS NULL AND expires_at < ?`, before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

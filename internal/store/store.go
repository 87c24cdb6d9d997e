package store

import (
	"database/sql"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
)

// Stores bundles every store over one handle. Passing a *sql.Tx gives a set
// of stores whose writes commit or roll back together.
type Stores struct {
	Users          *UserStore
	Children       *ChildStore
	Custody        *CustodyStore
	ChangeRequests *ChangeRequestStore
	Invites        *InviteStore
	Notifications  *NotificationStore
	Push           *PushStore
}

func New(db database.DBTX) *Stores {
	return &Stores{
		Users:          NewUserStore(db),
		Children:       NewChildStore(db),
		Custody:        NewCustodyStore(db),
		ChangeRequests: NewChangeRequestStore(db),
		Invites:        NewInviteStore(db),
		Notifications:  NewNotificationStore(db),
		Push:           NewPushStore(db),
	}
}

// now is the timestamp written to created_at/updated_at columns. Stored
// values are always UTC so text ordering matches time ordering.
func now() time.Time {
	return time.Now().UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

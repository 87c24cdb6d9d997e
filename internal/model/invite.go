package model

import "time"

type Invite struct {
	ID               int64      `json:"id"`
	ChildID          int64      `json:"child_id"`
	InvitedByUserID  int64      `json:"invited_by_user_id"`
	Token            string     `json:"token"`
	Email            *string    `json:"email"`
	ExpiresAt        time.Time  `json:"expires_at"`
	AcceptedByUserID *int64     `json:"accepted_by_user_id"`
	AcceptedAt       *time.Time `json:"accepted_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

package model

import "time"

const (
	StatusPending         = "Pending"
	StatusApproved        = "Approved"
	StatusDeclined        = "Declined"
	StatusCounterProposed = "CounterProposed"
)

// ValidStatus reports whether s is one of the four request statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusCounterProposed:
		return true
	}
	return false
}

type ChangeRequest struct {
	ID                int64      `json:"id"`
	ChildID           int64      `json:"child_id"`
	RequestedByUserID int64      `json:"requested_by_user_id"`
	RequestedByName   string     `json:"requested_by_name"`
	Status            string     `json:"status"`
	Reason            *string    `json:"reason"`
	OriginalData      string     `json:"original_data"`
	ProposedData      string     `json:"proposed_data"`
	CounterData       *string    `json:"counter_data"`
	ParentRequestID   *int64     `json:"parent_request_id"`
	ExpiresAt         time.Time  `json:"expires_at"`
	RespondedAt       *time.Time `json:"responded_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

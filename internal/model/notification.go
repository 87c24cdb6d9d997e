package model

import "time"

// Notification categories.
const (
	CategorySchedule       = "Schedule"
	CategoryScheduleChange = "ScheduleChange"
	CategoryLinking        = "Linking"
)

// Related entity types.
const (
	RelatedCustodyDay    = "CustodySchedule"
	RelatedChangeRequest = "ScheduleChangeRequest"
	RelatedChild         = "Child"
)

type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ChildID     int64     `json:"child_id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	RelatedType *string   `json:"related_type"`
	RelatedID   *int64    `json:"related_id"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

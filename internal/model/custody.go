package model

import "time"

// CustodyDay assigns one calendar date of a child to a parent. There is at
// most one row per (ChildID, Date).
type CustodyDay struct {
	ID                 int64      `json:"id"`
	ChildID            int64      `json:"child_id"`
	Date               string     `json:"date"`
	AssignedParentID   int64      `json:"assigned_parent_id"`
	AssignedParentName string     `json:"assigned_parent_name"`
	Notes              *string    `json:"notes"`
	HandoffTime        *string    `json:"handoff_time"`
	HandoffLocation    *string    `json:"handoff_location"`
	HandoffConfirmedAt *time.Time `json:"handoff_confirmed_at"`
	IsHandoffDay       bool       `json:"is_handoff_day"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

package model

import "time"

// Parent roles. The creator of a child is ParentA; whoever accepts the
// invite becomes ParentB.
const (
	RoleParentA = "ParentA"
	RoleParentB = "ParentB"

	ColorParentA = "#3B82F6"
	ColorParentB = "#8B5CF6"
)

type Child struct {
	ID                     int64     `json:"id"`
	FirstName              string    `json:"first_name"`
	LastName               string    `json:"last_name"`
	DateOfBirth            *string   `json:"date_of_birth"`
	Allergies              *string   `json:"allergies"`
	MedicalNotes           *string   `json:"medical_notes"`
	EmergencyContact1Name  *string   `json:"emergency_contact1_name"`
	EmergencyContact1Phone *string   `json:"emergency_contact1_phone"`
	EmergencyContact2Name  *string   `json:"emergency_contact2_name"`
	EmergencyContact2Phone *string   `json:"emergency_contact2_phone"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ChildSummary is a child as seen by one linked parent.
type ChildSummary struct {
	Child
	Role     string `json:"role"`
	ColorHex string `json:"color_hex"`
}

type ParentLink struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ChildID   int64     `json:"child_id"`
	Role      string    `json:"role"`
	ColorHex  string    `json:"color_hex"`
	CreatedAt time.Time `json:"created_at"`
}

// Parent is a linked parent with the profile fields clients display.
type Parent struct {
	UserID    int64   `json:"user_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	Role      string  `json:"role"`
	ColorHex  string  `json:"color_hex"`
}

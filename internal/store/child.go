package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
)

type ChildStore struct {
	db database.DBTX
}

func NewChildStore(db database.DBTX) *ChildStore {
	return &ChildStore{db: db}
}

// ChildFields are the caller-editable columns of a child profile.
type ChildFields struct {
	FirstName              string
	LastName               string
	DateOfBirth            *string
	Allergies              *string
	MedicalNotes           *string
	EmergencyContact1Name  *string
	EmergencyContact1Phone *string
	EmergencyContact2Name  *string
	EmergencyContact2Phone *string
}

func scanChild(scanner interface{ Scan(...any) error }, extra ...any) (*model.Child, error) {
	var c model.Child
	var dob, allergies, medical, ec1n, ec1p, ec2n, ec2p sql.NullString
	dest := []any{
		&c.ID, &c.FirstName, &c.LastName, &dob, &allergies, &medical,
		&ec1n, &ec1p, &ec2n, &ec2p, &c.CreatedAt, &c.UpdatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.DateOfBirth = stringPtr(dob)
	c.Allergies = stringPtr(allergies)
	c.MedicalNotes = stringPtr(medical)
	c.EmergencyContact1Name = stringPtr(ec1n)
	c.EmergencyContact1Phone = stringPtr(ec1p)
	c.EmergencyContact2Name = stringPtr(ec2n)
	c.EmergencyContact2Phone = stringPtr(ec2p)
	return &c, nil
}

const childCols = `c.id, c.first_name, c.last_name, c.date_of_birth, c.allergies, c.medical_notes,
	c.emergency_contact1_name, c.emergency_contact1_phone, c.emergency_contact2_name, c.emergency_contact2_phone,
	c.created_at, c.updated_at`

func (s *ChildStore) Create(f ChildFields) (*model.Child, error) {
	ts := now()
	result, err := s.db.Exec(
		`INSERT INTO children (first_name, last_name, date_of_birth, allergies, medical_notes,
		   emergency_contact1_name, emergency_contact1_phone, emergency_contact2_name, emergency_contact2_phone,
		   created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FirstName, f.LastName, nullString(f.DateOfBirth), nullString(f.Allergies), nullString(f.MedicalNotes),
		nullString(f.EmergencyContact1Name), nullString(f.EmergencyContact1Phone),
		nullString(f.EmergencyContact2Name), nullString(f.EmergencyContact2Phone),
		ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChildStore) GetByID(id int64) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children c WHERE c.id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func (s *ChildStore) Update(id int64, f ChildFields) (*model.Child, error) {
	_, err := s.db.Exec(
		`UPDATE children SET first_name = ?, last_name = ?, date_of_birth = ?, allergies = ?, medical_notes = ?,
		   emergency_contact1_name = ?, emergency_contact1_phone = ?,
		   emergency_contact2_name = ?, emergency_contact2_phone = ?, updated_at = ?
		 WHERE id = ?`,
		f.FirstName, f.LastName, nullString(f.DateOfBirth), nullString(f.Allergies), nullString(f.MedicalNotes),
		nullString(f.EmergencyContact1Name), nullString(f.EmergencyContact1Phone),
		nullString(f.EmergencyContact2Name), nullString(f.EmergencyContact2Phone),
		now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(id)
}

// ListForUser returns the children the user is linked to, with the user's
// role and color on each.
func (s *ChildStore) ListForUser(userID int64) ([]model.ChildSummary, error) {
	rows, err := s.db.Query(
		`SELECT `+childCols+`, pc.role, pc.color_hex
		 FROM children c JOIN parent_children pc ON pc.child_id = c.id
		 WHERE pc.user_id = ?
		 ORDER BY c.first_name, c.id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []model.ChildSummary
	for rows.Next() {
		var role, color string
		c, err := scanChild(rows, &role, &color)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, model.ChildSummary{Child: *c, Role: role, ColorHex: color})
	}
	return out, rows.Err()
}

// LinkParent records userID as a parent of childID.
func (s *ChildStore) LinkParent(userID, childID int64, role, colorHex string) (*model.ParentLink, error) {
	ts := now()
	result, err := s.db.Exec(
		`INSERT INTO parent_children (user_id, child_id, role, color_hex, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, childID, role, colorHex, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert parent link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.ParentLink{ID: id, UserID: userID, ChildID: childID, Role: role, ColorHex: colorHex, CreatedAt: ts}, nil
}

// HasAccess reports whether userID holds a parent link to childID. It is the
// sole authorization check for child-scoped data.
func (s *ChildStore) HasAccess(childID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM parent_children WHERE child_id = ? AND user_id = ?`, childID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	return n > 0, nil
}

func (s *ChildStore) CountParents(childID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM parent_children WHERE child_id = ?`, childID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count parents: %w", err)
	}
	return n, nil
}

// ListParents returns the child's linked parents in link order.
func (s *ChildStore) ListParents(childID int64) ([]model.Parent, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.first_name, u.last_name, u.email, u.phone, pc.role, pc.color_hex
		 FROM parent_children pc JOIN users u ON u.id = pc.user_id
		 WHERE pc.child_id = ?
		 ORDER BY pc.id`, childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	defer rows.Close()

	var parents []model.Parent
	for rows.Next() {
		var p model.Parent
		var phone sql.NullString
		if err := rows.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &phone, &p.Role, &p.ColorHex); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		p.Phone = stringPtr(phone)
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

// OtherParentIDs returns every parent of childID except userID, in link order.
func (s *ChildStore) OtherParentIDs(childID, userID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM parent_children WHERE child_id = ? AND user_id != ? ORDER BY id`,
		childID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list other parents: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan parent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package store

import (
	"testing"

	"github.com/dukerupert/splitweek/internal/database"
)

func openTestDB(t *testing.T) *Stores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func mustUser(t *testing.T, s *Stores, email, first, last string) int64 {
	t.Helper()
	u, err := s.Users.Create(email, "", first, last, nil)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

func TestUserCreate(t *testing.T) {
	s := openTestDB(t)

	phone := "555-0100"
	u, err := s.Users.Create("mario@example.com", "hash", "Mario", "Rossi", &phone)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "mario@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "mario@example.com")
	}
	if u.DisplayName() != "Mario Rossi" {
		t.Errorf("display name = %q, want %q", u.DisplayName(), "Mario Rossi")
	}
	if u.Phone == nil || *u.Phone != phone {
		t.Errorf("phone = %v, want %q", u.Phone, phone)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want %q", u.PasswordHash, "hash")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	s := openTestDB(t)

	mustUser(t, s, "mario@example.com", "Mario", "Rossi")
	if _, err := s.Users.Create("mario@example.com", "", "Other", "Person", nil); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserGetByEmail(t *testing.T) {
	s := openTestDB(t)

	id := mustUser(t, s, "alex@example.com", "Alex", "Smith")

	u, err := s.Users.GetByEmail("alex@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("got %+v, want id %d", u, id)
	}

	missing, err := s.Users.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}

	byID, err := s.Users.GetByID(999)
	if err != nil {
		t.Fatalf("get missing by id: %v", err)
	}
	if byID != nil {
		t.Errorf("expected nil for missing id, got %+v", byID)
	}
}

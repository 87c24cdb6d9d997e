package store

import (
	"testing"

	"github.com/dukerupert/splitweek/internal/model"
)

func mustChild(t *testing.T, s *Stores, owner int64, first string) int64 {
	t.Helper()
	c, err := s.Children.Create(ChildFields{FirstName: first, LastName: "Rossi"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if _, err := s.Children.LinkParent(owner, c.ID, model.RoleParentA, model.ColorParentA); err != nil {
		t.Fatalf("link parent: %v", err)
	}
	return c.ID
}

func TestChildCreateAndUpdate(t *testing.T) {
	s := openTestDB(t)

	dob := "2019-05-04"
	c, err := s.Children.Create(ChildFields{FirstName: "Sophie", LastName: "Rossi", DateOfBirth: &dob})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if c.FirstName != "Sophie" {
		t.Errorf("first name = %q, want %q", c.FirstName, "Sophie")
	}
	if c.DateOfBirth == nil || *c.DateOfBirth != dob {
		t.Errorf("date of birth = %v, want %q", c.DateOfBirth, dob)
	}

	allergies := "peanuts"
	updated, err := s.Children.Update(c.ID, ChildFields{FirstName: "Sophia", LastName: "Rossi", Allergies: &allergies})
	if err != nil {
		t.Fatalf("update child: %v", err)
	}
	if updated.FirstName != "Sophia" {
		t.Errorf("first name = %q, want %q", updated.FirstName, "Sophia")
	}
	if updated.Allergies == nil || *updated.Allergies != "peanuts" {
		t.Errorf("allergies = %v, want peanuts", updated.Allergies)
	}
	if updated.DateOfBirth != nil {
		t.Errorf("date of birth = %v, want nil after update", updated.DateOfBirth)
	}
}

func TestParentLinksAndAccess(t *testing.T) {
	s := openTestDB(t)

	mario := mustUser(t, s, "mario@example.com", "Mario", "Rossi")
	alex := mustUser(t, s, "alex@example.com", "Alex", "Smith")
	stranger := mustUser(t, s, "eve@example.com", "Eve", "Jones")
	child := mustChild(t, s, mario, "Sophie")

	if _, err := s.Children.LinkParent(alex, child, model.RoleParentB, model.ColorParentB); err != nil {
		t.Fatalf("link second parent: %v", err)
	}
	if _, err := s.Children.LinkParent(alex, child, model.RoleParentB, model.ColorParentB); err == nil {
		t.Fatal("expected error linking the same parent twice")
	}

	for _, tc := range []struct {
		user int64
		want bool
	}{
		{mario, true},
		{alex, true},
		{stranger, false},
	} {
		got, err := s.Children.HasAccess(child, tc.user)
		if err != nil {
			t.Fatalf("has access: %v", err)
		}
		if got != tc.want {
			t.Errorf("HasAccess(%d, %d) = %v, want %v", child, tc.user, got, tc.want)
		}
	}

	parents, err := s.Children.ListParents(child)
	if err != nil {
		t.Fatalf("list parents: %v", err)
	}
	if len(parents) != 2 {
		t.Fatalf("len(parents) = %d, want 2", len(parents))
	}
	if parents[0].UserID != mario || parents[0].Role != model.RoleParentA {
		t.Errorf("first parent = %+v, want mario as ParentA", parents[0])
	}
	if parents[1].UserID != alex || parents[1].ColorHex != model.ColorParentB {
		t.Errorf("second parent = %+v, want alex with ParentB color", parents[1])
	}

	others, err := s.Children.OtherParentIDs(child, mario)
	if err != nil {
		t.Fatalf("other parents: %v", err)
	}
	if len(others) != 1 || others[0] != alex {
		t.Errorf("other parents = %v, want [%d]", others, alex)
	}

	n, err := s.Children.CountParents(child)
	if err != nil {
		t.Fatalf("count parents: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	list, err := s.Children.ListForUser(alex)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(list) != 1 || list[0].ID != child || list[0].Role != model.RoleParentB {
		t.Errorf("list for alex = %+v, want one ParentB entry", list)
	}

	none, err := s.Children.ListForUser(stranger)
	if err != nil {
		t.Fatalf("list for stranger: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("stranger sees %d children, want 0", len(none))
	}
}

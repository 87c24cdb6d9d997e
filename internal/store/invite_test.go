package store

import (
	"testing"
	"time"
)

func TestInviteAcceptOnce(t *testing.T) {
	s := openTestDB(t)
	mario := mustUser(t, s, "mario@example.com", "Mario", "Rossi")
	alex := mustUser(t, s, "alex@example.com", "Alex", "Smith")
	child := mustChild(t, s, mario, "Sophie")

	inv, err := s.Invites.Create(child, mario, "tok-1", nil, time.Now().Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	got, err := s.Invites.GetByToken("tok-1")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ID != inv.ID || got.AcceptedByUserID != nil {
		t.Fatalf("got %+v, want unaccepted invite %d", got, inv.ID)
	}

	ok, err := s.Invites.MarkAccepted(inv.ID, alex, time.Now())
	if err != nil || !ok {
		t.Fatalf("mark accepted = %v, %v; want true", ok, err)
	}
	ok, err = s.Invites.MarkAccepted(inv.ID, alex, time.Now())
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if ok {
		t.Error("second accept should report false")
	}

	missing, err := s.Invites.GetByToken("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestInviteDeleteExpired(t *testing.T) {
	s := openTestDB(t)
	mario := mustUser(t, s, "mario@example.com", "Mario", "Rossi")
	alex := mustUser(t, s, "alex@example.com", "Alex", "Smith")
	child := mustChild(t, s, mario, "Sophie")

	past := time.Now().Add(-time.Hour)
	if _, err := s.Invites.Create(child, mario, "old", nil, past); err != nil {
		t.Fatalf("create old: %v", err)
	}
	used, _ := s.Invites.Create(child, mario, "used", nil, past)
	s.Invites.MarkAccepted(used.ID, alex, past)
	if _, err := s.Invites.Create(child, mario, "fresh", nil, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	n, err := s.Invites.DeleteExpired(time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if inv, _ := s.Invites.GetByToken("used"); inv == nil {
		t.Error("accepted invite should be kept")
	}
	if inv, _ := s.Invites.GetByToken("fresh"); inv == nil {
		t.Error("unexpired invite should be kept")
	}
}

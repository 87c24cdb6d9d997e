package store

import "testing"

func TestPushSubscriptionCRUD(t *testing.T) {
	s := openTestDB(t)
	mario := mustUser(t, s, "mario@example.com", "Mario", "Rossi")
	alex := mustUser(t, s, "alex@example.com", "Alex", "Smith")

	sub, err := s.Push.CreateSubscription(mario, "https://push.example.com/1", "p256", "auth", "Phone")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 || sub.UserID != mario {
		t.Fatalf("sub = %+v", sub)
	}

	// Same endpoint re-subscribed by another user moves ownership.
	again, err := s.Push.CreateSubscription(alex, "https://push.example.com/1", "p256-2", "auth-2", "Phone")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if again.ID != sub.ID || again.UserID != alex || again.P256dhKey != "p256-2" {
		t.Errorf("again = %+v, want same id owned by alex with new keys", again)
	}

	subs, _ := s.Push.ListByUser(mario)
	if len(subs) != 0 {
		t.Errorf("mario subs = %d, want 0", len(subs))
	}

	if err := s.Push.DeleteSubscription(sub.ID, mario); err != nil {
		t.Fatalf("delete as wrong user: %v", err)
	}
	subs, _ = s.Push.ListByUser(alex)
	if len(subs) != 1 {
		t.Fatalf("alex subs = %d, want 1 after foreign delete", len(subs))
	}

	if err := s.Push.DeleteByEndpoint("https://push.example.com/1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ = s.Push.ListByUser(alex)
	if len(subs) != 0 {
		t.Errorf("alex subs = %d, want 0", len(subs))
	}
}

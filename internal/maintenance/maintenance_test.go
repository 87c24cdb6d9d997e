package maintenance

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/store"
)

type countingCleaner struct{ calls int }

func (c *countingCleaner) Cleanup() int {
	c.calls++
	return 3
}

func TestSweep(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := store.New(db)

	user, _ := s.Users.Create("mario@example.com", "", "Mario", "Rossi", nil)
	child, _ := s.Children.Create(store.ChildFields{FirstName: "Sophie"})
	s.Children.LinkParent(user.ID, child.ID, model.RoleParentA, model.ColorParentA)

	now := time.Now()
	s.Invites.Create(child.ID, user.ID, "old", nil, now.Add(-time.Hour))
	s.Invites.Create(child.ID, user.ID, "fresh", nil, now.Add(time.Hour))

	read, _ := s.Notifications.Create(model.Notification{UserID: user.ID, ChildID: child.ID, Category: model.CategorySchedule, Title: "a", Body: "b"})
	s.Notifications.MarkRead(read.ID, user.ID)
	s.Notifications.Create(model.Notification{UserID: user.ID, ChildID: child.ID, Category: model.CategorySchedule, Title: "c", Body: "d"})

	cleaner := &countingCleaner{}
	j := New(db, cleaner, slog.Default(), Config{Retention: time.Hour})
	// Read notifications count as old once the clock is past retention.
	j.now = func() time.Time { return now.Add(2 * time.Hour) }

	r := j.Sweep()
	if r.ExpiredInvites != 2 {
		t.Errorf("expired invites = %d, want 2", r.ExpiredInvites)
	}
	if r.ReadNotifications != 1 {
		t.Errorf("read notifications = %d, want 1", r.ReadNotifications)
	}
	if r.RateWindows != 3 || cleaner.calls != 1 {
		t.Errorf("rate windows = %d calls = %d", r.RateWindows, cleaner.calls)
	}

	unread, _ := s.Notifications.UnreadCount(user.ID)
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	j := New(db, nil, slog.Default(), Config{Schedule: "whenever"})
	if err := j.Start(); err == nil {
		t.Error("expected error for invalid schedule")
	}

	j = New(db, nil, slog.Default(), Config{})
	if err := j.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	j.Stop()
	j.Stop()
}

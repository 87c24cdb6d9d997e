package linking

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/notify"
	"github.com/dukerupert/splitweek/internal/store"
)

type fakeNotifier struct {
	linked  [][2]int64
	notices []notify.Notice
	changes []string
}

func (f *fakeNotifier) NotifyOtherParent(_ context.Context, _, _ int64, n notify.Notice) {
	f.notices = append(f.notices, n)
}

func (f *fakeNotifier) Changed(_ int64, entity, action string, _ int64) {
	f.changes = append(f.changes, entity+"_"+action)
}

func (f *fakeNotifier) Linked(userID, childID int64) {
	f.linked = append(f.linked, [2]int64{userID, childID})
}

type fakeMailer struct {
	configured bool
	err        error
	to         string
	inviter    string
	child      string
	token      string
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) SendInvite(_ context.Context, to, inviter, child, token string, _ time.Time) error {
	m.to, m.inviter, m.child, m.token = to, inviter, child, token
	return m.err
}

type fixture struct {
	svc      *Service
	stores   *store.Stores
	notifier *fakeNotifier
	mailer   *fakeMailer
	mario    int64
	alex     int64
	sam      int64
}

func setup(t *testing.T, opts Options) fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	mario, _ := s.Users.Create("mario@example.com", "", "Mario", "Rossi", nil)
	alex, _ := s.Users.Create("alex@example.com", "", "Alex", "Smith", nil)
	sam, _ := s.Users.Create("sam@example.com", "", "Sam", "Lee", nil)

	rec := &fakeNotifier{}
	mailer := &fakeMailer{configured: true}
	svc := NewService(db, mailer, rec, slog.Default(), opts)
	tokens := []string{"tok-1", "tok-2", "tok-3", "tok-4"}
	svc.newToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}
	return fixture{svc: svc, stores: s, notifier: rec, mailer: mailer, mario: mario.ID, alex: alex.ID, sam: sam.ID}
}

func (f fixture) child(t *testing.T) int64 {
	t.Helper()
	c, err := f.svc.CreateChild(context.Background(), f.mario, store.ChildFields{FirstName: "Sophie", LastName: "Rossi"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return c.ID
}

func TestCreateChildLinksCreatorAsParentA(t *testing.T) {
	f := setup(t, Options{MaxParents: DefaultMaxParents})
	childID := f.child(t)

	children, err := f.svc.ListChildren(context.Background(), f.mario)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1", len(children))
	}
	if children[0].Role != model.RoleParentA || children[0].ColorHex != model.ColorParentA {
		t.Errorf("link = %s %s", children[0].Role, children[0].ColorHex)
	}
	if len(f.notifier.linked) != 1 || f.notifier.linked[0] != [2]int64{f.mario, childID} {
		t.Errorf("linked = %v", f.notifier.linked)
	}

	_, err = f.svc.CreateChild(context.Background(), f.mario, store.ChildFields{FirstName: "  "})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("blank name err = %v, want ErrValidation", err)
	}
	bad := "03/01/2020"
	_, err = f.svc.CreateChild(context.Background(), f.mario, store.ChildFields{FirstName: "Leo", DateOfBirth: &bad})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("bad dob err = %v, want ErrValidation", err)
	}
}

func TestInviteAndAccept(t *testing.T) {
	f := setup(t, Options{MaxParents: DefaultMaxParents})
	ctx := context.Background()
	childID := f.child(t)

	email := " alex@example.com "
	inv, err := f.svc.GenerateInvite(ctx, f.mario, childID, &email)
	if err != nil {
		t.Fatalf("generate invite: %v", err)
	}
	if inv.Token != "tok-1" || !inv.Emailed {
		t.Errorf("invite = %+v", inv)
	}
	if f.mailer.to != "alex@example.com" || f.mailer.inviter != "Mario Rossi" || f.mailer.child != "Sophie" {
		t.Errorf("mail = %+v", f.mailer)
	}
	if d := time.Until(inv.ExpiresAt); d < 6*24*time.Hour || d > 7*24*time.Hour+time.Minute {
		t.Errorf("expires in %v, want about 7 days", d)
	}

	res, err := f.svc.AcceptInvite(ctx, f.alex, inv.Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.ChildID != childID || res.ChildName != "Sophie Rossi" || res.Role != model.RoleParentB {
		t.Errorf("result = %+v", res)
	}

	parents, _ := f.svc.ListParents(ctx, f.alex, childID)
	if len(parents) != 2 || parents[1].UserID != f.alex || parents[1].ColorHex != model.ColorParentB {
		t.Errorf("parents = %+v", parents)
	}

	profile, err := f.svc.GetChild(ctx, f.alex, childID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if profile.MyRole != model.RoleParentB || profile.ParentAName == nil || *profile.ParentAName != "Mario Rossi" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.ParentBName == nil || *profile.ParentBName != "Alex Smith" {
		t.Errorf("parent b = %v", profile.ParentBName)
	}

	if len(f.notifier.notices) != 1 || f.notifier.notices[0].Category != model.CategoryLinking {
		t.Errorf("notices = %+v", f.notifier.notices)
	}
}

func TestAcceptInviteRejections(t *testing.T) {
	f := setup(t, Options{MaxParents: DefaultMaxParents})
	ctx := context.Background()
	childID := f.child(t)

	used, _ := f.svc.GenerateInvite(ctx, f.mario, childID, nil)
	if _, err := f.svc.AcceptInvite(ctx, f.alex, used.Token); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	own, _ := f.svc.GenerateInvite(ctx, f.mario, childID, nil)

	expired, _ := f.svc.GenerateInvite(ctx, f.mario, childID, nil)
	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, expiredErr := f.svc.AcceptInvite(ctx, f.sam, expired.Token)
	f.svc.now = time.Now

	tests := []struct {
		name  string
		user  int64
		token string
		want  error
	}{
		{"already used", f.sam, used.Token, model.ErrInvalidOperation},
		{"own invite", f.mario, own.Token, model.ErrInvalidOperation},
		{"already linked", f.alex, own.Token, model.ErrInvalidOperation},
		{"unknown token", f.sam, "nope", model.ErrNotFound},
		{"empty token", f.sam, "", model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AcceptInvite(ctx, tt.user, tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if !errors.Is(expiredErr, model.ErrInvalidOperation) {
		t.Errorf("expired err = %v, want ErrInvalidOperation", expiredErr)
	}
	var opErr *model.OpError
	if !errors.As(expiredErr, &opErr) || opErr.Msg != "Invite link has expired." {
		t.Errorf("expired message = %v", expiredErr)
	}
}

func TestAcceptInviteMaxParents(t *testing.T) {
	f := setup(t, Options{MaxParents: DefaultMaxParents})
	ctx := context.Background()
	childID := f.child(t)

	first, _ := f.svc.GenerateInvite(ctx, f.mario, childID, nil)
	second, _ := f.svc.GenerateInvite(ctx, f.mario, childID, nil)
	f.svc.AcceptInvite(ctx, f.alex, first.Token)

	_, err := f.svc.AcceptInvite(ctx, f.sam, second.Token)
	if !errors.Is(err, model.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}

	// The invite stays unconsumed when the cap rejects it.
	inv, _ := f.stores.Invites.GetByToken(second.Token)
	if inv.AcceptedByUserID != nil {
		t.Error("invite consumed despite rejection")
	}

	unlimited := setup(t, Options{})
	childID = unlimited.child(t)
	for _, user := range []int64{unlimited.alex, unlimited.sam} {
		inv, _ := unlimited.svc.GenerateInvite(ctx, unlimited.mario, childID, nil)
		if _, err := unlimited.svc.AcceptInvite(ctx, user, inv.Token); err != nil {
			t.Errorf("uncapped accept: %v", err)
		}
	}
}

func TestGenerateInviteEmailBestEffort(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	childID := f.child(t)

	f.mailer.err = errors.New("postmark down")
	email := "alex@example.com"
	inv, err := f.svc.GenerateInvite(ctx, f.mario, childID, &email)
	if err != nil {
		t.Fatalf("generate invite: %v", err)
	}
	if inv.Emailed {
		t.Error("emailed = true despite send failure")
	}

	f.mailer.configured = false
	f.mailer.to = ""
	inv, _ = f.svc.GenerateInvite(ctx, f.mario, childID, &email)
	if inv.Emailed || f.mailer.to != "" {
		t.Error("unconfigured mailer was used")
	}

	bad := "not-an-email"
	if _, err := f.svc.GenerateInvite(ctx, f.mario, childID, &bad); !errors.Is(err, model.ErrValidation) {
		t.Errorf("bad email err = %v, want ErrValidation", err)
	}
	if _, err := f.svc.GenerateInvite(ctx, f.alex, childID, nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("stranger err = %v, want ErrNotFound", err)
	}
}

func TestUpdateChild(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	childID := f.child(t)

	allergies := "peanuts"
	child, err := f.svc.UpdateChild(ctx, f.mario, childID, store.ChildFields{FirstName: "Sophia", LastName: "Rossi", Allergies: &allergies})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if child.FirstName != "Sophia" || child.Allergies == nil || *child.Allergies != "peanuts" {
		t.Errorf("child = %+v", child)
	}
	if len(f.notifier.changes) != 1 || f.notifier.changes[0] != "child_updated" {
		t.Errorf("changes = %v", f.notifier.changes)
	}

	if _, err := f.svc.UpdateChild(ctx, f.alex, childID, store.ChildFields{FirstName: "X"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("stranger err = %v, want ErrNotFound", err)
	}
}

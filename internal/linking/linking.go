// Package linking manages children and the parent links that grant access
// to them, including the invite flow that brings in a second parent.
package linking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/notify"
	"github.com/dukerupert/splitweek/internal/store"
)

const (
	DefaultInviteTTL  = 7 * 24 * time.Hour
	DefaultMaxParents = 2
)

// Mailer delivers invite links by email.
type Mailer interface {
	Configured() bool
	SendInvite(ctx context.Context, toEmail, inviterName, childName, token string, expiresAt time.Time) error
}

type Notifier interface {
	NotifyOtherParent(ctx context.Context, actorID, childID int64, n notify.Notice)
	Changed(childID int64, entity, action string, id int64)
	Linked(userID, childID int64)
}

type Options struct {
	// MaxParents caps the parents linked to one child. Zero means no cap.
	MaxParents int
	InviteTTL  time.Duration
}

// ChildProfile is a child as shown to one of its parents.
type ChildProfile struct {
	model.Child
	ParentAName *string `json:"parent_a_name"`
	ParentBName *string `json:"parent_b_name"`
	MyRole      string  `json:"my_role"`
}

type InviteResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Emailed   bool      `json:"emailed"`
}

type AcceptResult struct {
	ChildID   int64  `json:"child_id"`
	ChildName string `json:"child_name"`
	Role      string `json:"role"`
}

type Service struct {
	db       *sql.DB
	stores   *store.Stores
	mailer   Mailer
	notifier Notifier
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
	newToken func() string
}

// NewService builds a Service. mailer may be nil.
func NewService(db *sql.DB, mailer Mailer, notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = DefaultInviteTTL
	}
	return &Service{
		db:       db,
		stores:   store.New(db),
		mailer:   mailer,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

func (s *Service) requireAccess(childID, userID int64) error {
	ok, err := s.stores.Children.HasAccess(childID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NotFound("Child not found or access denied.")
	}
	return nil
}

func validateChild(f store.ChildFields) error {
	if strings.TrimSpace(f.FirstName) == "" {
		return model.Validation("first_name is required")
	}
	if f.DateOfBirth != nil && *f.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", *f.DateOfBirth); err != nil {
			return model.Validation("date_of_birth must be in YYYY-MM-DD format")
		}
	}
	return nil
}

// CreateChild adds a child with the creator linked as ParentA.
func (s *Service) CreateChild(ctx context.Context, userID int64, f store.ChildFields) (*model.Child, error) {
	if err := validateChild(f); err != nil {
		return nil, err
	}

	var child *model.Child
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		st := store.New(tx)
		var err error
		child, err = st.Children.Create(f)
		if err != nil {
			return err
		}
		_, err = st.Children.LinkParent(userID, child.ID, model.RoleParentA, model.ColorParentA)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create child: %w", err)
	}

	s.notifier.Linked(userID, child.ID)
	s.logger.Info("child created", "child_id", child.ID, "user_id", userID)
	return child, nil
}

func (s *Service) ListChildren(ctx context.Context, userID int64) ([]model.ChildSummary, error) {
	children, err := s.stores.Children.ListForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// GetChild returns the child's profile with the names of both parents.
func (s *Service) GetChild(ctx context.Context, userID, childID int64) (*ChildProfile, error) {
	if err := s.requireAccess(childID, userID); err != nil {
		return nil, err
	}
	child, err := s.stores.Children.GetByID(childID)
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	if child == nil {
		return nil, model.NotFound("Child not found or access denied.")
	}
	parents, err := s.stores.Children.ListParents(childID)
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}

	profile := &ChildProfile{Child: *child}
	for _, p := range parents {
		name := model.DisplayName(p.FirstName, p.LastName)
		switch p.Role {
		case model.RoleParentA:
			if profile.ParentAName == nil {
				profile.ParentAName = &name
			}
		case model.RoleParentB:
			if profile.ParentBName == nil {
				profile.ParentBName = &name
			}
		}
		if p.UserID == userID {
			profile.MyRole = p.Role
		}
	}
	return profile, nil
}

// UpdateChild replaces the child's profile fields.
func (s *Service) UpdateChild(ctx context.Context, userID, childID int64, f store.ChildFields) (*model.Child, error) {
	if err := s.requireAccess(childID, userID); err != nil {
		return nil, err
	}
	if err := validateChild(f); err != nil {
		return nil, err
	}
	child, err := s.stores.Children.Update(childID, f)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	s.notifier.Changed(childID, "child", "updated", childID)
	return child, nil
}

func (s *Service) ListParents(ctx context.Context, userID, childID int64) ([]model.Parent, error) {
	if err := s.requireAccess(childID, userID); err != nil {
		return nil, err
	}
	parents, err := s.stores.Children.ListParents(childID)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	return parents, nil
}

// GenerateInvite creates a single-use invite for childID. When email is
// given and a mailer is configured the link is sent there too; a failed
// send is logged and does not fail the invite.
func (s *Service) GenerateInvite(ctx context.Context, userID, childID int64, email *string) (InviteResult, error) {
	if err := s.requireAccess(childID, userID); err != nil {
		return InviteResult{}, err
	}
	if email != nil {
		trimmed := strings.TrimSpace(*email)
		if trimmed == "" {
			email = nil
		} else if !strings.Contains(trimmed, "@") {
			return InviteResult{}, model.Validation("email is not valid")
		} else {
			email = &trimmed
		}
	}

	invite, err := s.stores.Invites.Create(childID, userID, s.newToken(), email, s.now().Add(s.opts.InviteTTL))
	if err != nil {
		return InviteResult{}, fmt.Errorf("generate invite: %w", err)
	}
	res := InviteResult{Token: invite.Token, ExpiresAt: invite.ExpiresAt}

	if email != nil && s.mailer != nil && s.mailer.Configured() {
		res.Emailed = s.sendInvite(ctx, userID, childID, *email, invite)
	}
	return res, nil
}

func (s *Service) sendInvite(ctx context.Context, userID, childID int64, to string, invite *model.Invite) bool {
	inviter, err := s.stores.Users.GetByID(userID)
	if err != nil || inviter == nil {
		s.logger.Error("load inviter", "user_id", userID, "error", err)
		return false
	}
	child, err := s.stores.Children.GetByID(childID)
	if err != nil || child == nil {
		s.logger.Error("load invited child", "child_id", childID, "error", err)
		return false
	}
	if err := s.mailer.SendInvite(ctx, to, inviter.DisplayName(), child.FirstName, invite.Token, invite.ExpiresAt); err != nil {
		s.logger.Error("send invite email", "child_id", childID, "error", err)
		return false
	}
	return true
}

// AcceptInvite links the caller to the invite's child as ParentB.
func (s *Service) AcceptInvite(ctx context.Context, userID int64, token string) (AcceptResult, error) {
	if strings.TrimSpace(token) == "" {
		return AcceptResult{}, model.Validation("token is required")
	}
	invite, err := s.stores.Invites.GetByToken(token)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("accept invite: %w", err)
	}
	if invite == nil {
		return AcceptResult{}, model.NotFound("Invalid invite token.")
	}

	at := s.now()
	switch {
	case invite.ExpiresAt.Before(at):
		return AcceptResult{}, model.InvalidOperation("Invite link has expired.")
	case invite.AcceptedByUserID != nil:
		return AcceptResult{}, errInviteUsed
	case invite.InvitedByUserID == userID:
		return AcceptResult{}, model.InvalidOperation("You cannot accept your own invite.")
	}

	linked, err := s.stores.Children.HasAccess(invite.ChildID, userID)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("accept invite: %w", err)
	}
	if linked {
		return AcceptResult{}, model.InvalidOperation("You are already linked to this child.")
	}

	err = database.WithTx(s.db, func(tx *sql.Tx) error {
		st := store.New(tx)
		if s.opts.MaxParents > 0 {
			n, err := st.Children.CountParents(invite.ChildID)
			if err != nil {
				return err
			}
			if n >= s.opts.MaxParents {
				return model.InvalidOperation("This child already has the maximum number of parents.")
			}
		}
		ok, err := st.Invites.MarkAccepted(invite.ID, userID, at)
		if err != nil {
			return err
		}
		if !ok {
			return errInviteUsed
		}
		_, err = st.Children.LinkParent(userID, invite.ChildID, model.RoleParentB, model.ColorParentB)
		return err
	})
	if err != nil {
		return AcceptResult{}, fmt.Errorf("accept invite: %w", err)
	}

	child, err := s.stores.Children.GetByID(invite.ChildID)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("accept invite: %w", err)
	}

	s.notifier.Linked(userID, invite.ChildID)
	s.notifier.NotifyOtherParent(ctx, userID, invite.ChildID, notify.Notice{
		Category:    model.CategoryLinking,
		Title:       "Co-parent linked",
		Body:        fmt.Sprintf("A co-parent has joined %s's schedule.", child.FirstName),
		RelatedType: model.RelatedChild,
		RelatedID:   invite.ChildID,
	})
	s.logger.Info("invite accepted", "child_id", invite.ChildID, "user_id", userID)

	return AcceptResult{
		ChildID:   invite.ChildID,
		ChildName: model.DisplayName(child.FirstName, child.LastName),
		Role:      model.RoleParentB,
	}, nil
}

var errInviteUsed = model.InvalidOperation("Invite link has already been used.")


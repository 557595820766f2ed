// Package invite implements the invitation and membership state
// machine: pending -> {accepted, declined, expired}, all terminal,
// with at most one membership row per (group, user) guaranteed by the
// store's uniqueness constraint rather than application logic.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chipin/chipin/internal/ledger"
	"github.com/chipin/chipin/internal/models"
	"github.com/chipin/chipin/internal/notify"
	"github.com/chipin/chipin/internal/storage"
)

// DefaultTTL is how long an invitation stays acceptable.
const DefaultTTL = 7 * 24 * time.Hour

// Service manages the invitation lifecycle.
type Service struct {
	store   storage.Store
	emitter *notify.Emitter
	ttl     time.Duration
	now     func() int64
}

// NewService creates an invitation service. A zero ttl selects
// DefaultTTL.
func NewService(store storage.Store, emitter *notify.Emitter, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:   store,
		emitter: emitter,
		ttl:     ttl,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// CreateResult is the outcome of CreateInvitation.
type CreateResult struct {
	Invitation *models.Invitation
	Warnings   []string
}

// CreateInvitation produces a pending invitation with an unguessable
// token. The inviter must be a group admin; the invitee must not
// already be a member; no other active invitation may exist for the
// same (group, email).
func (s *Service) CreateInvitation(ctx context.Context, groupID, inviterID, inviteeEmail, role string) (*CreateResult, error) {
	inviteeEmail = strings.ToLower(strings.TrimSpace(inviteeEmail))
	if inviteeEmail == "" {
		return nil, fmt.Errorf("invitee email is required: %w", ledger.ErrValidation)
	}
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return nil, fmt.Errorf("unknown role %q: %w", role, ledger.ErrValidation)
	}

	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, ledger.ErrNotFound)
	}
	inviter, err := s.store.GetMember(ctx, groupID, inviterID)
	if err != nil {
		return nil, fmt.Errorf("inviter is not a member of the group: %w", ledger.ErrAuthorization)
	}
	if !inviter.IsAdmin() {
		return nil, fmt.Errorf("only admins may invite: %w", ledger.ErrAuthorization)
	}

	// If the invitee already has an account and a membership, there is
	// nothing to invite them to.
	inviteeID := ""
	if invitee, err := s.store.GetUserByEmail(ctx, inviteeEmail); err == nil {
		inviteeID = invitee.ID
		if _, err := s.store.GetMember(ctx, groupID, invitee.ID); err == nil {
			return nil, fmt.Errorf("%s is already a member: %w", inviteeEmail, ledger.ErrStateConflict)
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	inv := &models.Invitation{
		GroupID:   groupID,
		InviterID: inviterID,
		Email:     inviteeEmail,
		Role:      role,
		Token:     token,
		Status:    models.InviteStatusPending,
		CreatedAt: now,
		ExpiresAt: now + int64(s.ttl.Seconds()),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("an active invitation already exists for %s: %w", inviteeEmail, ledger.ErrStateConflict)
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	slog.Info("invitation created",
		"group_id", groupID,
		"invitation_id", inv.ID,
		"inviter_id", inviterID,
		"expires_at", inv.ExpiresAt,
	)

	return &CreateResult{
		Invitation: inv,
		Warnings:   s.emitter.InvitationCreated(ctx, inv, inviteeID),
	}, nil
}

// AcceptResult is the outcome of AcceptInvitation. MemberCreated is
// false when the caller was already a member; the acceptance still
// records without error (documented policy: benign no-op).
type AcceptResult struct {
	GroupID       string
	MemberCreated bool
	Warnings      []string
}

// AcceptInvitation accepts a pending, unexpired invitation whose email
// matches the caller's verified email (case-insensitive). The status
// transition and the membership insert commit as one transaction; a
// losing racer gets a state conflict with nothing persisted.
func (s *Service) AcceptInvitation(ctx context.Context, token, callerID string) (*AcceptResult, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invitation: %w", ledger.ErrNotFound)
	}
	caller, err := s.store.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("caller %s: %w", callerID, ledger.ErrNotFound)
	}

	if inv.Status != models.InviteStatusPending {
		return nil, fmt.Errorf("invitation is %s: %w", inv.Status, ledger.ErrStateConflict)
	}
	now := s.now()
	if inv.Expired(now) {
		// Expired-on-read sweep: flip the row before rejecting. Best
		// effort; a racing sweep may already have done it.
		if err := s.store.ResolveInvitation(ctx, inv.ID, models.InviteStatusExpired, now); err != nil &&
			!errors.Is(err, storage.ErrConflict) {
			slog.Warn("failed to expire invitation on read", "invitation_id", inv.ID, "error", err)
		}
		return nil, fmt.Errorf("invitation expired: %w", ledger.ErrStateConflict)
	}
	if !strings.EqualFold(caller.Email, inv.Email) {
		return nil, fmt.Errorf("invitation was issued to a different email: %w", ledger.ErrAuthorization)
	}

	member := &models.Member{
		GroupID:   inv.GroupID,
		UserID:    callerID,
		Role:      inv.Role,
		CreatedAt: now,
	}
	created, err := s.store.AcceptInvitation(ctx, inv.ID, member, now)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("invitation is no longer pending: %w", ledger.ErrStateConflict)
		}
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	slog.Info("invitation accepted",
		"group_id", inv.GroupID,
		"invitation_id", inv.ID,
		"user_id", callerID,
		"member_created", created,
	)

	return &AcceptResult{
		GroupID:       inv.GroupID,
		MemberCreated: created,
		Warnings:      s.emitter.InvitationAccepted(ctx, inv, callerID),
	}, nil
}

// DeclineInvitation moves a pending invitation to declined. Only the
// invitee may decline.
func (s *Service) DeclineInvitation(ctx context.Context, token, callerID string) error {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("invitation: %w", ledger.ErrNotFound)
	}
	caller, err := s.store.GetUserByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("caller %s: %w", callerID, ledger.ErrNotFound)
	}
	if !strings.EqualFold(caller.Email, inv.Email) {
		return fmt.Errorf("invitation was issued to a different email: %w", ledger.ErrAuthorization)
	}
	if inv.Status != models.InviteStatusPending {
		return fmt.Errorf("invitation is %s: %w", inv.Status, ledger.ErrStateConflict)
	}

	if err := s.store.ResolveInvitation(ctx, inv.ID, models.InviteStatusDeclined, s.now()); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("invitation is no longer pending: %w", ledger.ErrStateConflict)
		}
		return fmt.Errorf("failed to decline invitation: %w", err)
	}

	slog.Info("invitation declined", "invitation_id", inv.ID, "user_id", callerID)
	return nil
}

// ExpirePending sweeps every pending invitation past its expiry.
func (s *Service) ExpirePending(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireInvitations(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep invitations: %w", err)
	}
	if n > 0 {
		slog.Info("expired invitations swept", "count", n)
	}
	return n, nil
}

// RunSweeper expires pending invitations on the given interval until
// the context is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpirePending(ctx); err != nil {
				slog.Error("invitation sweep failed", "error", err)
			}
		}
	}
}

// newToken returns 32 random bytes hex-encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

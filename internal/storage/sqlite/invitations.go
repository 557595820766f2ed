package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chipin/chipin/internal/models"
	"github.com/chipin/chipin/internal/storage"
)

// CreateInvitation inserts an invitation after checking, in the same
// transaction, that no other pending unexpired invitation exists for
// the (group, email) pair.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt == 0 {
		inv.CreatedAt = time.Now().Unix()
	}
	if inv.Status == "" {
		inv.Status = models.InviteStatusPending
	}
	if inv.Role == "" {
		inv.Role = models.RoleMember
	}
	inv.Email = strings.ToLower(inv.Email)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invitations
		 WHERE group_id = ? AND email = ? AND status = ? AND expires_at > ?`,
		inv.GroupID, inv.Email, models.InviteStatusPending, inv.CreatedAt,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to check active invitations: %w", err)
	}
	if active > 0 {
		return fmt.Errorf("active invitation for %s in group %s: %w", inv.Email, inv.GroupID, storage.ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invitations (id, group_id, inviter_id, email, role, token, status, created_at, expires_at, responded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		inv.ID, inv.GroupID, inv.InviterID, inv.Email, inv.Role, inv.Token,
		inv.Status, inv.CreatedAt, inv.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetInvitationByToken retrieves an invitation by its token.
func (s *SQLiteStore) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, inviter_id, email, role, token, status, created_at, expires_at, responded_at
		 FROM invitations WHERE token = ?`,
		token,
	).Scan(&inv.ID, &inv.GroupID, &inv.InviterID, &inv.Email, &inv.Role,
		&inv.Token, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &inv.RespondedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// ListPendingInvitations retrieves pending, unexpired invitations for
// a group.
func (s *SQLiteStore) ListPendingInvitations(ctx context.Context, groupID string, now int64) ([]*models.Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, inviter_id, email, role, token, status, created_at, expires_at, responded_at
		 FROM invitations
		 WHERE group_id = ? AND status = ? AND expires_at > ?
		 ORDER BY created_at, id`,
		groupID, models.InviteStatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	defer rows.Close()

	var invs []*models.Invitation
	for rows.Next() {
		inv := &models.Invitation{}
		if err := rows.Scan(&inv.ID, &inv.GroupID, &inv.InviterID, &inv.Email, &inv.Role,
			&inv.Token, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &inv.RespondedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}

	return invs, nil
}

// AcceptInvitation transitions the invitation pending -> accepted and
// inserts the membership row in one transaction.
//
// The status update is a compare-and-swap on status = pending, so of N
// racing accepts exactly one commits the transition; the rest get
// ErrConflict with nothing persisted. The membership insert uses the
// uniqueness constraint: if the caller is already a member the accept
// still succeeds and reports that no new row was created.
func (s *SQLiteStore) AcceptInvitation(ctx context.Context, invitationID string, member *models.Member, now int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?",
		models.InviteStatusAccepted, now, invitationID, models.InviteStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check invitation update: %w", err)
	}
	if n == 0 {
		return false, fmt.Errorf("invitation %s is not pending: %w", invitationID, storage.ErrConflict)
	}

	if member.CreatedAt == 0 {
		member.CreatedAt = now
	}
	memberRes, err := tx.ExecContext(ctx,
		`INSERT INTO members (group_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_id, user_id) DO NOTHING`,
		member.GroupID, member.UserID, member.Role, member.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert member: %w", err)
	}
	added, err := memberRes.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check member insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return added > 0, nil
}

// ResolveInvitation transitions pending -> declined or expired.
func (s *SQLiteStore) ResolveInvitation(ctx context.Context, invitationID, status string, now int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?",
		status, now, invitationID, models.InviteStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check invitation update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invitation %s is not pending: %w", invitationID, storage.ErrConflict)
	}
	return nil
}

// ExpireInvitations sweeps pending invitations past their expiry.
func (s *SQLiteStore) ExpireInvitations(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE invitations SET status = ? WHERE status = ? AND expires_at <= ?",
		models.InviteStatusExpired, models.InviteStatusPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check expiry sweep: %w", err)
	}
	return n, nil
}

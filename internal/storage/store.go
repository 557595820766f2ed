// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/models"
)

// Sentinel errors returned by Store implementations. Service layers
// translate these into the user-facing error taxonomy.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write found the row in
	// a different state than required (e.g. accepting an invitation
	// that is no longer pending, or creating a duplicate active
	// invitation).
	ErrConflict = errors.New("conflict")
)

// SettleRequest describes one settlement allocation: the debtor pays
// the creditor up to Amount against the oldest unsettled splits.
type SettleRequest struct {
	GroupID     string
	DebtorID    string
	CreditorID  string
	Amount      decimal.Decimal
	Description string
	Now         int64
}

// SettleResult reports what an allocation actually consumed.
// Settlement is nil when no split was eligible (not an error).
type SettleResult struct {
	Settlement      *models.Settlement
	SettledSplitIDs []string
	SettledAmount   decimal.Decimal
	RemainingAmount decimal.Decimal
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite,
// PostgreSQL, etc.) without changing the service layer.
//
// Every mutation commits as one all-or-nothing transaction: a reader
// never observes an expense with some but not all of its splits, or a
// settlement whose splits are marked settled without the audit row.
type Store interface {
	// CreateUser inserts a new user account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email (exact match on the
	// stored lowercased address). Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateGroup persists a group and its creator's admin membership
	// as one unit.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by ID. Returns ErrNotFound if absent.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// DeleteGroup removes a group; all dependent rows cascade.
	DeleteGroup(ctx context.Context, groupID string) error

	// GetMember retrieves one membership row. Returns ErrNotFound if
	// the user is not a member of the group.
	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)

	// ListMembers retrieves the group roster.
	ListMembers(ctx context.Context, groupID string) ([]*models.Member, error)

	// AddMember inserts a membership row. A concurrent or repeated
	// insert for the same (group, user) is a benign no-op: the method
	// reports false and no error.
	AddMember(ctx context.Context, member *models.Member) (bool, error)

	// CreateExpense persists an expense and every one of its splits in
	// one transaction. If any split insert fails, the expense row does
	// not persist.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// ListExpenses retrieves all expenses for a group, splits included,
	// newest first.
	ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error)

	// ListDebts retrieves every unsettled split in the group joined
	// with its expense's payer, ordered by split creation time.
	ListDebts(ctx context.Context, groupID string) ([]*models.Debt, error)

	// ApplySettlement runs the oldest-first, full-splits-only
	// allocation in one transaction. Each split transition is
	// conditional on the split still being unsettled; a split another
	// transaction already consumed is skipped, never an error. Exactly
	// one settlement audit row is written iff a non-zero amount was
	// applied.
	ApplySettlement(ctx context.Context, req SettleRequest) (*SettleResult, error)

	// ListSettlements retrieves all settlements for a group, newest first.
	ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// CreateInvitation inserts an invitation, failing with ErrConflict
	// if another pending, unexpired invitation exists for the same
	// (group, email). The check and insert are one transaction.
	CreateInvitation(ctx context.Context, inv *models.Invitation) error

	// GetInvitationByToken retrieves an invitation by its token.
	// Returns ErrNotFound if absent.
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)

	// ListPendingInvitations retrieves pending, unexpired invitations
	// for a group.
	ListPendingInvitations(ctx context.Context, groupID string, now int64) ([]*models.Invitation, error)

	// AcceptInvitation transitions the invitation pending -> accepted
	// and inserts the membership row in one transaction. The status
	// update is conditional on the row still being pending; if another
	// call won the race, ErrConflict is returned and nothing persists.
	// Reports whether a new membership row was actually created.
	AcceptInvitation(ctx context.Context, invitationID string, member *models.Member, now int64) (bool, error)

	// ResolveInvitation transitions pending -> status (declined or
	// expired). Returns ErrConflict if the invitation is no longer
	// pending.
	ResolveInvitation(ctx context.Context, invitationID, status string, now int64) error

	// ExpireInvitations sweeps every pending invitation past its expiry
	// to expired, returning the number of rows transitioned.
	ExpireInvitations(ctx context.Context, now int64) (int64, error)

	// CreateNotification appends a notification row.
	CreateNotification(ctx context.Context, n *models.Notification) error

	// ListNotifications retrieves a user's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)

	// MarkNotificationRead flags a notification as read. Returns
	// ErrNotFound if the row does not exist or belongs to another user.
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error

	// Close releases any resources held by the store.
	Close() error
}

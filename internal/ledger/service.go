// Package ledger implements the balance and settlement engine: expense
// recording with atomic splits, pair balance computation, and the
// race-safe settlement allocator.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/models"
	"github.com/chipin/chipin/internal/notify"
	"github.com/chipin/chipin/internal/storage"
)

// DefaultTolerance is the allowed absolute difference between an
// expense amount and the sum of its splits.
var DefaultTolerance = decimal.NewFromFloat(0.01)

// settleRetries bounds transparent retries of a settlement transaction
// that failed on store-level lock contention.
const settleRetries = 3

// Service is the ledger engine. It owns no caches: every read derives
// from the store's committed state, and the store's transactions plus
// the per-pair lock are the only coordination.
type Service struct {
	store     storage.Store
	emitter   *notify.Emitter
	tolerance decimal.Decimal
	locks     *pairLock
	now       func() int64
}

// NewService creates a ledger service. A zero tolerance selects
// DefaultTolerance.
func NewService(store storage.Store, emitter *notify.Emitter, tolerance decimal.Decimal) *Service {
	if tolerance.IsZero() {
		tolerance = DefaultTolerance
	}
	return &Service{
		store:     store,
		emitter:   emitter,
		tolerance: tolerance,
		locks:     newPairLock(),
		now:       func() int64 { return time.Now().Unix() },
	}
}

// Share is one member's owed portion of a new expense.
type Share struct {
	UserID string
	Amount decimal.Decimal
}

// ExpenseRequest describes a new expense with its splits.
type ExpenseRequest struct {
	GroupID     string
	CallerID    string
	PayerID     string
	Description string
	Category    string
	Notes       string
	Amount      decimal.Decimal
	Shares      []Share
}

// ExpenseResult is the outcome of CreateExpense. Warnings carry
// notification delivery failures; they never indicate a failed write.
type ExpenseResult struct {
	Expense  *models.Expense
	Warnings []string
}

// CreateExpense validates and persists an expense together with all of
// its splits as one atomic unit, then notifies the split owners.
func (s *Service) CreateExpense(ctx context.Context, req ExpenseRequest) (*ExpenseResult, error) {
	if _, err := s.store.GetGroup(ctx, req.GroupID); err != nil {
		return nil, translateStoreErr(err)
	}
	if _, err := s.store.GetMember(ctx, req.GroupID, req.CallerID); err != nil {
		return nil, fmt.Errorf("caller is not a member of the group: %w", ErrAuthorization)
	}

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	if len(req.Shares) == 0 {
		return nil, fmt.Errorf("at least one split is required: %w", ErrValidation)
	}
	if _, err := s.store.GetMember(ctx, req.GroupID, req.PayerID); err != nil {
		return nil, fmt.Errorf("payer %s is not a member of the group: %w", req.PayerID, ErrValidation)
	}

	sum := decimal.Zero
	splits := make([]models.Split, 0, len(req.Shares))
	for _, share := range req.Shares {
		if share.Amount.IsNegative() {
			return nil, fmt.Errorf("split amount for %s is negative: %w", share.UserID, ErrValidation)
		}
		if _, err := s.store.GetMember(ctx, req.GroupID, share.UserID); err != nil {
			return nil, fmt.Errorf("split user %s is not a member of the group: %w", share.UserID, ErrValidation)
		}
		sum = sum.Add(share.Amount)
		splits = append(splits, models.Split{UserID: share.UserID, Amount: share.Amount})
	}
	if sum.Sub(req.Amount).Abs().GreaterThan(s.tolerance) {
		return nil, fmt.Errorf("split sum %s differs from amount %s beyond tolerance %s: %w",
			sum, req.Amount, s.tolerance, ErrValidation)
	}

	expense := &models.Expense{
		GroupID:     req.GroupID,
		PayerID:     req.PayerID,
		Description: req.Description,
		Category:    req.Category,
		Notes:       req.Notes,
		Amount:      req.Amount,
		Splits:      splits,
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	expensesCreated.Inc()

	slog.Info("expense created",
		"group_id", expense.GroupID,
		"expense_id", expense.ID,
		"payer_id", expense.PayerID,
		"amount", expense.Amount,
		"splits", len(expense.Splits),
	)

	return &ExpenseResult{
		Expense:  expense,
		Warnings: s.emitter.ExpenseCreated(ctx, expense),
	}, nil
}

// Balances computes the caller's balance sheet against every other
// member from the group's current unsettled splits.
func (s *Service) Balances(ctx context.Context, groupID, userID string) (*BalanceSheet, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, translateStoreErr(err)
	}
	if _, err := s.store.GetMember(ctx, groupID, userID); err != nil {
		return nil, fmt.Errorf("caller is not a member of the group: %w", ErrAuthorization)
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	debts, err := s.store.ListDebts(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load debts: %w", err)
	}

	return computeBalances(userID, members, debts), nil
}

// SettleRequest describes one settlement: the debtor pays the creditor
// up to Amount against the oldest unsettled splits between them.
type SettleRequest struct {
	GroupID     string
	CallerID    string
	DebtorID    string
	CreditorID  string
	Description string
	Amount      decimal.Decimal
}

// SettleResult reports what the allocation consumed. A zero
// SettledAmount with RemainingAmount equal to the request is a
/// legitimate outcome, not an error: less was owed than requested.
type SettleResult struct {
	SettlementID    string
	SettledSplitIDs []string
	SettledAmount   decimal.Decimal
	RemainingAmount decimal.Decimal
	Warnings        []string
}

// Settle applies a payment from debtor to creditor, consuming whole
// unsettled splits oldest-first. Calls for the same ordered pair are
// serialized by the pair lock; the store's conditional split
// transition guarantees at-most-once settlement of any split even
// without it.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	if req.DebtorID == req.CreditorID {
		return nil, fmt.Errorf("debtor and creditor must differ: %w", ErrValidation)
	}
	if req.CallerID != req.DebtorID && req.CallerID != req.CreditorID {
		return nil, fmt.Errorf("caller is not a party to this settlement: %w", ErrAuthorization)
	}

	if _, err := s.store.GetGroup(ctx, req.GroupID); err != nil {
		return nil, translateStoreErr(err)
	}
	if _, err := s.store.GetMember(ctx, req.GroupID, req.DebtorID); err != nil {
		return nil, fmt.Errorf("debtor %s is not a member of the group: %w", req.DebtorID, ErrValidation)
	}
	if _, err := s.store.GetMember(ctx, req.GroupID, req.CreditorID); err != nil {
		return nil, fmt.Errorf("creditor %s is not a member of the group: %w", req.CreditorID, ErrValidation)
	}

	key := req.GroupID + "|" + req.DebtorID + "|" + req.CreditorID
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	storeReq := storage.SettleRequest{
		GroupID:     req.GroupID,
		DebtorID:    req.DebtorID,
		CreditorID:  req.CreditorID,
		Amount:      req.Amount,
		Description: req.Description,
		Now:         s.now(),
	}

	var (
		applied *storage.SettleResult
		err     error
	)
	for attempt := 0; attempt <= settleRetries; attempt++ {
		applied, err = s.store.ApplySettlement(ctx, storeReq)
		if err == nil || !isBusy(err) {
			break
		}
		slog.Warn("settlement hit lock contention, retrying",
			"group_id", req.GroupID, "attempt", attempt+1, "error", err)
	}
	if err != nil {
		if isBusy(err) {
			return nil, fmt.Errorf("settlement retry budget exhausted: %w", ErrConcurrency)
		}
		return nil, fmt.Errorf("failed to apply settlement: %w", err)
	}

	result := &SettleResult{
		SettledSplitIDs: applied.SettledSplitIDs,
		SettledAmount:   applied.SettledAmount,
		RemainingAmount: applied.RemainingAmount,
	}

	if applied.Settlement != nil {
		settlementsApplied.Inc()
		splitsSettled.Add(float64(len(applied.SettledSplitIDs)))
		result.SettlementID = applied.Settlement.ID

		// Tell the counterparty, not the caller.
		recipient := req.CreditorID
		if req.CallerID == req.CreditorID {
			recipient = req.DebtorID
		}
		result.Warnings = s.emitter.SettlementApplied(ctx, applied.Settlement, recipient)
	} else {
		settlementsEmpty.Inc()
	}

	slog.Info("settlement applied",
		"group_id", req.GroupID,
		"debtor_id", req.DebtorID,
		"creditor_id", req.CreditorID,
		"settled", result.SettledAmount,
		"remaining", result.RemainingAmount,
		"splits", len(result.SettledSplitIDs),
	)

	return result, nil
}

// GroupLedger composes the group's expenses, roster, settlements and
// pending invitations for presentation.
type GroupLedger struct {
	Group              *models.Group
	Members            []*models.Member
	Expenses           []*models.Expense
	Settlements        []*models.Settlement
	PendingInvitations []*models.Invitation
}

// Ledger returns the full group ledger. The caller must be a member.
func (s *Service) Ledger(ctx context.Context, groupID, callerID string) (*GroupLedger, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if _, err := s.store.GetMember(ctx, groupID, callerID); err != nil {
		return nil, fmt.Errorf("caller is not a member of the group: %w", ErrAuthorization)
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	expenses, err := s.store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}
	settlements, err := s.store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlements: %w", err)
	}
	pending, err := s.store.ListPendingInvitations(ctx, groupID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load invitations: %w", err)
	}

	return &GroupLedger{
		Group:              group,
		Members:            members,
		Expenses:           expenses,
		Settlements:        settlements,
		PendingInvitations: pending,
	}, nil
}

// translateStoreErr maps storage sentinels onto the service taxonomy.
func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%v: %w", err, ErrStateConflict)
	}
	return err
}

// isBusy reports whether a store error looks like SQLite lock
// contention and is worth a transparent retry.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

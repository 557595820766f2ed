package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/models"
	"github.com/chipin/chipin/internal/storage"
)

// ApplySettlement runs one settlement allocation in a single
// transaction: select the debtor's unsettled splits owed to the
// creditor oldest-first, consume whole splits while the remaining
// budget covers them, and append one audit row for the total.
//
// Each split transition is a compare-and-swap: UPDATE ... WHERE
// settled = 0. Zero rows affected means another transaction already
// consumed the split; the walk skips it and moves on. Combined with
// the uniqueness of the transition this makes every split settleable
// at most once, ever, no matter how many callers race.
func (s *SQLiteStore) ApplySettlement(ctx context.Context, req storage.SettleRequest) (*storage.SettleResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT s.id, s.expense_id, e.group_id, e.payer_id, s.user_id, s.amount, s.created_at
		 FROM splits s
		 JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = ? AND s.settled = 0 AND s.user_id = ? AND e.payer_id = ?
		 ORDER BY s.created_at, s.id`,
		req.GroupID, req.DebtorID, req.CreditorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidate splits: %w", err)
	}
	candidates, err := scanDebts(rows)
	if err != nil {
		return nil, err
	}

	result := &storage.SettleResult{
		SettledAmount:   decimal.Zero,
		RemainingAmount: req.Amount,
	}

	for _, debt := range candidates {
		// Full splits only: the walk stops at the first split the
		// remaining budget cannot cover entirely.
		if result.RemainingAmount.LessThan(debt.Amount) {
			break
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE splits SET settled = 1, settled_at = ? WHERE id = ? AND settled = 0",
			req.Now, debt.SplitID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to settle split %s: %w", debt.SplitID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check split update: %w", err)
		}
		if n == 0 {
			// Lost the race for this split; not an error.
			continue
		}

		result.SettledSplitIDs = append(result.SettledSplitIDs, debt.SplitID)
		result.SettledAmount = result.SettledAmount.Add(debt.Amount)
		result.RemainingAmount = result.RemainingAmount.Sub(debt.Amount)
	}

	// A settlement that applied nothing legitimately produces no audit row.
	if result.SettledAmount.IsPositive() {
		settlement := &models.Settlement{
			ID:          uuid.New().String(),
			GroupID:     req.GroupID,
			PayerID:     req.DebtorID,
			ReceiverID:  req.CreditorID,
			Amount:      result.SettledAmount,
			Description: req.Description,
			CreatedAt:   req.Now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO settlements (id, group_id, payer_id, receiver_id, amount, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			settlement.ID, settlement.GroupID, settlement.PayerID, settlement.ReceiverID,
			settlement.Amount, settlement.Description, settlement.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert settlement: %w", err)
		}
		result.Settlement = settlement
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// ListSettlements retrieves all settlements for a group, newest first.
func (s *SQLiteStore) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, payer_id, receiver_id, amount, description, created_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement := &models.Settlement{}
		if err := rows.Scan(
			&settlement.ID, &settlement.GroupID, &settlement.PayerID, &settlement.ReceiverID,
			&settlement.Amount, &settlement.Description, &settlement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}

// scanDebts drains a row set of split+payer joins into Debt values.
func scanDebts(rows *sql.Rows) ([]*models.Debt, error) {
	defer rows.Close()

	var debts []*models.Debt
	for rows.Next() {
		debt := &models.Debt{}
		if err := rows.Scan(
			&debt.SplitID, &debt.ExpenseID, &debt.GroupID,
			&debt.CreditorID, &debt.DebtorID, &debt.Amount, &debt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, debt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debts: %w", err)
	}

	return debts, nil
}

package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chipin/chipin/internal/models"
)

// CreateExpense persists an expense and every one of its splits.
// All rows commit as one unit: if any split insert fails, the expense
// row is rolled back and no orphan zero-split expense can persist.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, payer_id, description, amount, category, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Description,
		expense.Amount, expense.Category, expense.Notes, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Splits {
		split := &expense.Splits[i]
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.ExpenseID = expense.ID
		if split.CreatedAt == 0 {
			split.CreatedAt = expense.CreatedAt
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO splits (id, expense_id, user_id, amount, settled, settled_at, created_at)
			 VALUES (?, ?, ?, ?, 0, 0, ?)`,
			split.ID, split.ExpenseID, split.UserID, split.Amount, split.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListExpenses retrieves all expenses for a group with their splits,
// newest first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, payer_id, description, amount, category, notes, created_at
		 FROM expenses WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		expense := &models.Expense{}
		if err := rows.Scan(
			&expense.ID, &expense.GroupID, &expense.PayerID, &expense.Description,
			&expense.Amount, &expense.Category, &expense.Notes, &expense.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if len(expenses) == 0 {
		return nil, nil
	}

	// One pass over the group's splits instead of a query per expense.
	splitRows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.expense_id, s.user_id, s.amount, s.settled, s.settled_at, s.created_at
		 FROM splits s
		 JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = ?
		 ORDER BY s.created_at, s.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var split models.Split
		if err := splitRows.Scan(
			&split.ID, &split.ExpenseID, &split.UserID, &split.Amount,
			&split.Settled, &split.SettledAt, &split.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if expense, ok := byID[split.ExpenseID]; ok {
			expense.Splits = append(expense.Splits, split)
		}
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return expenses, nil
}

// ListDebts retrieves every unsettled split in the group joined with
// its expense's payer, ordered by split creation time.
func (s *SQLiteStore) ListDebts(ctx context.Context, groupID string) ([]*models.Debt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.expense_id, e.group_id, e.payer_id, s.user_id, s.amount, s.created_at
		 FROM splits s
		 JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = ? AND s.settled = 0
		 ORDER BY s.created_at, s.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	return scanDebts(rows)
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage"
)

// GetExpense retrieves an expense by ID, including its ordered shares.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.db, expenseID)
}

// ListExpenses returns expenses the user holds a share in, newest first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, userID string, filter storage.ExpenseFilter) ([]*models.Expense, error) {
	var (
		conds = []string{"EXISTS (SELECT 1 FROM expense_shares s WHERE s.expense_id = e.id AND s.user_id = ?)"}
		args  = []any{userID}
	)
	if filter.From > 0 {
		conds = append(conds, "e.created_at >= ?")
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		conds = append(conds, "e.created_at < ?")
		args = append(args, filter.To)
	}
	if filter.Tag != "" {
		conds = append(conds, "e.tag = ?")
		args = append(args, filter.Tag)
	}

	query := `SELECT e.id, e.tag, e.amount, e.note, e.created_at FROM expenses e WHERE ` +
		strings.Join(conds, " AND ") +
		` ORDER BY e.created_at DESC, e.rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var (
		expenses []*models.Expense
		byID     = make(map[string]*models.Expense)
	)
	for rows.Next() {
		expense := &models.Expense{}
		if err := rows.Scan(&expense.ID, &expense.Tag, &expense.Amount, &expense.Note, &expense.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	rows.Close()

	if len(expenses) == 0 {
		return expenses, nil
	}

	// Load all shares for the page in one query
	ids := make([]string, 0, len(expenses))
	for _, e := range expenses {
		ids = append(ids, e.ID)
	}
	shareRows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id, amount FROM expense_shares
		 WHERE expense_id IN (?`+repeatPlaceholder(len(ids)-1)+`)
		 ORDER BY expense_id, position`,
		toArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var (
			expenseID string
			share     models.Share
		)
		if err := shareRows.Scan(&expenseID, &share.UserID, &share.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense share: %w", err)
		}
		if expense, ok := byID[expenseID]; ok {
			expense.Shares = append(expense.Shares, share)
		}
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense shares: %w", err)
	}

	return expenses, nil
}

// createExpense inserts the expense row and one row per share.
func createExpense(ctx context.Context, q queryer, expense *models.Expense) error {
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	_, err := q.ExecContext(ctx,
		"INSERT INTO expenses (id, tag, amount, note, created_at) VALUES (?, ?, ?, ?, ?)",
		expense.ID, expense.Tag, expense.Amount.String(), expense.Note, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", classify(err))
	}

	for position, share := range expense.Shares {
		_, err = q.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, position, user_id, amount) VALUES (?, ?, ?, ?)",
			expense.ID, position, share.UserID, share.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense share: %w", classify(err))
		}
	}

	return nil
}

// getExpense loads one expense and its shares in creator-first order.
func getExpense(ctx context.Context, q queryer, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	err := q.QueryRowContext(ctx,
		"SELECT id, tag, amount, note, created_at FROM expenses WHERE id = ?",
		expenseID,
	).Scan(&expense.ID, &expense.Tag, &expense.Amount, &expense.Note, &expense.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT user_id, amount FROM expense_shares WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var share models.Share
		if err := rows.Scan(&share.UserID, &share.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense share: %w", err)
		}
		expense.Shares = append(expense.Shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense shares: %w", err)
	}

	return expense, nil
}

// deleteExpense removes an expense; shares go with it via ON DELETE CASCADE.
func deleteExpense(ctx context.Context, q queryer, expenseID string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", classify(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}

	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage"
)

// sqliteTx implements storage.Tx on top of a single *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

var _ storage.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return createExpense(ctx, t.tx, expense)
}

func (t *sqliteTx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, t.tx, expenseID)
}

func (t *sqliteTx) DeleteExpense(ctx context.Context, expenseID string) error {
	return deleteExpense(ctx, t.tx, expenseID)
}

func (t *sqliteTx) GetBalance(ctx context.Context, ownerID, counterpartyID string) (models.Balance, error) {
	return getBalance(ctx, t.tx, ownerID, counterpartyID)
}

// PutBalance is a compare-and-swap on the row version.
func (t *sqliteTx) PutBalance(ctx context.Context, prev models.Balance, amount decimal.Decimal) error {
	now := time.Now().Unix()

	var (
		result sql.Result
		err    error
	)
	if !prev.Exists() {
		result, err = t.tx.ExecContext(ctx,
			`INSERT INTO balances (owner_id, counterparty_id, amount, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT (owner_id, counterparty_id) DO NOTHING`,
			prev.OwnerID, prev.CounterpartyID, amount.String(), now,
		)
	} else {
		result, err = t.tx.ExecContext(ctx,
			`UPDATE balances SET amount = ?, version = version + 1, updated_at = ?
			 WHERE owner_id = ? AND counterparty_id = ? AND version = ?`,
			amount.String(), now, prev.OwnerID, prev.CounterpartyID, prev.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to write balance: %w", classify(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check balance write: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("balance %s/%s at version %d: %w",
			prev.OwnerID, prev.CounterpartyID, prev.Version, storage.ErrConcurrentModification)
	}

	return nil
}

func (t *sqliteTx) AddFriendLink(ctx context.Context, userID, friendID string) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO friends (user_id, friend_id, created_at) VALUES (?, ?, ?)",
		userID, friendID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add friend link: %w", classify(err))
	}
	return nil
}

func (t *sqliteTx) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	var exists int
	err := t.tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM friends WHERE user_id = ? AND friend_id = ?)",
		userID, friendID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check friend link: %w", classify(err))
	}
	return exists == 1, nil
}

// GetBalance reads a balance outside any transaction.
func (s *SQLiteStore) GetBalance(ctx context.Context, ownerID, counterpartyID string) (models.Balance, error) {
	return getBalance(ctx, s.db, ownerID, counterpartyID)
}

// ListFriendBalances returns every friend of the user with Balance(user, friend),
// zero when no balance row exists yet.
func (s *SQLiteStore) ListFriendBalances(ctx context.Context, userID string) ([]models.FriendBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.phone, COALESCE(b.amount, '0')
		FROM friends f
		JOIN users u ON u.id = f.friend_id
		LEFT JOIN balances b ON b.owner_id = f.user_id AND b.counterparty_id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.name, u.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	friends := []models.FriendBalance{}
	for rows.Next() {
		var fb models.FriendBalance
		if err := rows.Scan(&fb.Friend.ID, &fb.Friend.Name, &fb.Friend.Phone, &fb.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}

	return friends, nil
}

func getBalance(ctx context.Context, q queryer, ownerID, counterpartyID string) (models.Balance, error) {
	balance := models.Balance{
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		Amount:         decimal.Zero,
	}
	err := q.QueryRowContext(ctx,
		"SELECT amount, version FROM balances WHERE owner_id = ? AND counterparty_id = ?",
		ownerID, counterpartyID,
	).Scan(&balance.Amount, &balance.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return balance, nil
	}
	if err != nil {
		return models.Balance{}, fmt.Errorf("failed to get balance: %w", classify(err))
	}
	return balance, nil
}

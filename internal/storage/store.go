// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/models"
)

var (
	// ErrNotFound is returned when a requested user or expense does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint (e.g. phone) is violated.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrConcurrentModification is returned when a compare-and-swap write lost
	// a race, or the database was busy. The whole transaction should be retried.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// ExpenseFilter narrows ListExpenses results.
type ExpenseFilter struct {
	// From and To bound CreatedAt as Unix seconds, [From, To). Zero means unbounded.
	From int64
	To   int64

	// Tag restricts results to one category. Empty means all tags.
	Tag string

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// UserStore defines user persistence operations.
type UserStore interface {
	// CreateUser inserts a new user. Returns ErrDuplicate if the phone is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID returns ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByPhone returns ErrNotFound if no user has the phone.
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)

	// GetUsersByIDs returns the users that exist, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// Store defines the interface for Spending Diary storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
//
// Reads outside a transaction go through Store directly. Every write that
// touches expenses, friend links or balances goes through InTx.
type Store interface {
	UserStore

	// GetExpense retrieves an expense with its ordered shares.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// ListExpenses returns expenses the user holds a share in, newest first.
	ListExpenses(ctx context.Context, userID string, filter ExpenseFilter) ([]*models.Expense, error)

	// ListFriendBalances returns the user's friends with the balance from the
	// user's perspective, ordered by friend name.
	ListFriendBalances(ctx context.Context, userID string) ([]models.FriendBalance, error)

	// GetBalance returns Balance(owner, counterparty). A missing row is
	// returned as a zero balance with Version 0.
	GetBalance(ctx context.Context, ownerID, counterpartyID string) (models.Balance, error)

	// InTx runs fn inside a single write transaction. If fn returns an error
	// the transaction is rolled back and the error is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the set of operations available inside a write transaction.
type Tx interface {
	// CreateExpense persists an expense and its shares.
	// The expense.ID and CreatedAt fields are populated if empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense reads an expense inside the transaction.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// DeleteExpense removes an expense and its shares.
	// Returns ErrNotFound if the expense does not exist.
	DeleteExpense(ctx context.Context, id string) error

	// GetBalance reads Balance(owner, counterparty) inside the transaction.
	GetBalance(ctx context.Context, ownerID, counterpartyID string) (models.Balance, error)

	// PutBalance writes a new amount for a balance previously read with
	// GetBalance. The write only succeeds if the row still has prev.Version
	// (a missing row has Version 0 and is inserted). Otherwise it returns
	// ErrConcurrentModification.
	PutBalance(ctx context.Context, prev models.Balance, amount decimal.Decimal) error

	// AddFriendLink creates the directed link user -> friend if absent.
	AddFriendLink(ctx context.Context, userID, friendID string) error

	// AreFriends reports whether the directed link user -> friend exists.
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
}

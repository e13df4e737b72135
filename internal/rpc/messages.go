package rpc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/models"
)

// Amounts travel as decimal strings so clients never see float rounding.

type Share struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type Expense struct {
	ID        string          `json:"id"`
	Tag       string          `json:"tag"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	IsSplit   bool            `json:"isSplit"`
	Shares    []Share         `json:"shares"`
	CreatedAt time.Time       `json:"createdAt"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type FriendBalance struct {
	Friend User            `json:"friend"`
	Amount decimal.Decimal `json:"amount"`
}

type BalanceSummary struct {
	TotalOwed  decimal.Decimal `json:"totalOwed"`
	TotalOwing decimal.Decimal `json:"totalOwing"`
	Net        decimal.Decimal `json:"net"`
	Settled    int             `json:"settled"`
	Open       int             `json:"open"`
}

// CreateExpense

type CreateExpenseRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Tag       string          `json:"tag"`
	Note      string          `json:"note,omitempty"`
	FriendIDs []string        `json:"friendIds,omitempty"`
	Payers    []Share         `json:"payers,omitempty"`
}

type CreateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// DeleteExpense

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

// ListExpenses

type ListExpensesRequest struct {
	Month int    `json:"month,omitempty"`
	Year  int    `json:"year,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

// AddFriend

// AddFriendRequest identifies the friend by ID, or by phone when FriendID is
// empty.
type AddFriendRequest struct {
	FriendID string `json:"friendId,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type AddFriendResponse struct {
	Friend User `json:"friend"`
}

// ListFriends

type ListFriendsRequest struct{}

type ListFriendsResponse struct {
	Friends []FriendBalance `json:"friends"`
	Summary BalanceSummary  `json:"summary"`
}

// SettleBalance

type SettleBalanceRequest struct {
	FriendID string `json:"friendId"`
}

type SettleBalanceResponse struct{}

func toExpense(e *models.Expense) Expense {
	shares := make([]Share, len(e.Shares))
	for i, s := range e.Shares {
		shares[i] = Share{UserID: s.UserID, Amount: s.Amount}
	}
	return Expense{
		ID:        e.ID,
		Tag:       e.Tag,
		Amount:    e.Amount,
		Note:      e.Note,
		IsSplit:   e.IsSplit(),
		Shares:    shares,
		CreatedAt: time.Unix(e.CreatedAt, 0).UTC(),
	}
}

func toUser(u models.PublicUser) User {
	return User{ID: u.ID, Name: u.Name, Phone: u.Phone}
}

func toFriendBalances(friends []models.FriendBalance) []FriendBalance {
	out := make([]FriendBalance, len(friends))
	for i, f := range friends {
		out[i] = FriendBalance{Friend: toUser(f.Friend), Amount: f.Amount}
	}
	return out
}

func toBalanceSummary(s calculator.BalanceSummary) BalanceSummary {
	return BalanceSummary{
		TotalOwed:  s.TotalOwed,
		TotalOwing: s.TotalOwing,
		Net:        s.Net,
		Settled:    s.Settled,
		Open:       s.Open,
	}
}

func fromShares(shares []Share) []models.Share {
	if len(shares) == 0 {
		return nil
	}
	out := make([]models.Share, len(shares))
	for i, s := range shares {
		out[i] = models.Share{UserID: s.UserID, Amount: s.Amount}
	}
	return out
}

package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/service"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type SignupRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// CreateExpenseRequest accepts amounts as JSON numbers or strings.
type CreateExpenseRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Tag       string          `json:"tag"`
	Note      string          `json:"note"`
	FriendIDs []string        `json:"friendIds"`
	Payers    []ShareDTO      `json:"payers"`
}

// AddFriendRequest identifies the friend by ID or by phone.
type AddFriendRequest struct {
	FriendID string `json:"friendId"`
	Phone    string `json:"phone"`
}

type SettleRequest struct {
	FriendID string `json:"friendId"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type UserDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsPremium bool      `json:"isPremium"`
	CreatedAt time.Time `json:"createdAt"`
}

type SessionDTO struct {
	User  UserDTO `json:"user"`
	Token string  `json:"token"`
}

type PublicUserDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type ShareDTO struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type ExpenseDTO struct {
	ID        string     `json:"id"`
	Tag       string     `json:"tag"`
	Amount    float64    `json:"amount"`
	Note      string     `json:"note"`
	IsSplit   bool       `json:"isSplit"`
	Shares    []shareOut `json:"shares"`
	CreatedAt time.Time  `json:"createdAt"`
}

type shareOut struct {
	UserID string  `json:"userId"`
	Amount float64 `json:"amount"`
}

// FriendDTO mirrors the shape clients already consume: the friend profile
// under "userId" plus the signed balance from the caller's perspective.
type FriendDTO struct {
	User   PublicUserDTO `json:"userId"`
	Amount float64       `json:"amount"`
}

type SummaryDTO struct {
	TotalOwed  float64 `json:"totalOwed"`
	TotalOwing float64 `json:"totalOwing"`
	Net        float64 `json:"net"`
	Settled    int     `json:"settled"`
	Open       int     `json:"open"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Phone:     u.Phone,
		IsPremium: u.IsPremium,
		CreatedAt: time.Unix(u.CreatedAt, 0).UTC(),
	}
}

func toSessionDTO(s *service.Session) SessionDTO {
	return SessionDTO{User: toUserDTO(s.User), Token: s.Token}
}

func toExpenseDTO(e *models.Expense) ExpenseDTO {
	shares := make([]shareOut, len(e.Shares))
	for i, s := range e.Shares {
		shares[i] = shareOut{UserID: s.UserID, Amount: s.Amount.InexactFloat64()}
	}
	return ExpenseDTO{
		ID:        e.ID,
		Tag:       e.Tag,
		Amount:    e.Amount.InexactFloat64(),
		Note:      e.Note,
		IsSplit:   e.IsSplit(),
		Shares:    shares,
		CreatedAt: time.Unix(e.CreatedAt, 0).UTC(),
	}
}

func toExpenseDTOs(expenses []*models.Expense) []ExpenseDTO {
	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	return dtos
}

func toFriendDTOs(friends []models.FriendBalance) []FriendDTO {
	dtos := make([]FriendDTO, len(friends))
	for i, f := range friends {
		dtos[i] = FriendDTO{
			User:   PublicUserDTO{ID: f.Friend.ID, Name: f.Friend.Name, Phone: f.Friend.Phone},
			Amount: f.Amount.InexactFloat64(),
		}
	}
	return dtos
}

func toSummaryDTO(s calculator.BalanceSummary) SummaryDTO {
	return SummaryDTO{
		TotalOwed:  s.TotalOwed.InexactFloat64(),
		TotalOwing: s.TotalOwing.InexactFloat64(),
		Net:        s.Net.InexactFloat64(),
		Settled:    s.Settled,
		Open:       s.Open,
	}
}

func toShares(payers []ShareDTO) []models.Share {
	if len(payers) == 0 {
		return nil
	}
	shares := make([]models.Share, len(payers))
	for i, p := range payers {
		shares[i] = models.Share{UserID: p.UserID, Amount: p.Amount}
	}
	return shares
}

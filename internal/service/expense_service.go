package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/events"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage"
)

const (
	// MaxNoteLength is the longest note, in characters, an expense may carry.
	MaxNoteLength = 500

	// ListLimit caps how many expenses ListExpenses returns.
	ListLimit = 50

	// AllTags is the tag filter value meaning "no tag filter".
	AllTags = "All"
)

// CreateExpenseInput is what a client submits to record an expense.
//
// FriendIDs and Payers are mutually exclusive. With neither, the whole amount
// is the creator's. FriendIDs splits the amount equally. Payers carries shares
// the client already computed; Payers[0] must be the creator.
type CreateExpenseInput struct {
	CreatorID string
	Tag       string
	Amount    decimal.Decimal
	Note      string
	FriendIDs []string
	Payers    []models.Share
}

// ListFilter narrows ListExpenses. Zero values mean "no filter".
type ListFilter struct {
	Month int // 1..12, requires Year
	Year  int
	Tag   string
}

// ExpenseService records, deletes and lists expenses.
type ExpenseService struct {
	Deps
	policy calculator.RemainderPolicy
}

// NewExpenseService creates an ExpenseService. policy decides who absorbs the
// rounding remainder of an equal split.
func NewExpenseService(deps Deps, policy calculator.RemainderPolicy) *ExpenseService {
	if policy == "" {
		policy = calculator.RemainderDrift
	}
	return &ExpenseService{Deps: deps.withDefaults(), policy: policy}
}

// CreateExpense validates the input, computes the shares and persists the
// expense together with its balance changes.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (*models.Expense, error) {
	if in.CreatorID == "" {
		return nil, auth.ErrMissingToken
	}

	expense, err := s.buildExpense(in)
	if err != nil {
		s.Logger.Warn("CreateExpense validation failed", "user_id", in.CreatorID, "error", err)
		return nil, err
	}

	err = s.Ledger.Atomically(ctx, "create_expense", func(tx storage.Tx) error {
		// Balances first: a missing friend link fails before any share row
		// references an unknown user.
		if err := s.Ledger.ApplySplit(ctx, tx, expense); err != nil {
			return err
		}
		return tx.CreateExpense(ctx, expense)
	})
	if err != nil {
		if !ledger.IsClientError(err) {
			s.Logger.Error("CreateExpense failed", "user_id", in.CreatorID, "error", err)
		}
		return nil, err
	}

	s.Metrics.IncExpense("created")
	s.Logger.Info("Expense created",
		"expense_id", expense.ID,
		"user_id", in.CreatorID,
		"amount", expense.Amount.String(),
		"participants", len(expense.Shares))

	s.publish(ctx, events.Event{
		Type:            events.ExpenseCreated,
		ExpenseID:       expense.ID,
		ActorID:         in.CreatorID,
		CounterpartyIDs: counterparties(expense),
		Amount:          &expense.Amount,
		OccurredAt:      time.Unix(expense.CreatedAt, 0).UTC(),
	})

	return expense, nil
}

// buildExpense validates in and returns the expense to persist.
func (s *ExpenseService) buildExpense(in CreateExpenseInput) (*models.Expense, error) {
	tag := strings.TrimSpace(in.Tag)
	if tag == "" {
		return nil, ledger.NewValidationError("tag", "tag is required")
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.NewValidationError("amount", "amount must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, ledger.NewValidationError("amount", "amount can have at most 2 decimal places")
	}
	if utf8.RuneCountInString(in.Note) > MaxNoteLength {
		return nil, ledger.NewValidationError("note", fmt.Sprintf("note cannot be longer than %d characters", MaxNoteLength))
	}
	if len(in.FriendIDs) > 0 && len(in.Payers) > 0 {
		return nil, ledger.NewValidationError("payers", "give either friends to split with or explicit payers, not both")
	}

	expense := &models.Expense{
		Tag:    tag,
		Amount: in.Amount,
		Note:   strings.TrimSpace(in.Note),
	}

	switch {
	case len(in.Payers) > 0:
		if err := validatePayers(in.CreatorID, in.Amount, in.Payers); err != nil {
			return nil, err
		}
		expense.Shares = append([]models.Share(nil), in.Payers...)

	default:
		if err := validateFriendIDs(in.CreatorID, in.FriendIDs); err != nil {
			return nil, err
		}
		shares, err := calculator.EqualShares(in.CreatorID, in.Amount, in.FriendIDs, s.policy)
		if err != nil {
			return nil, ledger.NewValidationError("amount", err.Error())
		}
		expense.Shares = shares
	}

	return expense, nil
}

func validateFriendIDs(creatorID string, friendIDs []string) error {
	seen := make(map[string]bool, len(friendIDs))
	for _, id := range friendIDs {
		switch {
		case id == "":
			return ledger.NewValidationError("friendIds", "friend id cannot be empty")
		case id == creatorID:
			return ledger.NewValidationError("friendIds", "you are already part of the expense")
		case seen[id]:
			return ledger.NewValidationError("friendIds", "a friend can only be selected once")
		}
		seen[id] = true
	}
	return nil
}

func validatePayers(creatorID string, amount decimal.Decimal, payers []models.Share) error {
	if payers[0].UserID != creatorID {
		return ledger.NewValidationError("payers", "the first payer must be you")
	}

	seen := make(map[string]bool, len(payers))
	for _, p := range payers {
		switch {
		case p.UserID == "":
			return ledger.NewValidationError("payers", "every payer needs a user id")
		case p.Amount.IsNegative():
			return ledger.NewValidationError("payers", "payer amounts cannot be negative")
		case seen[p.UserID]:
			return ledger.NewValidationError("payers", "a payer can only appear once")
		}
		seen[p.UserID] = true
	}

	if !calculator.WithinTolerance(payers, amount) {
		return ledger.NewValidationError("payers", "payer amounts must add up to the expense amount")
	}
	return nil
}

// DeleteExpense removes an expense and reverses its balance changes. Only the
// creator may delete.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID, actingUserID string) error {
	if actingUserID == "" {
		return auth.ErrMissingToken
	}
	if expenseID == "" {
		return ledger.NewValidationError("id", "expense id is required")
	}

	var deleted *models.Expense
	err := s.Ledger.Atomically(ctx, "delete_expense", func(tx storage.Tx) error {
		expense, err := tx.GetExpense(ctx, expenseID)
		if errors.Is(err, storage.ErrNotFound) {
			return &ledger.NotFoundError{Kind: "expense", ID: expenseID}
		}
		if err != nil {
			return err
		}

		if err := s.Ledger.ReverseSplit(ctx, tx, expense, actingUserID); err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, expenseID); err != nil {
			return err
		}

		deleted = expense
		return nil
	})
	if err != nil {
		if ledger.IsClientError(err) || ledger.IsNotFound(err) {
			s.Logger.Warn("DeleteExpense rejected", "expense_id", expenseID, "user_id", actingUserID, "error", err)
		} else {
			s.Logger.Error("DeleteExpense failed", "expense_id", expenseID, "user_id", actingUserID, "error", err)
		}
		return err
	}

	s.Metrics.IncExpense("deleted")
	s.Logger.Info("Expense deleted", "expense_id", expenseID, "user_id", actingUserID)

	s.publish(ctx, events.Event{
		Type:            events.ExpenseDeleted,
		ExpenseID:       expenseID,
		ActorID:         actingUserID,
		CounterpartyIDs: counterparties(deleted),
		Amount:          &deleted.Amount,
		OccurredAt:      time.Now().UTC(),
	})

	return nil
}

// ListExpenses returns up to ListLimit expenses the user holds a share in,
// newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID string, filter ListFilter) ([]*models.Expense, error) {
	if userID == "" {
		return nil, auth.ErrMissingToken
	}

	storeFilter, err := filter.toStorage()
	if err != nil {
		return nil, err
	}

	expenses, err := s.Store.ListExpenses(ctx, userID, storeFilter)
	if err != nil {
		s.Logger.Error("ListExpenses failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	return expenses, nil
}

// toStorage converts calendar filters into a UTC [From, To) window.
func (f ListFilter) toStorage() (storage.ExpenseFilter, error) {
	out := storage.ExpenseFilter{Limit: ListLimit}

	tag := strings.TrimSpace(f.Tag)
	if tag != "" && tag != AllTags {
		out.Tag = tag
	}

	switch {
	case f.Month != 0 && f.Year == 0:
		return out, ledger.NewValidationError("year", "year is required when filtering by month")
	case f.Month < 0 || f.Month > 12:
		return out, ledger.NewValidationError("month", "month must be between 1 and 12")
	case f.Year != 0 && f.Year < 1970:
		return out, ledger.NewValidationError("year", "year must be 1970 or later")
	}

	if f.Year == 0 {
		return out, nil
	}

	if f.Month == 0 {
		from := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		out.From, out.To = from.Unix(), from.AddDate(1, 0, 0).Unix()
		return out, nil
	}

	from := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
	out.From, out.To = from.Unix(), from.AddDate(0, 1, 0).Unix()
	return out, nil
}

// counterparties lists every participant except the creator.
func counterparties(e *models.Expense) []string {
	if e == nil || len(e.Shares) < 2 {
		return []string{}
	}
	ids := make([]string, 0, len(e.Shares)-1)
	for _, s := range e.Shares[1:] {
		ids = append(ids, s.UserID)
	}
	return ids
}

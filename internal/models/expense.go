package models

import "github.com/shopspring/decimal"

// SuggestedTags are the categories offered by the client.
// Tags are free-form; these are only suggestions.
var SuggestedTags = []string{
	"Food", "Grocery", "Transport", "Medical", "Fruits",
	"Bills", "Rent", "Entertainment", "Other",
}

// Expense represents a recorded expense and how it is shared.
// Expenses are created and deleted as a whole; they are never edited.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Tag is the expense category (e.g., "Food", "Rent").
	Tag string

	// Amount is the total expense amount. Always positive.
	Amount decimal.Decimal

	// Note is an optional free-text description.
	Note string

	// Shares is the ordered list of participant shares.
	// Shares[0] is the creator; only the creator may delete the expense.
	// The sum of share amounts equals Amount up to rounding tolerance.
	Shares []Share

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64
}

// Share represents one participant's portion of an expense.
type Share struct {
	// UserID is the participant.
	UserID string

	// Amount is this participant's portion. Never negative.
	Amount decimal.Decimal
}

// IsSplit reports whether the expense is shared with anyone besides the creator.
func (e *Expense) IsSplit() bool {
	return len(e.Shares) > 1
}

// CreatorID returns the user who created the expense, or "" if it has no shares.
func (e *Expense) CreatorID() string {
	if len(e.Shares) == 0 {
		return ""
	}
	return e.Shares[0].UserID
}

// HasParticipant reports whether userID holds a share of the expense.
func (e *Expense) HasParticipant(userID string) bool {
	for _, s := range e.Shares {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// ShareTotal returns the sum of all share amounts.
func (e *Expense) ShareTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range e.Shares {
		total = total.Add(s.Amount)
	}
	return total
}

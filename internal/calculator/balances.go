package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/models"
)

// BalanceSummary aggregates a user's balances across all friends.
type BalanceSummary struct {
	TotalOwed  decimal.Decimal // What friends owe the user (sum of positive balances)
	TotalOwing decimal.Decimal // What the user owes friends (sum of negative balances, as a positive number)
	Net        decimal.Decimal // TotalOwed - TotalOwing
	Settled    int             // Friends with a zero balance
	Open       int             // Friends with a non-zero balance
}

// SummarizeBalances totals the balances from one user's perspective.
func SummarizeBalances(friends []models.FriendBalance) BalanceSummary {
	summary := BalanceSummary{
		TotalOwed:  decimal.Zero,
		TotalOwing: decimal.Zero,
	}

	for _, f := range friends {
		switch {
		case f.Amount.IsPositive():
			summary.TotalOwed = summary.TotalOwed.Add(f.Amount)
			summary.Open++
		case f.Amount.IsNegative():
			summary.TotalOwing = summary.TotalOwing.Add(f.Amount.Neg())
			summary.Open++
		default:
			summary.Settled++
		}
	}

	summary.Net = summary.TotalOwed.Sub(summary.TotalOwing)
	return summary
}

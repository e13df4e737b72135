package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/models"
)

// RemainderPolicy decides what happens to the rounding remainder of an equal split.
type RemainderPolicy string

const (
	// RemainderDrift gives every participant the same rounded share.
	// The share sum may differ from the total by up to one cent per counterparty.
	RemainderDrift RemainderPolicy = "drift"

	// RemainderToCreator gives counterparties the rounded share and lets the
	// creator's share absorb the difference, so the share sum equals the total.
	RemainderToCreator RemainderPolicy = "creator"
)

// centPlaces is the number of decimal places shares are rounded to.
const centPlaces = 2

// ParseRemainderPolicy validates a policy name from configuration.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(s) {
	case RemainderDrift, RemainderToCreator:
		return RemainderPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown remainder policy %q (want %q or %q)", s, RemainderDrift, RemainderToCreator)
	}
}

// EqualShares splits total equally between the creator and each counterparty.
// The creator's share is always first.
//
// Algorithm: every one of the k+1 participants gets round(total/(k+1), 2),
// rounding half away from zero (half-up for the positive amounts used here).
// Under RemainderToCreator the creator's share becomes total minus the
// counterparties' shares instead.
func EqualShares(creatorID string, total decimal.Decimal, counterpartyIDs []string, policy RemainderPolicy) ([]models.Share, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("creator is required")
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("total must be positive, got %s", total)
	}

	participants := int64(len(counterpartyIDs) + 1)
	each := total.Div(decimal.NewFromInt(participants)).Round(centPlaces)

	shares := make([]models.Share, 0, participants)
	shares = append(shares, models.Share{UserID: creatorID, Amount: each})
	for _, id := range counterpartyIDs {
		shares = append(shares, models.Share{UserID: id, Amount: each})
	}

	if policy == RemainderToCreator && len(counterpartyIDs) > 0 {
		others := each.Mul(decimal.NewFromInt(participants - 1))
		shares[0].Amount = total.Sub(others)
	}

	return shares, nil
}

// ShareTolerance is the largest acceptable gap between a share sum and the
// expense total for n participants: one cent each.
func ShareTolerance(n int) decimal.Decimal {
	return decimal.New(1, -centPlaces).Mul(decimal.NewFromInt(int64(n)))
}

// WithinTolerance reports whether the shares add up to total within ShareTolerance.
func WithinTolerance(shares []models.Share, total decimal.Decimal) bool {
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}
	return sum.Sub(total).Abs().LessThanOrEqual(ShareTolerance(len(shares)))
}

package models

import "github.com/shopspring/decimal"

// Balance is one direction of the running balance between two users.
//
// Amount > 0 means the counterparty owes the owner, Amount < 0 means the owner
// owes the counterparty, and zero means settled. For every pair with history
// both directions exist and Balance(A,B).Amount == -Balance(B,A).Amount.
type Balance struct {
	// OwnerID is the user whose perspective this row represents.
	OwnerID string

	// CounterpartyID is the other user.
	CounterpartyID string

	// Amount is the signed running balance.
	Amount decimal.Decimal

	// Version increments on every write and guards compare-and-swap updates.
	// Zero means the row does not exist yet.
	Version int64
}

// Exists reports whether the balance row has been persisted.
func (b Balance) Exists() bool {
	return b.Version > 0
}

// FriendBalance pairs a friend's public profile with the balance from the
// viewing user's perspective.
type FriendBalance struct {
	Friend PublicUser
	Amount decimal.Decimal
}

// Package events publishes ledger notifications after a change commits.
//
// Publishing is best effort: the ledger never waits on, or rolls back for,
// a failed publish.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the event name. It doubles as the AMQP routing key.
type Type string

const (
	ExpenseCreated Type = "expense.created"
	ExpenseDeleted Type = "expense.deleted"
	BalanceSettled Type = "balance.settled"
)

// Event describes one committed ledger change.
type Event struct {
	Type Type `json:"type"`

	// ExpenseID is empty for settlements.
	ExpenseID string `json:"expenseId,omitempty"`

	// ActorID is the user who made the change.
	ActorID string `json:"actorId"`

	// CounterpartyIDs are the other users whose balances moved.
	CounterpartyIDs []string `json:"counterpartyIds"`

	// Amount is the expense total. Nil for settlements.
	Amount *decimal.Decimal `json:"amount,omitempty"`

	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// Package service implements the Spending Diary use cases on top of the
// ledger and storage layers. The REST and RPC transports both call into it.
package service

import (
	"context"
	"log/slog"

	"github.com/mmynk/spending-diary/internal/events"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/metrics"
	"github.com/mmynk/spending-diary/internal/storage"
)

// Deps bundles the collaborators shared by the expense and friend services.
type Deps struct {
	Store     storage.Store
	Ledger    *ledger.Mutator
	Publisher events.Publisher // optional, defaults to events.NopPublisher
	Metrics   *metrics.Metrics // optional
	Logger    *slog.Logger     // optional, defaults to slog.Default()
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// publish sends event after the change has committed. A failed publish is
// logged and otherwise ignored.
func (d Deps) publish(ctx context.Context, event events.Event) {
	if err := d.Publisher.Publish(ctx, event); err != nil {
		d.Logger.Warn("Failed to publish ledger event",
			"type", event.Type,
			"expense_id", event.ExpenseID,
			"error", err)
	}
}

// userNotFound turns a storage miss into the ledger's NotFoundError.
func userNotFound(id string) error {
	return &ledger.NotFoundError{Kind: "user", ID: id}
}

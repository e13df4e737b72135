// Package ledger owns every write to the balance table.
//
// A Balance row holds the running amount between an ordered pair of users.
// Each mutation here writes both directions of a pair inside the caller's
// transaction, so Balance(A,B) == -Balance(B,A) holds after every commit.
// Atomically wraps a unit of work in a transaction and retries it when a
// compare-and-swap on a balance row loses a race.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spending-diary/internal/metrics"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage"
)

// Defaults used when Options fields are zero.
const (
	DefaultMaxRetries     = 5
	DefaultOpTimeout      = 5 * time.Second
	DefaultInitialBackoff = 10 * time.Millisecond
	DefaultMaxBackoff     = 500 * time.Millisecond
)

// Options configures a Mutator.
type Options struct {
	// MaxRetries is how many times a unit of work is retried after a
	// concurrent modification before giving up with ErrConflict.
	MaxRetries int

	// OpTimeout bounds one Atomically call, retries included.
	OpTimeout time.Duration

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Mutator applies and reverses balance changes.
type Mutator struct {
	store storage.Store
	opts  Options
}

// NewMutator creates a Mutator over store.
func NewMutator(store storage.Store, opts Options) *Mutator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Mutator{store: store, opts: opts}
}

// ApplySplit moves each non-creator share onto the pair balances:
// Balance(creator, p) += share and Balance(p, creator) -= share.
// It does not persist the expense itself.
func (m *Mutator) ApplySplit(ctx context.Context, tx storage.Tx, expense *models.Expense) error {
	if err := validateShares(expense.Shares); err != nil {
		return err
	}

	creatorID := expense.CreatorID()
	for _, share := range expense.Shares[1:] {
		ok, err := tx.AreFriends(ctx, creatorID, share.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFriendsError{CreatorID: creatorID, ParticipantID: share.UserID}
		}
	}

	return m.moveShares(ctx, tx, creatorID, expense.Shares[1:], decimal.NewFromInt(1))
}

// ReverseSplit applies the exact negation of ApplySplit. Only the creator
// (Shares[0]) may reverse an expense.
func (m *Mutator) ReverseSplit(ctx context.Context, tx storage.Tx, expense *models.Expense, actingUserID string) error {
	if err := validateShares(expense.Shares); err != nil {
		return err
	}

	creatorID := expense.CreatorID()
	if actingUserID != creatorID {
		return &ForbiddenError{UserID: actingUserID, Action: "delete an expense you did not create"}
	}

	return m.moveShares(ctx, tx, creatorID, expense.Shares[1:], decimal.NewFromInt(-1))
}

// Settle resets both directions of the pair to zero. Settling an already
// settled pair is a no-op.
func (m *Mutator) Settle(ctx context.Context, tx storage.Tx, userID, friendID string) error {
	if userID == friendID {
		return NewValidationError("friendId", "cannot settle a balance with yourself")
	}

	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		prev, err := tx.GetBalance(ctx, pair[0], pair[1])
		if err != nil {
			return err
		}
		if prev.Exists() && prev.Amount.IsZero() {
			continue
		}
		if err := tx.PutBalance(ctx, prev, decimal.Zero); err != nil {
			return err
		}
	}

	return nil
}

// Link creates the reciprocal friend links between two users and a zero
// balance row in each direction if none exists yet.
func (m *Mutator) Link(ctx context.Context, tx storage.Tx, userID, friendID string) error {
	if userID == friendID {
		return NewValidationError("friendId", "cannot add yourself as a friend")
	}

	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if err := tx.AddFriendLink(ctx, pair[0], pair[1]); err != nil {
			return err
		}
		prev, err := tx.GetBalance(ctx, pair[0], pair[1])
		if err != nil {
			return err
		}
		if prev.Exists() {
			continue
		}
		if err := tx.PutBalance(ctx, prev, decimal.Zero); err != nil {
			return err
		}
	}

	return nil
}

// Atomically runs fn as one unit of work. Any error rolls back everything fn
// wrote. A lost compare-and-swap (or a busy database) restarts fn with
// exponential backoff; when retries or OpTimeout run out the result is a
// *ConflictError.
func (m *Mutator) Atomically(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, m.opts.OpTimeout)
	defer cancel()

	delay := m.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := m.store.InTx(ctx, fn)
		if err == nil {
			m.opts.Metrics.ObserveLedgerOp(op, metrics.OutcomeOK, time.Since(start))
			return nil
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return m.conflict(op, attempt, true, err, start)
		}
		if !errors.Is(err, storage.ErrConcurrentModification) {
			m.opts.Metrics.ObserveLedgerOp(op, metrics.OutcomeError, time.Since(start))
			return err
		}
		if attempt > m.opts.MaxRetries {
			return m.conflict(op, attempt, false, err, start)
		}

		m.opts.Metrics.IncLedgerRetry(op)
		slog.Warn("Ledger write conflicted, retrying",
			"op", op,
			"attempt", attempt,
			"max_retries", m.opts.MaxRetries,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return m.conflict(op, attempt, true, ctx.Err(), start)
			}
			m.opts.Metrics.ObserveLedgerOp(op, metrics.OutcomeError, time.Since(start))
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
			if delay > m.opts.MaxBackoff {
				delay = m.opts.MaxBackoff
			}
		}
	}
}

func (m *Mutator) conflict(op string, attempts int, timedOut bool, err error, start time.Time) error {
	m.opts.Metrics.IncLedgerConflict(op)
	m.opts.Metrics.ObserveLedgerOp(op, metrics.OutcomeConflict, time.Since(start))
	slog.Error("Ledger operation abandoned",
		"op", op,
		"attempts", attempts,
		"timed_out", timedOut,
		"error", err)
	return &ConflictError{Op: op, Attempts: attempts, TimedOut: timedOut, Err: err}
}

// moveShares adds sign*share to Balance(creator, p) and subtracts it from
// Balance(p, creator) for every share.
func (m *Mutator) moveShares(ctx context.Context, tx storage.Tx, creatorID string, shares []models.Share, sign decimal.Decimal) error {
	for _, share := range shares {
		if share.Amount.IsZero() {
			continue
		}
		delta := share.Amount.Mul(sign)
		if err := adjust(ctx, tx, creatorID, share.UserID, delta); err != nil {
			return err
		}
		if err := adjust(ctx, tx, share.UserID, creatorID, delta.Neg()); err != nil {
			return err
		}
	}
	return nil
}

// adjust is a read-then-CAS on one balance row. A missing row starts at zero.
func adjust(ctx context.Context, tx storage.Tx, ownerID, counterpartyID string, delta decimal.Decimal) error {
	prev, err := tx.GetBalance(ctx, ownerID, counterpartyID)
	if err != nil {
		return err
	}
	if err := tx.PutBalance(ctx, prev, prev.Amount.Add(delta)); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func validateShares(shares []models.Share) error {
	if len(shares) == 0 {
		return NewValidationError("shares", "an expense needs at least one share")
	}

	seen := make(map[string]bool, len(shares))
	for _, share := range shares {
		if share.UserID == "" {
			return NewValidationError("shares", "every share needs a user")
		}
		if seen[share.UserID] {
			return NewValidationError("shares", "a user can only appear once in an expense")
		}
		seen[share.UserID] = true

		if share.Amount.IsNegative() {
			return NewValidationError("shares", "share amounts cannot be negative")
		}
	}

	return nil
}

package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/events"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage/sqlite"
)

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	store     *sqlite.SQLiteStore
	expenses  *ExpenseService
	friends   *FriendService
	publisher *recordingPublisher
	users     map[string]string // name -> ID
}

func setupTestEnv(t *testing.T, policy calculator.RemainderPolicy, names ...string) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	publisher := &recordingPublisher{}
	deps := Deps{
		Store:     store,
		Ledger:    ledger.NewMutator(store, ledger.Options{OpTimeout: 10 * time.Second}),
		Publisher: publisher,
	}

	env := &testEnv{
		store:     store,
		expenses:  NewExpenseService(deps, policy),
		friends:   NewFriendService(deps),
		publisher: publisher,
		users:     make(map[string]string),
	}
	for i, name := range names {
		user := models.NewUser(name, fmt.Sprintf("+1555010%d", i), "hash")
		require.NoError(t, store.CreateUser(context.Background(), user))
		env.users[name] = user.ID
	}
	return env
}

func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	_, err := e.friends.AddFriend(context.Background(), e.users[a], e.users[b])
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, owner, counterparty string) decimal.Decimal {
	t.Helper()
	b, err := e.store.GetBalance(context.Background(), e.users[owner], e.users[counterparty])
	require.NoError(t, err)
	return b.Amount
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

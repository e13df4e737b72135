package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/middleware"
	"github.com/mmynk/spending-diary/internal/service"
	"github.com/mmynk/spending-diary/internal/storage/sqlite"
)

type rpcEnv struct {
	client *LedgerServiceClient
	users  *service.UserService
}

func setupRPC(t *testing.T) *rpcEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "rpc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager("rpc-test-secret-key", time.Hour)
	deps := service.Deps{
		Store:  store,
		Ledger: ledger.NewMutator(store, ledger.Options{OpTimeout: 10 * time.Second}),
	}

	mux := http.NewServeMux()
	path, handler := NewLedgerServiceHandler(
		NewLedgerServer(service.NewExpenseService(deps, calculator.RemainderDrift), service.NewFriendService(deps)),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(nil)),
	)
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &rpcEnv{
		client: NewLedgerServiceClient(srv.Client(), srv.URL),
		users:  service.NewUserService(auth.NewPasswordAuthenticator(store), jwtManager, store, nil),
	}
}

func (e *rpcEnv) signup(t *testing.T, name, phone string) *service.Session {
	t.Helper()
	session, err := e.users.Register(context.Background(), name, phone, "password123")
	require.NoError(t, err)
	return session
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerService(t *testing.T) {
	env := setupRPC(t)
	ctx := context.Background()

	alice := env.signup(t, "Alice", "+15550001")
	bob := env.signup(t, "Bob", "+15550002")

	added, err := env.client.AddFriend(ctx, withToken(&AddFriendRequest{Phone: "+15550002"}, alice.Token))
	require.NoError(t, err)
	assert.Equal(t, bob.User.ID, added.Msg.Friend.ID)

	created, err := env.client.CreateExpense(ctx, withToken(&CreateExpenseRequest{
		Amount:    d("25.50"),
		Tag:       "Transport",
		FriendIDs: []string{bob.User.ID},
	}, alice.Token))
	require.NoError(t, err)

	expense := created.Msg.Expense
	assert.True(t, expense.IsSplit)
	require.Len(t, expense.Shares, 2)
	assert.Equal(t, alice.User.ID, expense.Shares[0].UserID)
	assert.True(t, d("12.75").Equal(expense.Shares[1].Amount))

	t.Run("list expenses", func(t *testing.T) {
		resp, err := env.client.ListExpenses(ctx, withToken(&ListExpensesRequest{Tag: "Transport"}, bob.Token))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Expenses, 1)
		assert.Equal(t, expense.ID, resp.Msg.Expenses[0].ID)

		resp, err = env.client.ListExpenses(ctx, withToken(&ListExpensesRequest{Tag: "Food"}, bob.Token))
		require.NoError(t, err)
		assert.Empty(t, resp.Msg.Expenses)
	})

	t.Run("list friends", func(t *testing.T) {
		resp, err := env.client.ListFriends(ctx, withToken(&ListFriendsRequest{}, bob.Token))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Friends, 1)
		assert.Equal(t, "Alice", resp.Msg.Friends[0].Friend.Name)
		assert.True(t, d("-12.75").Equal(resp.Msg.Friends[0].Amount))
		assert.True(t, d("12.75").Equal(resp.Msg.Summary.TotalOwing))
		assert.Equal(t, 1, resp.Msg.Summary.Open)
	})

	t.Run("non-creator cannot delete", func(t *testing.T) {
		_, err := env.client.DeleteExpense(ctx, withToken(&DeleteExpenseRequest{ExpenseID: expense.ID}, bob.Token))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("settle", func(t *testing.T) {
		_, err := env.client.SettleBalance(ctx, withToken(&SettleBalanceRequest{FriendID: bob.User.ID}, alice.Token))
		require.NoError(t, err)

		resp, err := env.client.ListFriends(ctx, withToken(&ListFriendsRequest{}, alice.Token))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Friends[0].Amount.IsZero())
		assert.Equal(t, 1, resp.Msg.Summary.Settled)
	})

	t.Run("creator deletes", func(t *testing.T) {
		_, err := env.client.DeleteExpense(ctx, withToken(&DeleteExpenseRequest{ExpenseID: expense.ID}, alice.Token))
		require.NoError(t, err)

		_, err = env.client.DeleteExpense(ctx, withToken(&DeleteExpenseRequest{ExpenseID: expense.ID}, alice.Token))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestLedgerServiceErrors(t *testing.T) {
	env := setupRPC(t)
	ctx := context.Background()

	alice := env.signup(t, "Alice", "+15550001")
	stranger := env.signup(t, "Stranger", "+15550009")

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := env.client.ListExpenses(ctx, connect.NewRequest(&ListExpensesRequest{}))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("validation message is returned", func(t *testing.T) {
		_, err := env.client.CreateExpense(ctx, withToken(&CreateExpenseRequest{Amount: d("10")}, alice.Token))
		require.Error(t, err)

		var connectErr *connect.Error
		require.True(t, errors.As(err, &connectErr))
		assert.Equal(t, connect.CodeInvalidArgument, connectErr.Code())
		assert.Equal(t, "tag is required", connectErr.Message())
	})

	t.Run("split with non-friend", func(t *testing.T) {
		_, err := env.client.CreateExpense(ctx, withToken(&CreateExpenseRequest{
			Amount:    d("10"),
			Tag:       "Food",
			FriendIDs: []string{stranger.User.ID},
		}, alice.Token))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("unknown friend", func(t *testing.T) {
		_, err := env.client.AddFriend(ctx, withToken(&AddFriendRequest{FriendID: "ghost"}, alice.Token))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code connect.Code
	}{
		{"missing token", auth.ErrMissingToken, connect.CodeUnauthenticated},
		{"validation", ledger.NewValidationError("amount", "amount must be greater than zero"), connect.CodeInvalidArgument},
		{"not friends", &ledger.NotFriendsError{CreatorID: "a", ParticipantID: "b"}, connect.CodeInvalidArgument},
		{"weak password", auth.ErrWeakPassword, connect.CodeInvalidArgument},
		{"forbidden", &ledger.ForbiddenError{UserID: "b", Action: "delete"}, connect.CodePermissionDenied},
		{"not found", &ledger.NotFoundError{Kind: "expense", ID: "x"}, connect.CodeNotFound},
		{"conflict", &ledger.ConflictError{Op: "settle", Attempts: 6}, connect.CodeAborted},
		{"phone exists", auth.ErrPhoneExists, connect.CodeAlreadyExists},
		{"internal", errors.New("disk I/O error"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toConnectError(tt.err)
			assert.Equal(t, tt.code, got.Code())
		})
	}

	assert.Equal(t, "something went wrong", toConnectError(errors.New("disk I/O error")).Message())
}

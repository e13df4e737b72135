package rpc

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/spending-diary/internal/middleware"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/service"
)

// LedgerServer implements the LedgerService procedures on top of the
// expense and friend services. Every procedure expects RequireAuth to have
// put the caller in the context.
type LedgerServer struct {
	expenses *service.ExpenseService
	friends  *service.FriendService
}

// NewLedgerServer creates a LedgerServer.
func NewLedgerServer(expenses *service.ExpenseService, friends *service.FriendService) *LedgerServer {
	return &LedgerServer{expenses: expenses, friends: friends}
}

// CreateExpense records an expense and applies its split.
func (s *LedgerServer) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	expense, err := s.expenses.CreateExpense(ctx, service.CreateExpenseInput{
		CreatorID: middleware.GetUserID(ctx),
		Tag:       req.Msg.Tag,
		Amount:    req.Msg.Amount,
		Note:      req.Msg.Note,
		FriendIDs: req.Msg.FriendIDs,
		Payers:    fromShares(req.Msg.Payers),
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CreateExpenseResponse{Expense: toExpense(expense)}), nil
}

// DeleteExpense removes an expense the caller created and reverses its split.
func (s *LedgerServer) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	if err := s.expenses.DeleteExpense(ctx, req.Msg.ExpenseID, middleware.GetUserID(ctx)); err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// ListExpenses returns the caller's expenses, newest first.
func (s *LedgerServer) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	expenses, err := s.expenses.ListExpenses(ctx, middleware.GetUserID(ctx), service.ListFilter{
		Month: req.Msg.Month,
		Year:  req.Msg.Year,
		Tag:   req.Msg.Tag,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toExpense(e)
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: out}), nil
}

// AddFriend links the caller with another user.
func (s *LedgerServer) AddFriend(ctx context.Context, req *connect.Request[AddFriendRequest]) (*connect.Response[AddFriendResponse], error) {
	userID := middleware.GetUserID(ctx)

	var (
		friend models.PublicUser
		err    error
	)
	if req.Msg.FriendID == "" && req.Msg.Phone != "" {
		friend, err = s.friends.AddFriendByPhone(ctx, userID, req.Msg.Phone)
	} else {
		friend, err = s.friends.AddFriend(ctx, userID, req.Msg.FriendID)
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&AddFriendResponse{Friend: toUser(friend)}), nil
}

// ListFriends returns the caller's friends with balances and their summary.
func (s *LedgerServer) ListFriends(ctx context.Context, req *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error) {
	userID := middleware.GetUserID(ctx)

	friends, err := s.friends.GetFriendsWithBalances(ctx, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	summary, err := s.friends.GetBalanceSummary(ctx, userID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ListFriendsResponse{
		Friends: toFriendBalances(friends),
		Summary: toBalanceSummary(summary),
	}), nil
}

// SettleBalance zeroes the balance between the caller and a friend.
func (s *LedgerServer) SettleBalance(ctx context.Context, req *connect.Request[SettleBalanceRequest]) (*connect.Response[SettleBalanceResponse], error) {
	if err := s.friends.SettleBalance(ctx, middleware.GetUserID(ctx), req.Msg.FriendID); err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&SettleBalanceResponse{}), nil
}

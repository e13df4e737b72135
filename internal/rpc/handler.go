package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// LedgerServiceName is the fully-qualified name of the LedgerService service.
const LedgerServiceName = "spendingdiary.v1.LedgerService"

// Procedure paths, as they appear in the URL.
const (
	LedgerServiceCreateExpenseProcedure = "/spendingdiary.v1.LedgerService/CreateExpense"
	LedgerServiceDeleteExpenseProcedure = "/spendingdiary.v1.LedgerService/DeleteExpense"
	LedgerServiceListExpensesProcedure  = "/spendingdiary.v1.LedgerService/ListExpenses"
	LedgerServiceAddFriendProcedure     = "/spendingdiary.v1.LedgerService/AddFriend"
	LedgerServiceListFriendsProcedure   = "/spendingdiary.v1.LedgerService/ListFriends"
	LedgerServiceSettleBalanceProcedure = "/spendingdiary.v1.LedgerService/SettleBalance"
)

// NewLedgerServiceHandler builds an HTTP handler for every LedgerService
// procedure. It returns the path to mount the handler on.
func NewLedgerServiceHandler(svc *LedgerServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	createExpense := connect.NewUnaryHandler(LedgerServiceCreateExpenseProcedure, svc.CreateExpense, opts...)
	deleteExpense := connect.NewUnaryHandler(LedgerServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...)
	listExpenses := connect.NewUnaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts...)
	addFriend := connect.NewUnaryHandler(LedgerServiceAddFriendProcedure, svc.AddFriend, opts...)
	listFriends := connect.NewUnaryHandler(LedgerServiceListFriendsProcedure, svc.ListFriends, opts...)
	settleBalance := connect.NewUnaryHandler(LedgerServiceSettleBalanceProcedure, svc.SettleBalance, opts...)

	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LedgerServiceCreateExpenseProcedure:
			createExpense.ServeHTTP(w, r)
		case LedgerServiceDeleteExpenseProcedure:
			deleteExpense.ServeHTTP(w, r)
		case LedgerServiceListExpensesProcedure:
			listExpenses.ServeHTTP(w, r)
		case LedgerServiceAddFriendProcedure:
			addFriend.ServeHTTP(w, r)
		case LedgerServiceListFriendsProcedure:
			listFriends.ServeHTTP(w, r)
		case LedgerServiceSettleBalanceProcedure:
			settleBalance.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// LedgerServiceClient calls LedgerService over Connect with the JSON codec.
type LedgerServiceClient struct {
	createExpense *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	deleteExpense *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses  *connect.Client[ListExpensesRequest, ListExpensesResponse]
	addFriend     *connect.Client[AddFriendRequest, AddFriendResponse]
	listFriends   *connect.Client[ListFriendsRequest, ListFriendsResponse]
	settleBalance *connect.Client[SettleBalanceRequest, SettleBalanceResponse]
}

// NewLedgerServiceClient creates a client for the service at baseURL, for
// example http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)

	return &LedgerServiceClient{
		createExpense: connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+LedgerServiceCreateExpenseProcedure, opts...),
		deleteExpense: connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+LedgerServiceDeleteExpenseProcedure, opts...),
		listExpenses:  connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+LedgerServiceListExpensesProcedure, opts...),
		addFriend:     connect.NewClient[AddFriendRequest, AddFriendResponse](httpClient, baseURL+LedgerServiceAddFriendProcedure, opts...),
		listFriends:   connect.NewClient[ListFriendsRequest, ListFriendsResponse](httpClient, baseURL+LedgerServiceListFriendsProcedure, opts...),
		settleBalance: connect.NewClient[SettleBalanceRequest, SettleBalanceResponse](httpClient, baseURL+LedgerServiceSettleBalanceProcedure, opts...),
	}
}

func (c *LedgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) AddFriend(ctx context.Context, req *connect.Request[AddFriendRequest]) (*connect.Response[AddFriendResponse], error) {
	return c.addFriend.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListFriends(ctx context.Context, req *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error) {
	return c.listFriends.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) SettleBalance(ctx context.Context, req *connect.Request[SettleBalanceRequest]) (*connect.Response[SettleBalanceResponse], error) {
	return c.settleBalance.CallUnary(ctx, req)
}

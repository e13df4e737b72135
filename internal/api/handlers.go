package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/spending-diary/internal/middleware"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/service"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the services the REST endpoints call into.
type Handler struct {
	users    *service.UserService
	expenses *service.ExpenseService
	friends  *service.FriendService
	db       Pinger
}

// NewHandler creates a Handler.
func NewHandler(users *service.UserService, expenses *service.ExpenseService, friends *service.FriendService, db Pinger) *Handler {
	return &Handler{users: users, expenses: expenses, friends: friends, db: db}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid request body")
		return false
	}
	return true
}

// =============================================================================
// AUTH
// =============================================================================

// Signup creates an account.
// POST /auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := h.users.Register(r.Context(), req.Name, req.Phone, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, toSessionDTO(session))
}

// Login exchanges phone and password for a token.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := h.users.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toSessionDTO(session))
}

// =============================================================================
// USERS
// =============================================================================

// CurrentUser returns the caller's profile.
// GET /users/me
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toUserDTO(user))
}

// LookupUser finds a user by phone.
// GET /users?phone=
func (h *Handler) LookupUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.LookupByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, PublicUserDTO{ID: user.ID, Name: user.Name})
}

// =============================================================================
// EXPENSES
// =============================================================================

// CreateExpense records an expense, optionally split with friends.
// POST /expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if !decode(w, r, &req) {
		return
	}

	expense, err := h.expenses.CreateExpense(r.Context(), service.CreateExpenseInput{
		CreatorID: middleware.GetUserID(r.Context()),
		Tag:       req.Tag,
		Amount:    req.Amount,
		Note:      req.Note,
		FriendIDs: req.FriendIDs,
		Payers:    toShares(req.Payers),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, toExpenseDTO(expense))
}

// DeleteExpense deletes an expense the caller created.
// DELETE /expenses?id= or DELETE /expenses/{id}
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}

	if err := h.expenses.DeleteExpense(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "expense deleted")
}

// ListExpenses returns the caller's expenses, newest first.
// GET /expenses?month=&year=&tag=
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	month, ok := intParam(w, q.Get("month"), "month")
	if !ok {
		return
	}
	year, ok := intParam(w, q.Get("year"), "year")
	if !ok {
		return
	}

	expenses, err := h.expenses.ListExpenses(r.Context(), middleware.GetUserID(r.Context()), service.ListFilter{
		Month: month,
		Year:  year,
		Tag:   q.Get("tag"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toExpenseDTOs(expenses))
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, name+" must be a number")
		return 0, false
	}
	return n, true
}

// =============================================================================
// FRIENDS
// =============================================================================

// AddFriend links the caller with another user, by ID or phone.
// POST /friends
func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	var req AddFriendRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		userID = middleware.GetUserID(r.Context())
		friend models.PublicUser
		err    error
	)
	if req.FriendID == "" && req.Phone != "" {
		friend, err = h.friends.AddFriendByPhone(r.Context(), userID, req.Phone)
	} else {
		friend, err = h.friends.AddFriend(r.Context(), userID, req.FriendID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, PublicUserDTO{ID: friend.ID, Name: friend.Name, Phone: friend.Phone})
}

// ListFriends returns the caller's friends with their balances.
// GET /friends
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friends.GetFriendsWithBalances(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toFriendDTOs(friends))
}

// BalanceSummary totals the caller's balances.
// GET /friends/summary
func (h *Handler) BalanceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.friends.GetBalanceSummary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toSummaryDTO(summary))
}

// Settle zeroes the balance between the caller and a friend.
// POST /friends/settle
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.friends.SettleBalance(r.Context(), middleware.GetUserID(r.Context()), req.FriendID); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "balance settled")
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the database answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Message: "database unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true})
}

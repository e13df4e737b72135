package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/metrics"
	"github.com/mmynk/spending-diary/internal/service"
	"github.com/mmynk/spending-diary/internal/storage/sqlite"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager("api-test-secret-key", time.Hour)
	m := metrics.New()
	deps := service.Deps{
		Store:   store,
		Ledger:  ledger.NewMutator(store, ledger.Options{OpTimeout: 10 * time.Second, Metrics: m}),
		Metrics: m,
	}

	h := NewHandler(
		service.NewUserService(auth.NewPasswordAuthenticator(store), jwtManager, store, nil),
		service.NewExpenseService(deps, calculator.RemainderDrift),
		service.NewFriendService(deps),
		store,
	)
	srv := httptest.NewServer(NewRouter(h, RouterConfig{
		JWTManager:     jwtManager,
		AllowedOrigins: []string{"*"},
		Metrics:        m,
	}))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv}
}

// do sends body as JSON and decodes the envelope.
func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = strings.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) signup(t *testing.T, name, phone string) SessionDTO {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Name: name, Phone: phone, Password: "password123"})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var session SessionDTO
	require.NoError(t, json.Unmarshal(env.Data, &session))
	return session
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "Alice", "+15550001")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "Alice", alice.User.Name)

	t.Run("duplicate phone", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Name: "Other", Phone: "+15550001", Password: "password123"})
		assert.Equal(t, http.StatusConflict, status)
		assert.False(t, env.Success)
	})

	t.Run("weak password", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Name: "Bob", Phone: "+15550002", Password: "short"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("malformed body", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/auth/signup", "", "{not json")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid request body", env.Message)
	})

	t.Run("login", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Phone: "+15550001", Password: "password123"})
		require.Equal(t, http.StatusOK, status)

		var session SessionDTO
		require.NoError(t, json.Unmarshal(env.Data, &session))
		assert.Equal(t, alice.User.ID, session.User.ID)

		status, env = s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Phone: "+15550001", Password: "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, auth.ErrInvalidCredentials.Error(), env.Message)
	})

	t.Run("current user", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/users/me", alice.Token, nil)
		require.Equal(t, http.StatusOK, status)

		var user UserDTO
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "+15550001", user.Phone)
	})

	t.Run("missing token", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "unauthorized", env.Message)
	})

	t.Run("bad token", func(t *testing.T) {
		status, _ := s.do(t, http.MethodGet, "/expenses", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestExpenseFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "Alice", "+15550001")
	bob := s.signup(t, "Bob", "+15550002")
	carol := s.signup(t, "Carol", "+15550003")
	dave := s.signup(t, "Dave", "+15550004")

	// Alice befriends Bob by ID and Carol by phone.
	status, env := s.do(t, http.MethodPost, "/friends", alice.Token, AddFriendRequest{FriendID: bob.User.ID})
	require.Equal(t, http.StatusOK, status, env.Message)
	status, env = s.do(t, http.MethodPost, "/friends", alice.Token, AddFriendRequest{Phone: "+15550003"})
	require.Equal(t, http.StatusOK, status, env.Message)

	var added PublicUserDTO
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.Equal(t, carol.User.ID, added.ID)

	t.Run("split with non-friend is rejected", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/expenses", alice.Token, map[string]any{
			"amount":    30,
			"tag":       "Food",
			"friendIds": []string{dave.User.ID},
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "you can only split expenses with your friends", env.Message)
	})

	status, env = s.do(t, http.MethodPost, "/expenses", alice.Token, map[string]any{
		"amount":    90,
		"tag":       "Food",
		"note":      "dinner",
		"friendIds": []string{bob.User.ID, carol.User.ID},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var expense ExpenseDTO
	require.NoError(t, json.Unmarshal(env.Data, &expense))
	assert.True(t, expense.IsSplit)
	assert.Equal(t, 90.0, expense.Amount)
	require.Len(t, expense.Shares, 3)
	assert.Equal(t, alice.User.ID, expense.Shares[0].UserID)
	for _, share := range expense.Shares {
		assert.Equal(t, 30.0, share.Amount)
	}

	t.Run("friends and balances", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/friends", alice.Token, nil)
		require.Equal(t, http.StatusOK, status)

		var friends []FriendDTO
		require.NoError(t, json.Unmarshal(env.Data, &friends))
		require.Len(t, friends, 2)
		assert.Equal(t, "Bob", friends[0].User.Name)
		assert.Equal(t, 30.0, friends[0].Amount)
		assert.Equal(t, "Carol", friends[1].User.Name)
		assert.Equal(t, 30.0, friends[1].Amount)

		status, env = s.do(t, http.MethodGet, "/friends", bob.Token, nil)
		require.Equal(t, http.StatusOK, status)
		require.NoError(t, json.Unmarshal(env.Data, &friends))
		require.Len(t, friends, 1)
		assert.Equal(t, -30.0, friends[0].Amount)

		status, env = s.do(t, http.MethodGet, "/friends/summary", alice.Token, nil)
		require.Equal(t, http.StatusOK, status)

		var summary SummaryDTO
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Equal(t, 60.0, summary.TotalOwed)
		assert.Equal(t, 60.0, summary.Net)
		assert.Equal(t, 2, summary.Open)
	})

	t.Run("list shows the expense to every participant", func(t *testing.T) {
		for _, token := range []string{alice.Token, bob.Token, carol.Token} {
			status, env := s.do(t, http.MethodGet, "/expenses?tag=Food", token, nil)
			require.Equal(t, http.StatusOK, status)

			var expenses []ExpenseDTO
			require.NoError(t, json.Unmarshal(env.Data, &expenses))
			require.Len(t, expenses, 1)
			assert.Equal(t, expense.ID, expenses[0].ID)
		}

		status, env := s.do(t, http.MethodGet, "/expenses", dave.Token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("list rejects bad filters", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/expenses?month=abc", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "month must be a number", env.Message)

		status, _ = s.do(t, http.MethodGet, "/expenses?month=3", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("only the creator may delete", func(t *testing.T) {
		status, _ := s.do(t, http.MethodDelete, "/expenses/"+expense.ID, bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("unknown expense", func(t *testing.T) {
		status, _ := s.do(t, http.MethodDelete, "/expenses?id=missing", alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("settle", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/friends/settle", bob.Token, SettleRequest{FriendID: alice.User.ID})
		require.Equal(t, http.StatusOK, status, env.Message)
		assert.Equal(t, "balance settled", env.Message)

		status, env = s.do(t, http.MethodGet, "/friends/summary", alice.Token, nil)
		require.Equal(t, http.StatusOK, status)

		var summary SummaryDTO
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Equal(t, 30.0, summary.TotalOwed)
		assert.Equal(t, 1, summary.Settled)
	})

	t.Run("creator deletes", func(t *testing.T) {
		status, env := s.do(t, http.MethodDelete, "/expenses/"+expense.ID, alice.Token, nil)
		require.Equal(t, http.StatusOK, status, env.Message)
		assert.Equal(t, "expense deleted", env.Message)

		status, _ = s.do(t, http.MethodDelete, "/expenses/"+expense.ID, alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, status)

		// Bob was settled before the delete, so the reversal leaves him owed.
		status, env = s.do(t, http.MethodGet, "/friends", bob.Token, nil)
		require.Equal(t, http.StatusOK, status)

		var friends []FriendDTO
		require.NoError(t, json.Unmarshal(env.Data, &friends))
		require.Len(t, friends, 1)
		assert.Equal(t, 30.0, friends[0].Amount)
	})
}

func TestCreateExpenseValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "Alice", "+15550001")

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"missing tag", map[string]any{"amount": 10}, ""},
		{"zero amount", map[string]any{"amount": 0, "tag": "Food"}, ""},
		{"three decimals", map[string]any{"amount": "1.005", "tag": "Food"}, ""},
		{"self as friend", map[string]any{"amount": 10, "tag": "Food", "friendIds": []string{alice.User.ID}}, ""},
		{"amount not a number", `{"amount":"ten","tag":"Food"}`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, http.MethodPost, "/expenses", alice.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
		})
	}

	status, env := s.do(t, http.MethodGet, "/expenses", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	resp, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "spending_diary_http_request_duration_seconds")
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthReportsUnavailableStore(t *testing.T) {
	h := NewHandler(nil, nil, nil, downPinger{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"database unavailable"}`, rec.Body.String())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{auth.ErrMissingToken, http.StatusUnauthorized},
		{auth.ErrWeakPassword, http.StatusBadRequest},
		{ledger.NewValidationError("tag", "tag is required"), http.StatusBadRequest},
		{&ledger.NotFriendsError{}, http.StatusBadRequest},
		{&ledger.ForbiddenError{Action: "delete"}, http.StatusForbidden},
		{&ledger.NotFoundError{Kind: "expense"}, http.StatusNotFound},
		{&ledger.ConflictError{Op: "settle"}, http.StatusConflict},
		{auth.ErrPhoneExists, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			if status == http.StatusInternalServerError {
				assert.Equal(t, internalErrorMessage, messageFor(status, tt.err))
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil)), errors.New("sql: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

// Package api exposes the Spending Diary services over a JSON REST API.
//
// Every response uses the envelope {success, message?, data?}. All routes
// except signup, login, health and metrics need a Bearer token.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/metrics"
	"github.com/mmynk/spending-diary/internal/middleware"
)

// RouterConfig carries the cross-cutting pieces of the router.
type RouterConfig struct {
	JWTManager     *auth.JWTManager
	AllowedOrigins []string
	Metrics        *metrics.Metrics // optional; /metrics is only mounted when set
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Connect-Protocol-Version"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthHTTP(cfg.JWTManager))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.LookupUser)
			r.Get("/me", h.CurrentUser)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.ListExpenses)
			r.Post("/", h.CreateExpense)
			r.Delete("/", h.DeleteExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})

		r.Route("/friends", func(r chi.Router) {
			r.Get("/", h.ListFriends)
			r.Post("/", h.AddFriend)
			r.Get("/summary", h.BalanceSummary)
			r.Post("/settle", h.Settle)
		})
	})

	return r
}

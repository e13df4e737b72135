package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/spending-diary/internal/api"
	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/config"
	"github.com/mmynk/spending-diary/internal/events"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/metrics"
	"github.com/mmynk/spending-diary/internal/middleware"
	"github.com/mmynk/spending-diary/internal/rpc"
	"github.com/mmynk/spending-diary/internal/service"
	"github.com/mmynk/spending-diary/internal/storage/sqlite"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and Connect API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	publisher, err := newPublisher(cfg.AMQP)
	if err != nil {
		return err
	}
	defer publisher.Close()

	m := metrics.New()
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	deps := service.Deps{
		Store: store,
		Ledger: ledger.NewMutator(store, ledger.Options{
			MaxRetries: cfg.Ledger.MaxRetries,
			OpTimeout:  cfg.Ledger.OpTimeout,
			Metrics:    m,
		}),
		Publisher: publisher,
		Metrics:   m,
		Logger:    slog.Default(),
	}
	users := service.NewUserService(auth.NewPasswordAuthenticator(store), jwtManager, store, slog.Default())
	expenses := service.NewExpenseService(deps, cfg.RemainderPolicy())
	friends := service.NewFriendService(deps)

	router := api.NewRouter(api.NewHandler(users, expenses, friends, store), api.RouterConfig{
		JWTManager:     jwtManager,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
	})

	// Register Connect service. RequireAuth runs first so the logging
	// interceptor sees the caller.
	rpcPath, rpcHandler := rpc.NewLedgerServiceHandler(
		rpc.NewLedgerServer(expenses, friends),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(m)),
	)
	router.Mount(rpcPath, rpcHandler)

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        h2c.NewHandler(router, &http2.Server{}),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 16,
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		slog.Info("Server starting",
			"address", server.Addr,
			"url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
			"remainder_policy", cfg.RemainderPolicy())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down server", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Server stopped")
	return nil
}

// newPublisher connects to the broker when one is configured.
func newPublisher(cfg config.AMQPConfig) (events.Publisher, error) {
	if cfg.URL == "" {
		slog.Info("Event publishing disabled")
		return events.NopPublisher{}, nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	slog.Info("Publishing events", "exchange", cfg.Exchange)
	return publisher, nil
}

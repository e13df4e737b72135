package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage"
)

// Session is a user together with a freshly issued token.
type Session struct {
	User  *models.User
	Token string
}

// UserService handles signup, login and profile lookups.
type UserService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	logger        *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
	}
}

// Register creates a new user account and signs them in.
func (s *UserService) Register(ctx context.Context, name, phone, password string) (*Session, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	s.logger.Info("Register request", "phone", phone)

	if name == "" {
		return nil, ledger.NewValidationError("name", "name is required")
	}
	if phone == "" {
		return nil, ledger.NewValidationError("phone", "phone is required")
	}

	user, err := s.authenticator.Register(ctx, name, phone, password)
	if err != nil {
		if errors.Is(err, auth.ErrPhoneExists) || errors.Is(err, auth.ErrWeakPassword) {
			s.logger.Warn("Registration rejected", "phone", phone, "error", err)
		} else {
			s.logger.Error("Registration failed", "phone", phone, "error", err)
		}
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered successfully", "user_id", user.ID)
	return session, nil
}

// Login authenticates a user by phone and password.
func (s *UserService) Login(ctx context.Context, phone, password string) (*Session, error) {
	phone = strings.TrimSpace(phone)
	s.logger.Info("Login request", "phone", phone)

	if phone == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	user, err := s.authenticator.Authenticate(ctx, phone, password)
	if err != nil {
		s.logger.Warn("Login failed", "phone", phone, "error", err)
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return session, nil
}

// CurrentUser returns the authenticated user's full profile.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, auth.ErrMissingToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, userNotFound(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}

// LookupByPhone finds another user by phone, e.g. before adding them as a friend.
func (s *UserService) LookupByPhone(ctx context.Context, phone string) (models.PublicUser, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return models.PublicUser{}, ledger.NewValidationError("phone", "phone is required")
	}

	user, err := s.users.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PublicUser{}, &ledger.NotFoundError{Kind: "user", ID: phone}
	}
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("failed to look up user: %w", err)
	}
	return user.Public(), nil
}

func (s *UserService) issue(user *models.User) (*Session, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/calculator"
	"github.com/mmynk/spending-diary/internal/events"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/models"
	"github.com/mmynk/spending-diary/internal/storage"
)

// FriendService manages friend links and the balances between friends.
type FriendService struct {
	Deps
}

// NewFriendService creates a FriendService.
func NewFriendService(deps Deps) *FriendService {
	return &FriendService{Deps: deps.withDefaults()}
}

// AddFriend links userID and friendID in both directions. Adding an existing
// friend again is a no-op.
func (s *FriendService) AddFriend(ctx context.Context, userID, friendID string) (models.PublicUser, error) {
	if userID == "" {
		return models.PublicUser{}, auth.ErrMissingToken
	}
	if friendID == "" {
		return models.PublicUser{}, ledger.NewValidationError("friendId", "friend id is required")
	}
	if friendID == userID {
		return models.PublicUser{}, ledger.NewValidationError("friendId", "cannot add yourself as a friend")
	}

	users, err := s.requireUsers(ctx, userID, friendID)
	if err != nil {
		return models.PublicUser{}, err
	}

	err = s.Ledger.Atomically(ctx, "add_friend", func(tx storage.Tx) error {
		return s.Ledger.Link(ctx, tx, userID, friendID)
	})
	if err != nil {
		s.Logger.Error("AddFriend failed", "user_id", userID, "friend_id", friendID, "error", err)
		return models.PublicUser{}, err
	}

	s.Logger.Info("Friend added", "user_id", userID, "friend_id", friendID)
	return users[friendID].Public(), nil
}

// AddFriendByPhone resolves phone to a user and adds them as a friend.
func (s *FriendService) AddFriendByPhone(ctx context.Context, userID, phone string) (models.PublicUser, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return models.PublicUser{}, ledger.NewValidationError("phone", "phone is required")
	}

	friend, err := s.Store.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PublicUser{}, &ledger.NotFoundError{Kind: "user", ID: phone}
	}
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("failed to look up friend: %w", err)
	}

	return s.AddFriend(ctx, userID, friend.ID)
}

// GetFriendsWithBalances lists the user's friends, ordered by name, with the
// balance from the user's perspective: positive means the friend owes the user.
func (s *FriendService) GetFriendsWithBalances(ctx context.Context, userID string) ([]models.FriendBalance, error) {
	if userID == "" {
		return nil, auth.ErrMissingToken
	}

	friends, err := s.Store.ListFriendBalances(ctx, userID)
	if err != nil {
		s.Logger.Error("GetFriendsWithBalances failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return friends, nil
}

// GetBalanceSummary totals what the user is owed and owes across all friends.
func (s *FriendService) GetBalanceSummary(ctx context.Context, userID string) (calculator.BalanceSummary, error) {
	friends, err := s.GetFriendsWithBalances(ctx, userID)
	if err != nil {
		return calculator.BalanceSummary{}, err
	}
	return calculator.SummarizeBalances(friends), nil
}

// SettleBalance zeroes the balance between userID and friendID in both
// directions. Settling twice is harmless.
func (s *FriendService) SettleBalance(ctx context.Context, userID, friendID string) error {
	if userID == "" {
		return auth.ErrMissingToken
	}
	if friendID == "" {
		return ledger.NewValidationError("friendId", "friend id is required")
	}

	if _, err := s.requireUsers(ctx, userID, friendID); err != nil {
		return err
	}

	err := s.Ledger.Atomically(ctx, "settle", func(tx storage.Tx) error {
		return s.Ledger.Settle(ctx, tx, userID, friendID)
	})
	if err != nil {
		if ledger.IsClientError(err) {
			s.Logger.Warn("SettleBalance rejected", "user_id", userID, "friend_id", friendID, "error", err)
		} else {
			s.Logger.Error("SettleBalance failed", "user_id", userID, "friend_id", friendID, "error", err)
		}
		return err
	}

	s.Metrics.IncSettlement()
	s.Logger.Info("Balance settled", "user_id", userID, "friend_id", friendID)

	s.publish(ctx, events.Event{
		Type:            events.BalanceSettled,
		ActorID:         userID,
		CounterpartyIDs: []string{friendID},
	})

	return nil
}

// requireUsers loads every id and fails with a NotFoundError for the first
// one that does not exist.
func (s *FriendService) requireUsers(ctx context.Context, ids ...string) (map[string]*models.User, error) {
	users, err := s.Store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return nil, userNotFound(id)
		}
	}
	return users, nil
}

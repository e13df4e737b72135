package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Name is the display name of the user.
	Name string

	// Phone is the user's phone number (unique).
	// Used for login and for finding friends.
	Phone string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// IsPremium marks a paying subscriber. Set by payment confirmation,
	// which lives outside this service.
	IsPremium bool

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last profile change.
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(name, phone, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Name:         name,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PublicUser is the subset of User that is safe to show to other users.
type PublicUser struct {
	ID    string
	Name  string
	Phone string
}

// Public strips credentials and account flags from the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Phone: u.Phone}
}

package auth

import (
	"context"

	"github.com/mmynk/spending-diary/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// Only password login exists today; OTP login would be a second implementation.
type Authenticator interface {
	// Register creates a new user account identified by phone.
	// Returns ErrPhoneExists if the phone is already registered.
	Register(ctx context.Context, name, phone, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	// Any mismatch, including an unknown phone, is ErrInvalidCredentials.
	Authenticate(ctx context.Context, phone, credential string) (*models.User, error)

	// ValidateCredential checks the credential before anything is stored.
	ValidateCredential(credential string) error
}

package ledger

import (
	"errors"
	"fmt"

	"github.com/mmynk/spending-diary/internal/storage"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every client input error.
	ErrValidation = errors.New("validation failed")

	// ErrNotFriends is returned when a split includes someone who is not a
	// friend of the creator.
	ErrNotFriends = errors.New("participant is not a friend of the creator")

	// ErrForbidden is returned when the acting user may not perform the operation,
	// e.g. deleting an expense they did not create.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced user or expense does not exist.
	ErrNotFound = storage.ErrNotFound

	// ErrConflict is returned when a ledger update lost too many races or ran
	// out of time. The caller may retry the whole request.
	ErrConflict = errors.New("conflicting update, please retry")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input. Message is safe to show to the
// client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFriendsError names the participant that has no friend link with the creator.
type NotFriendsError struct {
	CreatorID     string
	ParticipantID string
}

func (e *NotFriendsError) Error() string {
	return "you can only split expenses with your friends"
}

// Unwrap reports both sentinels so callers can match either.
func (e *NotFriendsError) Unwrap() []error {
	return []error{ErrNotFriends, ErrValidation}
}

// ForbiddenError describes an action the user is not allowed to take.
type ForbiddenError struct {
	UserID string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// NotFoundError describes a missing resource.
type NotFoundError struct {
	Kind string // "user" or "expense"
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError reports a unit of work that was abandoned.
type ConflictError struct {
	Op       string
	Attempts int
	TimedOut bool
	Err      error
}

func (e *ConflictError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out after %d attempts, please retry: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s conflicted after %d attempts, please retry: %v", e.Op, e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, storage.ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

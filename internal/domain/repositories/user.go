package repositories

import (
	"context"

	"lexgate/internal/domain/models"
)

// UserRepository defines data access for the user record slice the pipeline
// needs: identity, credit balance and general context.
type UserRepository interface {
	// GetByID retrieves a user. Returns domain.ErrNotFound if unknown.
	GetByID(ctx context.Context, userID string) (*models.User, error)

	// Debit atomically decrements the user's credit balance by credits and
	// returns the new balance. The check and decrement are a single
	// read-modify-write: the balance never goes negative.
	// Returns domain.ErrInsufficientBalance when the balance is short.
	Debit(ctx context.Context, userID string, credits int) (int, error)

	// Credit tops up a user's balance (operator path).
	Credit(ctx context.Context, userID string, credits int) error
}

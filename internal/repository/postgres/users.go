package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
)

// UserRepository reads user records and moves credit balances.
type UserRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewUserRepository(config RepositoryConfig) *UserRepository {
	return &UserRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetByID fetches one user record.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, display_name, credit_balance, credits_assigned, general_context
		FROM %s
		WHERE id = $1`, r.tables.Users)

	var user models.User
	var displayName, generalContext *string
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID, &displayName, &user.CreditBalance, &user.CreditsAssigned, &generalContext,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Message: "user not found: " + userID}
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if displayName != nil {
		user.DisplayName = *displayName
	}
	if generalContext != nil {
		user.GeneralContext = *generalContext
	}
	return &user, nil
}

// Debit atomically subtracts credits from the user's balance and returns the
// new balance. The conditional update guarantees the balance never goes
// negative under concurrent turns; a zero-row result means the balance was
// short and nothing was charged.
func (r *UserRepository) Debit(ctx context.Context, userID string, credits int) (int, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET credit_balance = credit_balance - $1
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance`, r.tables.Users)

	var balance int
	err := r.pool.QueryRow(ctx, query, credits, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("debit user %s: %w", userID, err)
	}

	r.logger.Debug("credits debited", "user_id", userID, "credits", credits, "balance", balance)
	return balance, nil
}

// Credit adds credits back to the user's balance.
func (r *UserRepository) Credit(ctx context.Context, userID string, credits int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET credit_balance = credit_balance + $1
		WHERE id = $2`, r.tables.Users)

	tag, err := r.pool.Exec(ctx, query, credits, userID)
	if err != nil {
		return fmt.Errorf("credit user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: "user not found: " + userID}
	}
	return nil
}

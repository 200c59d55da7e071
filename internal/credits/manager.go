// Package credits converts token usage into credit debits against the user
// store, priced by the process-wide pricing registry.
package credits

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"lexgate/internal/config"
	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
	"lexgate/internal/domain/repositories"
)

// PrecheckFloor is the minimum balance required to start a turn.
const PrecheckFloor = 1

// Manager prices turns and debits user balances.
type Manager struct {
	users   repositories.UserRepository
	pricing *config.PricingRegistry
	logger  *slog.Logger
}

func NewManager(users repositories.UserRepository, pricing *config.PricingRegistry, logger *slog.Logger) *Manager {
	return &Manager{users: users, pricing: pricing, logger: logger}
}

// Precheck verifies the user can start a turn at all. Tenants with credits
// disabled always pass.
func (m *Manager) Precheck(ctx context.Context, userID string, enabled bool) error {
	if !enabled {
		return nil
	}
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.CreditBalance < PrecheckFloor {
		return domain.ErrInsufficientCredits()
	}
	return nil
}

// Cost returns the USD cost of a turn under the model's per-million token
// prices.
func (m *Manager) Cost(model string, usage *models.TurnUsage) float64 {
	if usage == nil {
		return 0
	}
	p := m.pricing.ModelPricing(model)
	return float64(usage.InputTokens)/1e6*p.InputPerMillion +
		float64(usage.OutputTokens)/1e6*p.OutputPerMillion
}

// Credits converts a USD cost into whole credits. Any turn that reached the
// provider costs at least one credit.
func (m *Manager) Credits(costUSD float64) int {
	perCredit := m.pricing.USDPerCredit()
	if perCredit <= 0 || costUSD <= 0 {
		return 1
	}
	credits := int(math.Ceil(costUSD / perCredit))
	if credits < 1 {
		credits = 1
	}
	return credits
}

// Debit charges the user for a completed turn and returns the debit record.
// With credits disabled the turn is priced but not charged.
func (m *Manager) Debit(ctx context.Context, userID, model string, usage *models.TurnUsage, enabled bool) (*models.CreditDebit, error) {
	cost := m.Cost(model, usage)
	debit := &models.CreditDebit{
		Credits: m.Credits(cost),
		CostUSD: cost,
	}
	if !enabled {
		debit.Credits = 0
		return debit, nil
	}

	balance, err := m.users.Debit(ctx, userID, debit.Credits)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			// The turn already ran; charge what exists rather than refuse
			// retroactively, and flag the record for reconciliation.
			m.logger.Warn("balance short at debit time", "user_id", userID, "credits", debit.Credits)
			debit.Flagged = true
			return debit, nil
		}
		return nil, err
	}

	m.logger.Debug("turn debited",
		"user_id", userID, "model", model,
		"credits", debit.Credits, "cost_usd", cost, "balance", balance)
	return debit, nil
}

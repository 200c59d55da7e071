// Package cache memoizes completed turn results keyed by tenant model
// configuration, normalized question and user.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"lexgate/internal/domain/models"
)

// Cache stores finished turn results. Implementations must treat lookups as
// best-effort: a miss and a backend failure look the same to callers.
type Cache interface {
	Get(ctx context.Context, key string) (*models.TurnResult, bool)
	Set(ctx context.Context, key string, result *models.TurnResult) error
	Close() error
}

// KeyParams identifies the cacheable shape of one turn: the per-tenant model
// configuration plus the asking user. Two tenants with identical model setups
// share entries; users never do.
type KeyParams struct {
	Model            string
	APIMode          string
	RetrievalEnabled bool
	WebSearchEnabled bool
	UserID           string
}

// Key derives the cache key for a question under the given parameters.
func Key(p KeyParams, question string) string {
	cfg := fmt.Sprintf("%s|%s|%t|%t", p.Model, p.APIMode, p.RetrievalEnabled, p.WebSearchEnabled)
	cfgSum := sha256.Sum256([]byte(cfg))
	qSum := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return fmt.Sprintf("resp:%x:%x:%s", cfgSum[:4], qSum[:8], p.UserID)
}

// NormalizeQuestion collapses superficial variation so trivially equivalent
// questions share a cache entry.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

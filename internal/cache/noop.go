package cache

import (
	"context"

	"lexgate/internal/domain/models"
)

// NoopCache satisfies Cache when no Redis is configured; every lookup misses.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(context.Context, string) (*models.TurnResult, bool) { return nil, false }

func (NoopCache) Set(context.Context, string, *models.TurnResult) error { return nil }

func (NoopCache) Close() error { return nil }

package cache

import (
	"context"
	"time"

	"sonara/backend/internal/domain"
)

// PriceCache caches resolved daily metal rates so price lookups on the hot
// sale path do not hit the database for every request.
type PriceCache interface {
	Get(ctx context.Context, key string) (*domain.DailyPrice, bool, error)
	Set(ctx context.Context, key string, value *domain.DailyPrice, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopPriceCache struct{}

func (NoopPriceCache) Get(_ context.Context, _ string) (*domain.DailyPrice, bool, error) {
	return nil, false, nil
}

func (NoopPriceCache) Set(_ context.Context, _ string, _ *domain.DailyPrice, _ time.Duration) error {
	return nil
}

func (NoopPriceCache) Delete(_ context.Context, _ string) error {
	return nil
}

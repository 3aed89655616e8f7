package cache

import (
	"context"
	"time"

	"tokomas/backend/internal/domain"
)

// ProductCache holds recent results of the unfiltered catalog listing.
// Filtered queries always go to the store.
type ProductCache interface {
	Get(ctx context.Context) ([]domain.Product, bool, error)
	Set(ctx context.Context, products []domain.Product, ttl time.Duration) error
	// Invalidate drops the cached listing after any product or stock mutation.
	Invalidate(ctx context.Context) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Invalidate(_ context.Context) error {
	return nil
}

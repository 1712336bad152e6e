package cache

import (
	"context"
	"time"

	"eromshop/backend/internal/domain"
)

// DebtSummaryCache holds per-agent debt summaries. Summaries are
// invalidated whenever a transfer or payment changes the agent's
// ledger, so a cached value is at worst TTL-stale for reads that raced
// a write on another instance.
type DebtSummaryCache interface {
	Get(ctx context.Context, key string) (*domain.DebtSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.DebtSummary, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopDebtSummaryCache struct{}

func (NoopDebtSummaryCache) Get(_ context.Context, _ string) (*domain.DebtSummary, bool, error) {
	return nil, false, nil
}

func (NoopDebtSummaryCache) Set(_ context.Context, _ string, _ *domain.DebtSummary, _ time.Duration) error {
	return nil
}

func (NoopDebtSummaryCache) Delete(_ context.Context, _ string) error {
	return nil
}

package plan

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/plan/dto"
)

type UseCase interface {
	// CheckAndIncrement admits delta units of a metric or rejects with a
	// LimitExceededError. The counter only moves when the check passes.
	CheckAndIncrement(ctx context.Context, restaurantID, metric string, delta int) error

	// Release gives back delta units, flooring at zero.
	Release(ctx context.Context, restaurantID, metric string, delta int) error

	CheckFeature(ctx context.Context, restaurantID, feature string) error

	GetUsage(ctx context.Context, restaurantID string) (*dto.UsageReport, error)

	ResetCounters(ctx context.Context, period string) (int64, error)
}

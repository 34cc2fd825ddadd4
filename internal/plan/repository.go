package plan

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Repository interface {
	// FindActiveSubscription returns the restaurant's active subscription
	// with its plan features, or nil when none exists.
	FindActiveSubscription(ctx context.Context, restaurantID string) (*model.Subscription, error)

	// FindPlanLimit returns the plan's ceiling for one metric, or nil when
	// the plan does not cap it.
	FindPlanLimit(ctx context.Context, planID, metric string) (*model.PlanLimit, error)

	// FindCounter returns the counter for one metric, or nil when the
	// restaurant has never touched it.
	FindCounter(ctx context.Context, restaurantID, metric string) (*model.UsageCounter, error)

	FindCounters(ctx context.Context, restaurantID string) ([]model.UsageCounter, error)

	// SaveCounter upserts a counter row keyed on (restaurant_id, metric).
	SaveCounter(ctx context.Context, counter *model.UsageCounter) error

	// ResetCountersByPeriod zeroes every counter with the given reset
	// period. Invoked by the scheduler at day and month boundaries.
	ResetCountersByPeriod(ctx context.Context, period string) (int64, error)
}

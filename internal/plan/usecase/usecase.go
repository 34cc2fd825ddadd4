package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/pkg/clock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/plan"
	"github.com/fekuna/omnipos-order-service/internal/plan/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockTTL      = 5 * time.Second
	lockAttempts = 3
	lockBackoff  = 100 * time.Millisecond
)

type planUseCase struct {
	repo   plan.Repository
	locker lock.Locker
	clock  clock.Clock
	logger logger.ZapLogger
}

func NewPlanUseCase(repo plan.Repository, locker lock.Locker, clk clock.Clock, log logger.ZapLogger) plan.UseCase {
	return &planUseCase{repo: repo, locker: locker, clock: clk, logger: log}
}

func usageLockKey(restaurantID, metric string) string {
	return fmt.Sprintf("lock:usage:%s:%s", restaurantID, metric)
}

func (uc *planUseCase) withCounterLock(ctx context.Context, restaurantID, metric string, fn func(ctx context.Context) error) error {
	key := usageLockKey(restaurantID, metric)
	token := uuid.New().String()

	acquired := false
	for attempt := 0; attempt < lockAttempts; attempt++ {
		got, err := uc.locker.AcquireLock(ctx, key, token, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire usage lock", zap.String("key", key), zap.Error(err))
		}
		if got {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	if !acquired {
		return apperr.NewConflict("usage counter %s is busy, try again", metric)
	}
	defer func() {
		if err := uc.locker.ReleaseLock(ctx, key, token); err != nil {
			uc.logger.Error("failed to release usage lock", zap.String("key", key), zap.Error(err))
		}
	}()

	return fn(ctx)
}

func (uc *planUseCase) CheckAndIncrement(ctx context.Context, restaurantID, metric string, delta int) error {
	if delta <= 0 {
		return apperr.NewValidation("delta must be positive, got %d", delta)
	}

	return uc.withCounterLock(ctx, restaurantID, metric, func(ctx context.Context) error {
		sub, err := uc.repo.FindActiveSubscription(ctx, restaurantID)
		if err != nil {
			return err
		}
		if sub == nil {
			return &apperr.LimitExceededError{Code: apperr.CodeInsufficientPlan, Resource: metric}
		}

		counter, err := uc.loadOrSeedCounter(ctx, sub, restaurantID, metric)
		if err != nil {
			return err
		}

		if counter.Limit > 0 && counter.Current+delta > counter.Limit {
			// Rejected before any mutation, so the stored count is intact.
			code := apperr.CodeLimitExceeded
			if counter.Period == model.PeriodNever {
				code = apperr.CodeResourceLimitExceeded
			}
			return &apperr.LimitExceededError{
				Code:     code,
				Resource: metric,
				Plan:     counter.PlanName,
				Limit:    counter.Limit,
				Current:  counter.Current,
			}
		}

		now := uc.clock.Now()
		counter.Current += delta
		counter.MeasuredAt = now
		counter.UpdatedAt = now
		return uc.repo.SaveCounter(ctx, counter)
	})
}

func (uc *planUseCase) Release(ctx context.Context, restaurantID, metric string, delta int) error {
	if delta <= 0 {
		return apperr.NewValidation("delta must be positive, got %d", delta)
	}

	return uc.withCounterLock(ctx, restaurantID, metric, func(ctx context.Context) error {
		counter, err := uc.repo.FindCounter(ctx, restaurantID, metric)
		if err != nil {
			return err
		}
		if counter == nil {
			return nil
		}

		counter.Current -= delta
		if counter.Current < 0 {
			counter.Current = 0
		}
		now := uc.clock.Now()
		counter.MeasuredAt = now
		counter.UpdatedAt = now
		return uc.repo.SaveCounter(ctx, counter)
	})
}

func (uc *planUseCase) CheckFeature(ctx context.Context, restaurantID, feature string) error {
	sub, err := uc.repo.FindActiveSubscription(ctx, restaurantID)
	if err != nil {
		return err
	}
	if sub == nil {
		return &apperr.LimitExceededError{Code: apperr.CodeInsufficientPlan, Resource: feature}
	}
	if !sub.Features[feature] {
		return &apperr.LimitExceededError{
			Code:     apperr.CodeFeatureNotAvailable,
			Resource: feature,
			Plan:     sub.PlanName,
		}
	}
	return nil
}

func (uc *planUseCase) GetUsage(ctx context.Context, restaurantID string) (*dto.UsageReport, error) {
	sub, err := uc.repo.FindActiveSubscription(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, &apperr.LimitExceededError{Code: apperr.CodeInsufficientPlan, Resource: "usage"}
	}

	counters, err := uc.repo.FindCounters(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	report := &dto.UsageReport{
		RestaurantID: restaurantID,
		PlanName:     sub.PlanName,
		Metrics:      make([]dto.MetricUsage, 0, len(counters)),
		GeneratedAt:  uc.clock.Now(),
	}
	for _, c := range counters {
		usage := dto.MetricUsage{
			Metric:    c.Metric,
			Current:   c.Current,
			Limit:     c.Limit,
			Period:    c.Period,
			Unlimited: c.Limit <= 0,
		}
		if c.Limit > 0 {
			usage.UsedPct = float64(c.Current) / float64(c.Limit) * 100
		}
		report.Metrics = append(report.Metrics, usage)
	}
	return report, nil
}

func (uc *planUseCase) ResetCounters(ctx context.Context, period string) (int64, error) {
	if period != model.PeriodDaily && period != model.PeriodMonthly {
		return 0, apperr.NewValidation("unknown reset period %q", period)
	}

	affected, err := uc.repo.ResetCountersByPeriod(ctx, period)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("usage counters reset",
		zap.String("period", period),
		zap.Int64("counters", affected),
	)
	return affected, nil
}

// loadOrSeedCounter returns the stored counter, refreshing its denormalized
// plan fields, or seeds a zero counter from the plan's ceiling on first use.
func (uc *planUseCase) loadOrSeedCounter(ctx context.Context, sub *model.Subscription, restaurantID, metric string) (*model.UsageCounter, error) {
	counter, err := uc.repo.FindCounter(ctx, restaurantID, metric)
	if err != nil {
		return nil, err
	}

	limit, err := uc.repo.FindPlanLimit(ctx, sub.PlanID, metric)
	if err != nil {
		return nil, err
	}

	planLimit := 0
	period := model.PeriodNever
	if limit != nil {
		planLimit = limit.Limit
		period = limit.Period
	}

	if counter == nil {
		now := uc.clock.Now()
		return &model.UsageCounter{
			ID:           uuid.New().String(),
			RestaurantID: restaurantID,
			Metric:       metric,
			Current:      0,
			Limit:        planLimit,
			Period:       period,
			PlanName:     sub.PlanName,
			MeasuredAt:   now,
			UpdatedAt:    now,
		}, nil
	}

	// Plan changes take effect on the next check.
	counter.Limit = planLimit
	counter.Period = period
	counter.PlanName = sub.PlanName
	return counter, nil
}

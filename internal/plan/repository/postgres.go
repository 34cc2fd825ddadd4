package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

type subscriptionRow struct {
	model.Subscription
	FeaturesRaw json.RawMessage `db:"features"`
}

func (r *PGRepository) FindActiveSubscription(ctx context.Context, restaurantID string) (*model.Subscription, error) {
	var row subscriptionRow
	query := `
        SELECT s.id, s.restaurant_id, s.plan_id, s.status, s.created_at, s.updated_at,
               p.name AS plan_name, p.features
        FROM subscriptions s
        JOIN plans p ON p.id = s.plan_id
        WHERE s.restaurant_id = $1 AND s.status = 'active'
        ORDER BY s.created_at DESC
        LIMIT 1
    `
	if err := r.DB.GetContext(ctx, &row, query, restaurantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	sub := row.Subscription
	if len(row.FeaturesRaw) > 0 {
		if err := json.Unmarshal(row.FeaturesRaw, &sub.Features); err != nil {
			return nil, fmt.Errorf("failed to decode plan features: %w", err)
		}
	}
	return &sub, nil
}

func (r *PGRepository) FindPlanLimit(ctx context.Context, planID, metric string) (*model.PlanLimit, error) {
	var limit model.PlanLimit
	err := r.DB.GetContext(ctx, &limit,
		`SELECT * FROM plan_limits WHERE plan_id = $1 AND metric = $2 LIMIT 1`,
		planID, metric,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &limit, nil
}

func (r *PGRepository) FindCounter(ctx context.Context, restaurantID, metric string) (*model.UsageCounter, error) {
	var counter model.UsageCounter
	err := r.DB.GetContext(ctx, &counter,
		`SELECT * FROM usage_counters WHERE restaurant_id = $1 AND metric = $2 LIMIT 1`,
		restaurantID, metric,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

func (r *PGRepository) FindCounters(ctx context.Context, restaurantID string) ([]model.UsageCounter, error) {
	var counters []model.UsageCounter
	err := r.DB.SelectContext(ctx, &counters,
		`SELECT * FROM usage_counters WHERE restaurant_id = $1 ORDER BY metric`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	return counters, nil
}

func (r *PGRepository) SaveCounter(ctx context.Context, counter *model.UsageCounter) error {
	query := `
        INSERT INTO usage_counters (id, restaurant_id, metric, current_usage, plan_limit, period, plan_name, measured_at, updated_at)
        VALUES (:id, :restaurant_id, :metric, :current_usage, :plan_limit, :period, :plan_name, :measured_at, :updated_at)
        ON CONFLICT (restaurant_id, metric)
        DO UPDATE SET
            current_usage = EXCLUDED.current_usage,
            plan_limit = EXCLUDED.plan_limit,
            period = EXCLUDED.period,
            plan_name = EXCLUDED.plan_name,
            measured_at = EXCLUDED.measured_at,
            updated_at = EXCLUDED.updated_at
    `
	if _, err := r.DB.NamedExecContext(ctx, query, counter); err != nil {
		return fmt.Errorf("failed to save usage counter: %w", err)
	}
	return nil
}

func (r *PGRepository) ResetCountersByPeriod(ctx context.Context, period string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE usage_counters SET current_usage = 0, measured_at = NOW(), updated_at = NOW() WHERE period = $1`,
		period,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset usage counters: %w", err)
	}
	return res.RowsAffected()
}

package model

import "time"

// Usage metrics tracked against plan ceilings.
const (
	MetricTablesOpen   = "tables_open"
	MetricItemsPerSale = "items_per_sale"
	MetricSalesPerDay  = "sales_per_day"
)

// Counter reset periods.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
	PeriodNever   = "never"
)

type Subscription struct {
	BaseModel
	RestaurantID string          `db:"restaurant_id" json:"restaurant_id"`
	PlanID       string          `db:"plan_id" json:"plan_id"`
	PlanName     string          `db:"plan_name" json:"plan_name"`
	Status       string          `db:"status" json:"status"`
	Features     map[string]bool `db:"-" json:"features"`
}

// PlanLimit is a plan's ceiling for one metric. A Limit <= 0 means the
// metric is unlimited on that plan.
type PlanLimit struct {
	PlanID string `db:"plan_id" json:"plan_id"`
	Metric string `db:"metric" json:"metric"`
	Limit  int    `db:"plan_limit" json:"plan_limit"`
	Period string `db:"period" json:"period"`
}

// UsageCounter tracks one metric's consumption against the plan ceiling.
// Limit <= 0 means the metric is unlimited on this plan.
type UsageCounter struct {
	ID           string    `db:"id" json:"id"`
	RestaurantID string    `db:"restaurant_id" json:"restaurant_id"`
	Metric       string    `db:"metric" json:"metric"`
	Current      int       `db:"current_usage" json:"current_usage"`
	Limit        int       `db:"plan_limit" json:"plan_limit"`
	Period       string    `db:"period" json:"period"`
	PlanName     string    `db:"plan_name" json:"plan_name"`
	MeasuredAt   time.Time `db:"measured_at" json:"measured_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

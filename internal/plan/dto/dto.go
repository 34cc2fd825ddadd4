package dto

import "time"

// UsageReport consolidates every tracked metric for one restaurant.
type UsageReport struct {
	RestaurantID string        `json:"restaurant_id"`
	PlanName     string        `json:"plan_name"`
	Metrics      []MetricUsage `json:"metrics"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

type MetricUsage struct {
	Metric    string  `json:"metric"`
	Current   int     `json:"current"`
	Limit     int     `json:"limit"`
	Period    string  `json:"period"`
	Unlimited bool    `json:"unlimited"`
	UsedPct   float64 `json:"used_pct"`
}

package model

import "time"

type PromotionKind string

const (
	PromotionPercentage  PromotionKind = "percentage"
	PromotionFixedAmount PromotionKind = "fixed_amount"
	PromotionFixedPrice  PromotionKind = "fixed_price"
)

type PromotionStatus string

const (
	PromotionPending PromotionStatus = "pending"
	PromotionActive  PromotionStatus = "active"
	PromotionExpired PromotionStatus = "expired"
)

type Promotion struct {
	BaseModel
	RestaurantID string        `db:"restaurant_id" json:"restaurant_id"`
	ProductID    string        `db:"product_id" json:"product_id"`
	Name         string        `db:"name" json:"name"`
	Kind         PromotionKind `db:"kind" json:"kind"`
	Value        float64       `db:"value" json:"value"`
	StartsAt     time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time     `db:"ends_at" json:"ends_at"`
	IsActive     bool          `db:"is_active" json:"is_active"`
	StoreIDs     []string      `db:"-" json:"store_ids,omitempty"` // Optional store assignment, joined data
}

// StatusAt is the single place promotion status is derived from the validity
// window. Status is never stored.
func (p *Promotion) StatusAt(at time.Time) PromotionStatus {
	if at.Before(p.StartsAt) {
		return PromotionPending
	}
	if at.After(p.EndsAt) {
		return PromotionExpired
	}
	return PromotionActive
}

// AppliedPromotion is a value snapshot copied into a cart line. Later edits
// to the promotion do not change an already-billed line.
type AppliedPromotion struct {
	PromotionID    string        `db:"promotion_id" json:"promotion_id"`
	Name           string        `db:"name" json:"name"`
	Kind           PromotionKind `db:"kind" json:"kind"`
	Value          float64       `db:"value" json:"value"`
	OriginalPrice  float64       `db:"original_price" json:"original_price"`
	DiscountAmount float64       `db:"discount_amount" json:"discount_amount"`
	FinalPrice     float64       `db:"final_price" json:"final_price"`
}

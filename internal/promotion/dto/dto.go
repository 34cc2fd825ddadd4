package dto

import "github.com/fekuna/omnipos-order-service/internal/model"

type PromotionFilters struct {
	RestaurantID string
	ProductID    string
	IsActive     *bool
	Page         int
	PageSize     int
}

// EvaluationResult reports the outcome of evaluating a single product. When
// no promotion applies, Applied is nil and FinalPrice equals OriginalPrice.
type EvaluationResult struct {
	ProductID     string                  `json:"product_id"`
	OriginalPrice float64                 `json:"original_price"`
	FinalPrice    float64                 `json:"final_price"`
	Applied       *model.AppliedPromotion `json:"applied,omitempty"`
}

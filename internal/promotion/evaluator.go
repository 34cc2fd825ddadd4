package promotion

import (
	"math"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

// Evaluate picks the promotion to apply to one cart line. It is a pure
// function of its inputs: no clock, no store, no side effects.
//
// Candidates are filtered to those targeting productID whose derived status
// is active at the given time. When several remain, the one yielding the
// lowest final price wins; ties break on earliest start, then lowest ID, so
// the result is deterministic. Returns nil when nothing applies.
func Evaluate(productID string, originalPrice float64, candidates []model.Promotion, at time.Time) *model.AppliedPromotion {
	var best *model.AppliedPromotion
	var bestPromo *model.Promotion

	for i := range candidates {
		promo := &candidates[i]
		if promo.ProductID != productID || !promo.IsActive {
			continue
		}
		if promo.StatusAt(at) != model.PromotionActive {
			continue
		}

		applied := apply(promo, originalPrice)
		if applied == nil {
			continue
		}

		if best == nil || better(applied, promo, best, bestPromo) {
			best = applied
			bestPromo = promo
		}
	}

	return best
}

// apply computes the discount for a single promotion, or nil when the
// promotion cannot legally apply to this price.
func apply(promo *model.Promotion, originalPrice float64) *model.AppliedPromotion {
	var discount float64

	switch promo.Kind {
	case model.PromotionPercentage:
		discount = round2(originalPrice * promo.Value / 100)
		if discount > originalPrice {
			discount = originalPrice
		}
	case model.PromotionFixedAmount:
		discount = math.Min(promo.Value, originalPrice)
	case model.PromotionFixedPrice:
		// A fixed price above the original would be a negative discount;
		// such a promotion is invalid for this line.
		if promo.Value > originalPrice {
			return nil
		}
		discount = round2(originalPrice - promo.Value)
	default:
		return nil
	}

	final := round2(originalPrice - discount)
	if final < 0 {
		final = 0
		discount = originalPrice
	}

	return &model.AppliedPromotion{
		PromotionID:    promo.ID,
		Name:           promo.Name,
		Kind:           promo.Kind,
		Value:          promo.Value,
		OriginalPrice:  originalPrice,
		DiscountAmount: round2(discount),
		FinalPrice:     final,
	}
}

func better(a *model.AppliedPromotion, aPromo *model.Promotion, b *model.AppliedPromotion, bPromo *model.Promotion) bool {
	if a.FinalPrice != b.FinalPrice {
		return a.FinalPrice < b.FinalPrice
	}
	if !aPromo.StartsAt.Equal(bPromo.StartsAt) {
		return aPromo.StartsAt.Before(bPromo.StartsAt)
	}
	return aPromo.ID < bPromo.ID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

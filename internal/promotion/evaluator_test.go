package promotion

import (
	"testing"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func promo(id, productID string, kind model.PromotionKind, value float64, startsAt, endsAt time.Time) model.Promotion {
	return model.Promotion{
		BaseModel: model.BaseModel{ID: id},
		ProductID: productID,
		Name:      "promo-" + id,
		Kind:      kind,
		Value:     value,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		IsActive:  true,
	}
}

func TestEvaluate_PercentageWithinWindow(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 20, evalBase, evalBase.Add(time.Hour))

	applied := Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(30*time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, "p1", applied.PromotionID)
	assert.Equal(t, 2.00, applied.DiscountAmount)
	assert.Equal(t, 8.00, applied.FinalPrice)
}

func TestEvaluate_NothingAppliesAfterWindow(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 20, evalBase, evalBase.Add(time.Hour))

	applied := Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(2*time.Hour))

	assert.Nil(t, applied)
}

func TestEvaluate_PendingPromotionIgnored(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 20, evalBase.Add(time.Hour), evalBase.Add(2*time.Hour))

	assert.Nil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase))
}

func TestEvaluate_WindowBoundariesInclusive(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 10, evalBase, evalBase.Add(time.Hour))

	assert.NotNil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase))
	assert.NotNil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Hour)))
	assert.Nil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Hour+time.Second)))
}

func TestEvaluate_InactivePromotionIgnored(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 20, evalBase, evalBase.Add(time.Hour))
	p.IsActive = false

	assert.Nil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Minute)))
}

func TestEvaluate_OtherProductIgnored(t *testing.T) {
	p := promo("p1", "prod-2", model.PromotionPercentage, 20, evalBase, evalBase.Add(time.Hour))

	assert.Nil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Minute)))
}

func TestEvaluate_FixedAmount(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionFixedAmount, 3, evalBase, evalBase.Add(time.Hour))

	applied := Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, 3.00, applied.DiscountAmount)
	assert.Equal(t, 7.00, applied.FinalPrice)
}

func TestEvaluate_FixedAmountClampedAtZero(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionFixedAmount, 15, evalBase, evalBase.Add(time.Hour))

	applied := Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, 10.00, applied.DiscountAmount)
	assert.Equal(t, 0.00, applied.FinalPrice)
}

func TestEvaluate_FixedPrice(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionFixedPrice, 6.50, evalBase, evalBase.Add(time.Hour))

	applied := Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, 3.50, applied.DiscountAmount)
	assert.Equal(t, 6.50, applied.FinalPrice)
}

func TestEvaluate_FixedPriceAboveOriginalRejected(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionFixedPrice, 12.00, evalBase, evalBase.Add(time.Hour))

	assert.Nil(t, Evaluate("prod-1", 10.00, []model.Promotion{p}, evalBase.Add(time.Minute)))
}

func TestEvaluate_BestDiscountWins(t *testing.T) {
	window := evalBase.Add(time.Hour)
	candidates := []model.Promotion{
		promo("p1", "prod-1", model.PromotionPercentage, 20, evalBase, window),
		promo("p2", "prod-1", model.PromotionFixedAmount, 3, evalBase, window),
	}

	applied := Evaluate("prod-1", 10.00, candidates, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, "p2", applied.PromotionID)
	assert.Equal(t, 7.00, applied.FinalPrice)
}

func TestEvaluate_TieBreaksOnEarliestStart(t *testing.T) {
	window := evalBase.Add(time.Hour)
	early := promo("p2", "prod-1", model.PromotionFixedAmount, 2, evalBase.Add(-time.Hour), window)
	late := promo("p1", "prod-1", model.PromotionPercentage, 20, evalBase, window)

	applied := Evaluate("prod-1", 10.00, []model.Promotion{late, early}, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, "p2", applied.PromotionID)
}

func TestEvaluate_TieBreaksOnLowestID(t *testing.T) {
	window := evalBase.Add(time.Hour)
	a := promo("aaa", "prod-1", model.PromotionFixedAmount, 2, evalBase, window)
	b := promo("bbb", "prod-1", model.PromotionPercentage, 20, evalBase, window)

	applied := Evaluate("prod-1", 10.00, []model.Promotion{b, a}, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, "aaa", applied.PromotionID)
}

func TestEvaluate_RoundsToCents(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 15, evalBase, evalBase.Add(time.Hour))

	applied := Evaluate("prod-1", 9.99, []model.Promotion{p}, evalBase.Add(time.Minute))

	require.NotNil(t, applied)
	assert.Equal(t, 1.50, applied.DiscountAmount)
	assert.Equal(t, 8.49, applied.FinalPrice)
}

func TestEvaluate_NoCandidates(t *testing.T) {
	assert.Nil(t, Evaluate("prod-1", 10.00, nil, evalBase))
}

func TestStatusAt_DerivedFromWindow(t *testing.T) {
	p := promo("p1", "prod-1", model.PromotionPercentage, 10, evalBase, evalBase.Add(time.Hour))

	assert.Equal(t, model.PromotionPending, p.StatusAt(evalBase.Add(-time.Minute)))
	assert.Equal(t, model.PromotionActive, p.StatusAt(evalBase))
	assert.Equal(t, model.PromotionActive, p.StatusAt(evalBase.Add(30*time.Minute)))
	assert.Equal(t, model.PromotionExpired, p.StatusAt(evalBase.Add(2*time.Hour)))
}

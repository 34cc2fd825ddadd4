package promotion

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/promotion/dto"
)

type UseCase interface {
	CreatePromotion(ctx context.Context, input *dto.CreatePromotionInput) (*model.Promotion, error)
	GetPromotion(ctx context.Context, id string) (*model.Promotion, error)
	ListPromotions(ctx context.Context, filters *dto.PromotionFilters) ([]model.Promotion, int, error)
	UpdatePromotion(ctx context.Context, input *dto.UpdatePromotionInput) (*model.Promotion, error)
	DeactivatePromotion(ctx context.Context, id, restaurantID string) error

	// ActiveForProduct returns the cached candidate set for one product.
	ActiveForProduct(ctx context.Context, restaurantID, productID string) ([]model.Promotion, error)

	// EvaluateProduct runs the evaluator against the product's current
	// catalog price at the injected clock's now.
	EvaluateProduct(ctx context.Context, restaurantID, productID string) (*dto.EvaluationResult, error)
}

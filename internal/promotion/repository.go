package promotion

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/promotion/dto"
)

type Repository interface {
	Create(ctx context.Context, promo *model.Promotion) error
	FindByID(ctx context.Context, id string) (*model.Promotion, error)
	FindAll(ctx context.Context, filters *dto.PromotionFilters) ([]model.Promotion, int, error)
	Update(ctx context.Context, promo *model.Promotion) error
	Deactivate(ctx context.Context, id, restaurantID string) error

	// FindByProduct returns every promotion flagged active for the product;
	// window status is derived by the evaluator, never in SQL.
	FindByProduct(ctx context.Context, restaurantID, productID string) ([]model.Promotion, error)
}

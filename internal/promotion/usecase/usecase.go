package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/catalog"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-order-service/internal/pkg/clock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/promotion"
	"github.com/fekuna/omnipos-order-service/internal/promotion/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const candidateCacheTTL = 5 * time.Minute

type promotionUseCase struct {
	repo    promotion.Repository
	catalog catalog.Repository
	cache   *cache.RedisClient
	clock   clock.Clock
	logger  logger.ZapLogger
}

func NewPromotionUseCase(repo promotion.Repository, catalogRepo catalog.Repository, cache *cache.RedisClient, clk clock.Clock, log logger.ZapLogger) promotion.UseCase {
	return &promotionUseCase{
		repo:    repo,
		catalog: catalogRepo,
		cache:   cache,
		clock:   clk,
		logger:  log,
	}
}

// validateDefinition rejects malformed promotion definitions at creation
// time so evaluation never has to deal with them.
func validateDefinition(kind string, value float64, startsAt, endsAt time.Time) error {
	switch model.PromotionKind(kind) {
	case model.PromotionPercentage, model.PromotionFixedAmount, model.PromotionFixedPrice:
	default:
		return apperr.NewValidation("unknown promotion kind %q", kind)
	}
	if value < 0 {
		return apperr.NewValidation("promotion value must not be negative")
	}
	if model.PromotionKind(kind) == model.PromotionPercentage && value > 100 {
		return apperr.NewValidation("percentage promotion cannot exceed 100")
	}
	if !endsAt.After(startsAt) {
		return apperr.NewValidation("promotion window must end after it starts")
	}
	return nil
}

func (uc *promotionUseCase) CreatePromotion(ctx context.Context, input *dto.CreatePromotionInput) (*model.Promotion, error) {
	if err := validateDefinition(input.Kind, input.Value, input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}

	product, err := uc.catalog.FindByID(ctx, input.RestaurantID, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NewNotFound("product", input.ProductID)
	}

	now := uc.clock.Now()
	promo := &model.Promotion{
		BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		RestaurantID: input.RestaurantID,
		ProductID:    input.ProductID,
		Name:         input.Name,
		Kind:         model.PromotionKind(input.Kind),
		Value:        input.Value,
		StartsAt:     input.StartsAt,
		EndsAt:       input.EndsAt,
		IsActive:     true,
		StoreIDs:     input.StoreIDs,
	}

	if err := uc.repo.Create(ctx, promo); err != nil {
		return nil, err
	}

	uc.invalidateCandidateCache(ctx, input.RestaurantID, input.ProductID)
	return promo, nil
}

func (uc *promotionUseCase) GetPromotion(ctx context.Context, id string) (*model.Promotion, error) {
	promo, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, apperr.NewNotFound("promotion", id)
	}
	return promo, nil
}

func (uc *promotionUseCase) ListPromotions(ctx context.Context, filters *dto.PromotionFilters) ([]model.Promotion, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *promotionUseCase) UpdatePromotion(ctx context.Context, input *dto.UpdatePromotionInput) (*model.Promotion, error) {
	if err := validateDefinition(input.Kind, input.Value, input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}

	promo, err := uc.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if promo == nil || promo.RestaurantID != input.RestaurantID {
		return nil, apperr.NewNotFound("promotion", input.ID)
	}

	promo.Name = input.Name
	promo.Kind = model.PromotionKind(input.Kind)
	promo.Value = input.Value
	promo.StartsAt = input.StartsAt
	promo.EndsAt = input.EndsAt
	promo.StoreIDs = input.StoreIDs
	promo.UpdatedAt = uc.clock.Now()

	if err := uc.repo.Update(ctx, promo); err != nil {
		return nil, err
	}

	uc.invalidateCandidateCache(ctx, promo.RestaurantID, promo.ProductID)
	return promo, nil
}

func (uc *promotionUseCase) DeactivatePromotion(ctx context.Context, id, restaurantID string) error {
	promo, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if promo == nil || promo.RestaurantID != restaurantID {
		return apperr.NewNotFound("promotion", id)
	}

	if err := uc.repo.Deactivate(ctx, id, restaurantID); err != nil {
		return err
	}

	uc.invalidateCandidateCache(ctx, restaurantID, promo.ProductID)
	return nil
}

func (uc *promotionUseCase) ActiveForProduct(ctx context.Context, restaurantID, productID string) ([]model.Promotion, error) {
	cacheKey := candidateCacheKey(restaurantID, productID)

	if uc.cache != nil {
		val, err := uc.cache.Client.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached []model.Promotion
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	promos, err := uc.repo.FindByProduct(ctx, restaurantID, productID)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(promos); err == nil {
			uc.cache.Client.Set(ctx, cacheKey, data, candidateCacheTTL)
		}
	}

	return promos, nil
}

func (uc *promotionUseCase) EvaluateProduct(ctx context.Context, restaurantID, productID string) (*dto.EvaluationResult, error) {
	product, err := uc.catalog.FindByID(ctx, restaurantID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NewNotFound("product", productID)
	}

	candidates, err := uc.ActiveForProduct(ctx, restaurantID, productID)
	if err != nil {
		return nil, err
	}

	applied := promotion.Evaluate(productID, product.Price, candidates, uc.clock.Now())

	result := &dto.EvaluationResult{
		ProductID:     productID,
		OriginalPrice: product.Price,
		FinalPrice:    product.Price,
		Applied:       applied,
	}
	if applied != nil {
		result.FinalPrice = applied.FinalPrice
	}
	return result, nil
}

func candidateCacheKey(restaurantID, productID string) string {
	return fmt.Sprintf("promotions:product:%s:%s", restaurantID, productID)
}

func (uc *promotionUseCase) invalidateCandidateCache(ctx context.Context, restaurantID, productID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Client.Del(ctx, candidateCacheKey(restaurantID, productID)).Err(); err != nil {
		uc.logger.Warn("failed to invalidate promotion cache",
			zap.String("restaurant_id", restaurantID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

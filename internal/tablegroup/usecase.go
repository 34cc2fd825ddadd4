package tablegroup

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup/dto"
)

type UseCase interface {
	Open(ctx context.Context, input *dto.OpenGroupInput) (*model.TableGroup, error)
	Merge(ctx context.Context, restaurantID, groupID string, tableIDs []string) (*model.TableGroup, error)
	MergeGroups(ctx context.Context, restaurantID, targetID, sourceID string) (*model.TableGroup, error)
	Split(ctx context.Context, restaurantID, groupID string, tableIDs []string) (*model.TableGroup, error)
	AddItems(ctx context.Context, input *dto.AddItemsInput) (*model.TableGroup, error)
	RemoveItem(ctx context.Context, restaurantID, groupID, itemID string) (*model.TableGroup, error)
	Close(ctx context.Context, restaurantID, groupID string) (*dto.CloseResult, error)
	Get(ctx context.Context, restaurantID, groupID string) (*model.TableGroup, error)
	ListActive(ctx context.Context, restaurantID string) ([]model.TableGroup, error)
}

// PromotionSource supplies the candidate promotions used when cart lines are
// re-evaluated. Satisfied by the promotion usecase.
type PromotionSource interface {
	ActiveForProduct(ctx context.Context, restaurantID, productID string) ([]model.Promotion, error)
}

// PlanGate is consulted before state-changing operations and released when a
// gated resource is freed. Satisfied by the plan usecase.
type PlanGate interface {
	CheckAndIncrement(ctx context.Context, restaurantID, metric string, delta int) error
	Release(ctx context.Context, restaurantID, metric string, delta int) error
}

// Publisher emits domain events for downstream consumers (inventory
// deduction in the product service, the insights hub).
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

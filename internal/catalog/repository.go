package catalog

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

// Repository is the read-only window into the product catalog. The catalog
// itself is owned by the product service; this service only looks prices up.
type Repository interface {
	FindByID(ctx context.Context, restaurantID, productID string) (*model.Product, error)
	FindByIDs(ctx context.Context, restaurantID string, productIDs []string) (map[string]model.Product, error)
}

package tablegroup

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, group *model.TableGroup) error
	FindByID(ctx context.Context, id string) (*model.TableGroup, error)

	// FindOpenByTables returns every non-closed group holding any of the
	// given tables. Used to enforce that a table belongs to at most one
	// open group.
	FindOpenByTables(ctx context.Context, restaurantID string, tableIDs []string) ([]model.TableGroup, error)

	// SaveState persists the group row, its table set, and its cart lines
	// in one transaction, so a failed multi-step mutation leaves the stored
	// state untouched.
	SaveState(ctx context.Context, groups ...*model.TableGroup) error

	ListActive(ctx context.Context, restaurantID string) ([]model.TableGroup, error)
}

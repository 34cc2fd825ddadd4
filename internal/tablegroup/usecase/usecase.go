package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/cart"
	"github.com/fekuna/omnipos-order-service/internal/catalog"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/pkg/clock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockTTL      = 5 * time.Second
	lockAttempts = 3
	lockBackoff  = 100 * time.Millisecond
)

type tableGroupUseCase struct {
	repo       tablegroup.Repository
	catalog    catalog.Repository
	promotions tablegroup.PromotionSource
	plan       tablegroup.PlanGate
	publisher  tablegroup.Publisher
	aggregator *cart.Aggregator
	locker     lock.Locker
	clock      clock.Clock
	logger     logger.ZapLogger
}

func NewTableGroupUseCase(
	repo tablegroup.Repository,
	catalogRepo catalog.Repository,
	promotions tablegroup.PromotionSource,
	plan tablegroup.PlanGate,
	publisher tablegroup.Publisher,
	locker lock.Locker,
	clk clock.Clock,
	log logger.ZapLogger,
) tablegroup.UseCase {
	return &tableGroupUseCase{
		repo:       repo,
		catalog:    catalogRepo,
		promotions: promotions,
		plan:       plan,
		publisher:  publisher,
		aggregator: cart.NewAggregator(),
		locker:     locker,
		clock:      clk,
		logger:     log,
	}
}

// withLocks serializes a mutation against one or more entities (groups and
// table assignments). Keys must be passed in ascending order by the caller
// when more than one is involved, so concurrent cross-entity operations
// cannot deadlock.
func (uc *tableGroupUseCase) withLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	token := uuid.New().String()

	acquired := make([]string, 0, len(keys))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := uc.locker.ReleaseLock(ctx, acquired[i], token); err != nil {
				uc.logger.Error("failed to release lock", zap.String("key", acquired[i]), zap.Error(err))
			}
		}
	}

	for _, key := range keys {
		ok := false
		for attempt := 0; attempt < lockAttempts; attempt++ {
			got, err := uc.locker.AcquireLock(ctx, key, token, lockTTL)
			if err != nil {
				uc.logger.Error("failed to acquire lock", zap.String("key", key), zap.Error(err))
			}
			if got {
				ok = true
				break
			}
			select {
			case <-ctx.Done():
				release()
				return ctx.Err()
			case <-time.After(lockBackoff):
			}
		}
		if !ok {
			release()
			return apperr.NewConflict("table group is being modified by another request, try again")
		}
		acquired = append(acquired, key)
	}

	defer release()
	return fn(ctx)
}

func groupLockKey(groupID string) string {
	return fmt.Sprintf("lock:tablegroup:%s", groupID)
}

// tableLockKeys guards table assignment: every operation that claims tables
// for a group locks them for the span of its free-check and save, so two
// groups can never both pass the check and claim the same table.
func tableLockKeys(restaurantID string, tableIDs []string) []string {
	keys := make([]string, 0, len(tableIDs))
	for _, tableID := range tableIDs {
		keys = append(keys, fmt.Sprintf("lock:table:%s:%s", restaurantID, tableID))
	}
	return keys
}

func (uc *tableGroupUseCase) Open(ctx context.Context, input *dto.OpenGroupInput) (*model.TableGroup, error) {
	if len(input.TableIDs) == 0 {
		return nil, apperr.NewValidation("at least one table is required to open a group")
	}
	if input.ServerID == "" {
		return nil, apperr.NewValidation("server id is required")
	}
	if hasDuplicates(input.TableIDs) {
		return nil, apperr.NewValidation("table ids must be unique")
	}

	keys := tableLockKeys(input.RestaurantID, input.TableIDs)
	sort.Strings(keys)

	var result *model.TableGroup
	err := uc.withLocks(ctx, keys, func(ctx context.Context) error {
		if err := uc.ensureTablesFree(ctx, input.RestaurantID, input.TableIDs, ""); err != nil {
			return err
		}

		if err := uc.plan.CheckAndIncrement(ctx, input.RestaurantID, model.MetricTablesOpen, len(input.TableIDs)); err != nil {
			return err
		}

		now := uc.clock.Now()
		group := &model.TableGroup{
			BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			RestaurantID: input.RestaurantID,
			StoreID:      input.StoreID,
			ServerID:     input.ServerID,
			Status:       model.TableGroupOpen,
			TableIDs:     append([]string(nil), input.TableIDs...),
		}

		if err := uc.repo.Create(ctx, group); err != nil {
			uc.releaseQuietly(ctx, input.RestaurantID, model.MetricTablesOpen, len(input.TableIDs))
			return err
		}

		result = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (uc *tableGroupUseCase) Merge(ctx context.Context, restaurantID, groupID string, tableIDs []string) (*model.TableGroup, error) {
	if len(tableIDs) == 0 {
		return nil, apperr.NewValidation("at least one table is required to merge")
	}
	if hasDuplicates(tableIDs) {
		return nil, apperr.NewValidation("table ids must be unique")
	}

	keys := append(tableLockKeys(restaurantID, tableIDs), groupLockKey(groupID))
	sort.Strings(keys)

	var result *model.TableGroup
	err := uc.withLocks(ctx, keys, func(ctx context.Context) error {
		group, err := uc.loadOpenGroup(ctx, restaurantID, groupID)
		if err != nil {
			return err
		}

		if err := uc.ensureTablesFree(ctx, restaurantID, tableIDs, groupID); err != nil {
			return err
		}
		for _, tableID := range tableIDs {
			if group.HasTable(tableID) {
				return apperr.NewConflict("table %s is already part of group %s", tableID, groupID)
			}
		}

		if err := uc.plan.CheckAndIncrement(ctx, restaurantID, model.MetricTablesOpen, len(tableIDs)); err != nil {
			return err
		}

		// Merging only changes table membership; items and total are untouched.
		next := group.Clone()
		next.TableIDs = append(next.TableIDs, tableIDs...)
		next.Status = model.TableGroupMerged
		next.UpdatedAt = uc.clock.Now()

		if err := uc.repo.SaveState(ctx, next); err != nil {
			uc.releaseQuietly(ctx, restaurantID, model.MetricTablesOpen, len(tableIDs))
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// MergeGroups absorbs the source group's tables and cart lines into the
// target and closes the source. Locks are taken in ascending-identifier
// order regardless of argument order.
func (uc *tableGroupUseCase) MergeGroups(ctx context.Context, restaurantID, targetID, sourceID string) (*model.TableGroup, error) {
	if targetID == sourceID {
		return nil, apperr.NewValidation("cannot merge a group with itself")
	}

	keys := []string{groupLockKey(targetID), groupLockKey(sourceID)}
	if keys[1] < keys[0] {
		keys[0], keys[1] = keys[1], keys[0]
	}

	var result *model.TableGroup
	err := uc.withLocks(ctx, keys, func(ctx context.Context) error {
		target, err := uc.loadOpenGroup(ctx, restaurantID, targetID)
		if err != nil {
			return err
		}
		source, err := uc.loadOpenGroup(ctx, restaurantID, sourceID)
		if err != nil {
			return err
		}

		now := uc.clock.Now()

		nextTarget := target.Clone()
		nextTarget.TableIDs = append(nextTarget.TableIDs, source.TableIDs...)
		nextTarget.Cart.Items = append(nextTarget.Cart.Items, source.Cart.Clone().Items...)
		nextTarget.Status = model.TableGroupMerged
		nextTarget.UpdatedAt = now

		promos, err := uc.promotionsFor(ctx, restaurantID, nextTarget.Cart.Items)
		if err != nil {
			return err
		}
		uc.aggregator.Recompute(&nextTarget.Cart, promos, now)

		nextSource := source.Clone()
		nextSource.Status = model.TableGroupClosed
		nextSource.TableIDs = nil
		nextSource.Cart = model.Cart{}
		nextSource.UpdatedAt = now

		if err := uc.repo.SaveState(ctx, nextTarget, nextSource); err != nil {
			return err
		}

		result = nextTarget
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (uc *tableGroupUseCase) Split(ctx context.Context, restaurantID, groupID string, tableIDs []string) (*model.TableGroup, error) {
	if len(tableIDs) == 0 {
		return nil, apperr.NewValidation("at least one table is required to split")
	}

	var result *model.TableGroup
	err := uc.withLocks(ctx, []string{groupLockKey(groupID)}, func(ctx context.Context) error {
		group, err := uc.loadOpenGroup(ctx, restaurantID, groupID)
		if err != nil {
			return err
		}

		for _, tableID := range tableIDs {
			if !group.HasTable(tableID) {
				return apperr.NewNotFound("table", tableID)
			}
		}

		remaining := subtract(group.TableIDs, tableIDs)
		if len(remaining) == 0 {
			return apperr.NewInvalidState("removing every table would close the group; use close instead")
		}

		next := group.Clone()
		next.TableIDs = remaining
		if len(remaining) == 1 {
			next.Status = model.TableGroupOpen
		}
		next.UpdatedAt = uc.clock.Now()

		if err := uc.repo.SaveState(ctx, next); err != nil {
			return err
		}

		uc.releaseQuietly(ctx, restaurantID, model.MetricTablesOpen, len(tableIDs))
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (uc *tableGroupUseCase) AddItems(ctx context.Context, input *dto.AddItemsInput) (*model.TableGroup, error) {
	if len(input.Items) == 0 {
		return nil, apperr.NewValidation("at least one item is required")
	}
	totalQty := 0
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, apperr.NewValidation("quantity must be a positive integer, got %d", item.Quantity)
		}
		totalQty += item.Quantity
	}

	var result *model.TableGroup
	err := uc.withLocks(ctx, []string{groupLockKey(input.GroupID)}, func(ctx context.Context) error {
		group, err := uc.loadOpenGroup(ctx, input.RestaurantID, input.GroupID)
		if err != nil {
			return err
		}

		productIDs := make([]string, 0, len(input.Items))
		for _, item := range input.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		products, err := uc.catalog.FindByIDs(ctx, input.RestaurantID, productIDs)
		if err != nil {
			return err
		}
		for _, item := range input.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return apperr.NewNotFound("product", item.ProductID)
			}
			if !product.IsAvailable {
				return apperr.NewValidation("product %s is not available", product.Name)
			}
		}

		if err := uc.plan.CheckAndIncrement(ctx, input.RestaurantID, model.MetricItemsPerSale, totalQty); err != nil {
			return err
		}

		// Mutate a working copy; the stored state only changes if the whole
		// sequence persists.
		next := group.Clone()
		now := uc.clock.Now()

		promos, err := uc.promotionsForInputs(ctx, input.RestaurantID, next.Cart.Items, input.Items)
		if err != nil {
			uc.releaseQuietly(ctx, input.RestaurantID, model.MetricItemsPerSale, totalQty)
			return err
		}

		for _, item := range input.Items {
			product := products[item.ProductID]
			if _, err := uc.aggregator.AddItem(&next.Cart, &product, item.Quantity, item.Notes, item.Modifiers, promos, now); err != nil {
				uc.releaseQuietly(ctx, input.RestaurantID, model.MetricItemsPerSale, totalQty)
				return err
			}
		}
		next.UpdatedAt = now

		if err := uc.repo.SaveState(ctx, next); err != nil {
			uc.releaseQuietly(ctx, input.RestaurantID, model.MetricItemsPerSale, totalQty)
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (uc *tableGroupUseCase) RemoveItem(ctx context.Context, restaurantID, groupID, itemID string) (*model.TableGroup, error) {
	var result *model.TableGroup
	err := uc.withLocks(ctx, []string{groupLockKey(groupID)}, func(ctx context.Context) error {
		group, err := uc.loadOpenGroup(ctx, restaurantID, groupID)
		if err != nil {
			return err
		}

		removed := group.Cart.FindItem(itemID)
		if removed == nil {
			return apperr.NewNotFound("cart item", itemID)
		}
		removedQty := removed.Quantity

		next := group.Clone()
		now := uc.clock.Now()

		promos, err := uc.promotionsFor(ctx, restaurantID, next.Cart.Items)
		if err != nil {
			return err
		}
		if err := uc.aggregator.RemoveItem(&next.Cart, itemID, promos, now); err != nil {
			return err
		}
		next.UpdatedAt = now

		if err := uc.repo.SaveState(ctx, next); err != nil {
			return err
		}

		uc.releaseQuietly(ctx, restaurantID, model.MetricItemsPerSale, removedQty)
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (uc *tableGroupUseCase) Close(ctx context.Context, restaurantID, groupID string) (*dto.CloseResult, error) {
	var result *dto.CloseResult
	err := uc.withLocks(ctx, []string{groupLockKey(groupID)}, func(ctx context.Context) error {
		group, err := uc.loadOpenGroup(ctx, restaurantID, groupID)
		if err != nil {
			return err
		}

		if err := uc.plan.CheckAndIncrement(ctx, restaurantID, model.MetricSalesPerDay, 1); err != nil {
			return err
		}

		now := uc.clock.Now()
		next := group.Clone()
		next.Status = model.TableGroupClosed
		next.UpdatedAt = now

		if err := uc.repo.SaveState(ctx, next); err != nil {
			uc.releaseQuietly(ctx, restaurantID, model.MetricSalesPerDay, 1)
			return err
		}

		uc.releaseQuietly(ctx, restaurantID, model.MetricTablesOpen, len(next.TableIDs))
		uc.publishClosed(ctx, next)

		result = &dto.CloseResult{
			GroupID:    next.ID,
			FinalTotal: next.Cart.Total,
			ClosedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *tableGroupUseCase) Get(ctx context.Context, restaurantID, groupID string) (*model.TableGroup, error) {
	group, err := uc.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || group.RestaurantID != restaurantID {
		return nil, apperr.NewNotFound("table group", groupID)
	}
	// Snapshot, never a live reference.
	return group.Clone(), nil
}

func (uc *tableGroupUseCase) ListActive(ctx context.Context, restaurantID string) ([]model.TableGroup, error) {
	return uc.repo.ListActive(ctx, restaurantID)
}

// loadOpenGroup fetches a group and rejects mutations on closed ones.
func (uc *tableGroupUseCase) loadOpenGroup(ctx context.Context, restaurantID, groupID string) (*model.TableGroup, error) {
	group, err := uc.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || group.RestaurantID != restaurantID {
		return nil, apperr.NewNotFound("table group", groupID)
	}
	if group.IsClosed() {
		return nil, apperr.NewInvalidState("table group %s is closed", groupID)
	}
	return group, nil
}

// ensureTablesFree rejects tables already held by another non-closed group.
func (uc *tableGroupUseCase) ensureTablesFree(ctx context.Context, restaurantID string, tableIDs []string, excludeGroupID string) error {
	groups, err := uc.repo.FindOpenByTables(ctx, restaurantID, tableIDs)
	if err != nil {
		return err
	}
	for i := range groups {
		if groups[i].ID == excludeGroupID {
			continue
		}
		for _, tableID := range tableIDs {
			if groups[i].HasTable(tableID) {
				return apperr.NewConflict("table %s is already part of open group %s", tableID, groups[i].ID)
			}
		}
	}
	return nil
}

func (uc *tableGroupUseCase) promotionsFor(ctx context.Context, restaurantID string, items []model.CartItem) (map[string][]model.Promotion, error) {
	return uc.promotionsForInputs(ctx, restaurantID, items, nil)
}

// promotionsForInputs builds the candidate set for every product referenced
// by existing lines and incoming items.
func (uc *tableGroupUseCase) promotionsForInputs(ctx context.Context, restaurantID string, items []model.CartItem, inputs []dto.ItemInput) (map[string][]model.Promotion, error) {
	out := make(map[string][]model.Promotion)

	collect := func(productID string) error {
		if _, ok := out[productID]; ok {
			return nil
		}
		promos, err := uc.promotions.ActiveForProduct(ctx, restaurantID, productID)
		if err != nil {
			return err
		}
		out[productID] = promos
		return nil
	}

	for i := range items {
		if err := collect(items[i].ProductID); err != nil {
			return nil, err
		}
	}
	for i := range inputs {
		if err := collect(inputs[i].ProductID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// releaseQuietly undoes a gate increment after a failed or compensating
// step. Failures are logged, not surfaced: the counter drifts at most until
// its periodic reset.
func (uc *tableGroupUseCase) releaseQuietly(ctx context.Context, restaurantID, metric string, delta int) {
	if err := uc.plan.Release(ctx, restaurantID, metric, delta); err != nil {
		uc.logger.Error("failed to release usage counter",
			zap.String("restaurant_id", restaurantID),
			zap.String("metric", metric),
			zap.Int("delta", delta),
			zap.Error(err),
		)
	}
}

func (uc *tableGroupUseCase) publishClosed(ctx context.Context, group *model.TableGroup) {
	if uc.publisher == nil {
		return
	}

	items := make([]tablegroup.OrderItemPayload, len(group.Cart.Items))
	for i, item := range group.Cart.Items {
		items[i] = tablegroup.OrderItemPayload{
			ProductID: item.ProductID,
			Quantity:  float64(item.Quantity),
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}

	storeID := ""
	if group.StoreID != nil {
		storeID = *group.StoreID
	}

	event := tablegroup.OrderClosedEvent{
		EventID:   uuid.New().String(),
		EventType: tablegroup.EventTypeOrderClosed,
		Payload: tablegroup.OrderClosedPayload{
			ID:           group.ID,
			RestaurantID: group.RestaurantID,
			StoreID:      storeID,
			ServerID:     group.ServerID,
			TableIDs:     group.TableIDs,
			Items:        items,
			Total:        group.Cart.Total,
		},
		Timestamp: uc.clock.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		uc.logger.Error("failed to marshal order closed event", zap.Error(err))
		return
	}
	if err := uc.publisher.Publish(ctx, group.ID, data); err != nil {
		uc.logger.Error("failed to publish order closed event",
			zap.String("group_id", group.ID),
			zap.Error(err),
		)
	}
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

func subtract(from, remove []string) []string {
	removeSet := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		removeSet[id] = struct{}{}
	}
	out := make([]string, 0, len(from))
	for _, id := range from {
		if _, ok := removeSet[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

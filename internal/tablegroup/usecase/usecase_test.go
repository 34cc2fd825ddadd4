package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/pkg/clock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var groupBase = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

const testRestaurant = "rest-1"

// memoryRepo stores deep copies so mutations only land through SaveState.
type memoryRepo struct {
	mu     sync.Mutex
	groups map[string]*model.TableGroup
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{groups: make(map[string]*model.TableGroup)}
}

func (r *memoryRepo) Create(_ context.Context, group *model.TableGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[group.ID] = group.Clone()
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*model.TableGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	return group.Clone(), nil
}

func (r *memoryRepo) FindOpenByTables(_ context.Context, restaurantID string, tableIDs []string) ([]model.TableGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TableGroup
	for _, group := range r.groups {
		if group.RestaurantID != restaurantID || group.IsClosed() {
			continue
		}
		for _, tableID := range tableIDs {
			if group.HasTable(tableID) {
				out = append(out, *group.Clone())
				break
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveState(_ context.Context, groups ...*model.TableGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, group := range groups {
		r.groups[group.ID] = group.Clone()
	}
	return nil
}

func (r *memoryRepo) ListActive(_ context.Context, restaurantID string) ([]model.TableGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TableGroup
	for _, group := range r.groups {
		if group.RestaurantID == restaurantID && !group.IsClosed() {
			out = append(out, *group.Clone())
		}
	}
	return out, nil
}

type memoryCatalog struct {
	products map[string]model.Product
}

func (c *memoryCatalog) FindByID(_ context.Context, _, productID string) (*model.Product, error) {
	if product, ok := c.products[productID]; ok {
		return &product, nil
	}
	return nil, nil
}

func (c *memoryCatalog) FindByIDs(_ context.Context, _ string, productIDs []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product)
	for _, id := range productIDs {
		if product, ok := c.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

type staticPromotions struct {
	byProduct map[string][]model.Promotion
}

func (s *staticPromotions) ActiveForProduct(_ context.Context, _, productID string) ([]model.Promotion, error) {
	return s.byProduct[productID], nil
}

// recordingGate counts increments per metric and can reject one of them.
type recordingGate struct {
	mu         sync.Mutex
	counts     map[string]int
	failMetric string
}

func newRecordingGate() *recordingGate {
	return &recordingGate{counts: make(map[string]int)}
}

func (g *recordingGate) CheckAndIncrement(_ context.Context, _, metric string, delta int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if metric == g.failMetric {
		return &apperr.LimitExceededError{Code: apperr.CodeLimitExceeded, Resource: metric, Limit: 1, Current: 1}
	}
	g.counts[metric] += delta
	return nil
}

func (g *recordingGate) Release(_ context.Context, _, metric string, delta int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts[metric] -= delta
	return nil
}

func (g *recordingGate) count(metric string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[metric]
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, value)
	return nil
}

type fixture struct {
	uc        tablegroup.UseCase
	repo      *memoryRepo
	gate      *recordingGate
	publisher *recordingPublisher
	promos    *staticPromotions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	gate := newRecordingGate()
	publisher := &recordingPublisher{}
	promos := &staticPromotions{byProduct: make(map[string][]model.Promotion)}
	catalogRepo := &memoryCatalog{products: map[string]model.Product{
		"prod-1": {BaseModel: model.BaseModel{ID: "prod-1"}, Name: "Burger", Price: 10.00, IsAvailable: true},
		"prod-2": {BaseModel: model.BaseModel{ID: "prod-2"}, Name: "Fries", Price: 4.00, IsAvailable: true},
		"prod-3": {BaseModel: model.BaseModel{ID: "prod-3"}, Name: "86d Special", Price: 12.00, IsAvailable: false},
	}}

	uc := NewTableGroupUseCase(
		repo, catalogRepo, promos, gate, publisher,
		lock.NewKeyMutex(), clock.Fixed{T: groupBase}, logger.NewNop(),
	)
	return &fixture{uc: uc, repo: repo, gate: gate, publisher: publisher, promos: promos}
}

func (f *fixture) open(t *testing.T, tables ...string) *model.TableGroup {
	t.Helper()
	group, err := f.uc.Open(context.Background(), &dto.OpenGroupInput{
		RestaurantID: testRestaurant,
		ServerID:     "server-1",
		TableIDs:     tables,
	})
	require.NoError(t, err)
	return group
}

func TestOpen(t *testing.T) {
	f := newFixture(t)

	group := f.open(t, "t1", "t2")

	assert.Equal(t, model.TableGroupOpen, group.Status)
	assert.Equal(t, []string{"t1", "t2"}, group.TableIDs)
	assert.Equal(t, 2, f.gate.count(model.MetricTablesOpen))
}

func TestOpen_TableAlreadyHeld(t *testing.T) {
	f := newFixture(t)
	f.open(t, "t1")

	_, err := f.uc.Open(context.Background(), &dto.OpenGroupInput{
		RestaurantID: testRestaurant,
		ServerID:     "server-2",
		TableIDs:     []string{"t1", "t2"},
	})

	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, 1, f.gate.count(model.MetricTablesOpen))
}

func TestOpen_ValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Open(context.Background(), &dto.OpenGroupInput{RestaurantID: testRestaurant, ServerID: "s"})
	assert.True(t, apperr.IsValidation(err))

	_, err = f.uc.Open(context.Background(), &dto.OpenGroupInput{
		RestaurantID: testRestaurant, ServerID: "s", TableIDs: []string{"t1", "t1"},
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestOpen_PlanLimitBlocks(t *testing.T) {
	f := newFixture(t)
	f.gate.failMetric = model.MetricTablesOpen

	_, err := f.uc.Open(context.Background(), &dto.OpenGroupInput{
		RestaurantID: testRestaurant, ServerID: "s", TableIDs: []string{"t1"},
	})

	_, ok := apperr.AsLimitExceeded(err)
	assert.True(t, ok)
	groups, _ := f.repo.ListActive(context.Background(), testRestaurant)
	assert.Empty(t, groups)
}

// slowCheckRepo widens the window between the free-table check and the
// write so check-then-write interleavings surface.
type slowCheckRepo struct {
	*memoryRepo
	delay time.Duration
}

func (r *slowCheckRepo) FindOpenByTables(ctx context.Context, restaurantID string, tableIDs []string) ([]model.TableGroup, error) {
	groups, err := r.memoryRepo.FindOpenByTables(ctx, restaurantID, tableIDs)
	time.Sleep(r.delay)
	return groups, err
}

func newSlowCheckFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	slow := &slowCheckRepo{memoryRepo: f.repo, delay: 50 * time.Millisecond}
	f.uc = NewTableGroupUseCase(
		slow,
		&memoryCatalog{products: map[string]model.Product{}},
		f.promos, f.gate, f.publisher,
		lock.NewKeyMutex(), clock.Fixed{T: groupBase}, logger.NewNop(),
	)
	return f
}

func TestOpen_ConcurrentSameTableSingleWinner(t *testing.T) {
	f := newSlowCheckFixture(t)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.uc.Open(context.Background(), &dto.OpenGroupInput{
				RestaurantID: testRestaurant,
				ServerID:     "server-1",
				TableIDs:     []string{"t1"},
			})
			errs <- err
		}()
	}

	successes := 0
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			successes++
		} else {
			assert.True(t, apperr.IsConflict(err))
		}
	}
	assert.Equal(t, 1, successes)

	holders, err := f.repo.FindOpenByTables(context.Background(), testRestaurant, []string{"t1"})
	require.NoError(t, err)
	assert.Len(t, holders, 1)
	assert.Equal(t, 1, f.gate.count(model.MetricTablesOpen))
}

func TestOpenAndMerge_ConcurrentSameTableSingleWinner(t *testing.T) {
	f := newSlowCheckFixture(t)
	group := f.open(t, "t1")

	errs := make(chan error, 2)
	go func() {
		_, err := f.uc.Open(context.Background(), &dto.OpenGroupInput{
			RestaurantID: testRestaurant,
			ServerID:     "server-2",
			TableIDs:     []string{"t2"},
		})
		errs <- err
	}()
	go func() {
		_, err := f.uc.Merge(context.Background(), testRestaurant, group.ID, []string{"t2"})
		errs <- err
	}()

	successes := 0
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			successes++
		} else {
			assert.True(t, apperr.IsConflict(err))
		}
	}
	assert.Equal(t, 1, successes)

	holders, err := f.repo.FindOpenByTables(context.Background(), testRestaurant, []string{"t2"})
	require.NoError(t, err)
	assert.Len(t, holders, 1)
}

func TestAddItems(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	updated, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items: []dto.ItemInput{
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 1},
		},
	})

	require.NoError(t, err)
	require.Len(t, updated.Cart.Items, 2)
	assert.Equal(t, 24.00, updated.Cart.Total)
	assert.Equal(t, 3, f.gate.count(model.MetricItemsPerSale))

	stored, err := f.repo.FindByID(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, 24.00, stored.Cart.Total)
}

func TestAddItems_AppliesActivePromotion(t *testing.T) {
	f := newFixture(t)
	f.promos.byProduct["prod-1"] = []model.Promotion{{
		BaseModel: model.BaseModel{ID: "p1"},
		ProductID: "prod-1",
		Kind:      model.PromotionPercentage,
		Value:     20,
		StartsAt:  groupBase.Add(-time.Hour),
		EndsAt:    groupBase.Add(time.Hour),
		IsActive:  true,
	}}
	group := f.open(t, "t1")

	updated, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 1}},
	})

	require.NoError(t, err)
	require.NotNil(t, updated.Cart.Items[0].Promotion)
	assert.Equal(t, 8.00, updated.Cart.Items[0].UnitPrice)
	assert.Equal(t, 8.00, updated.Cart.Total)
}

func TestAddItems_UnknownProductLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	_, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items: []dto.ItemInput{
			{ProductID: "prod-1", Quantity: 1},
			{ProductID: "nope", Quantity: 1},
		},
	})
	assert.True(t, apperr.IsNotFound(err))

	stored, _ := f.repo.FindByID(context.Background(), group.ID)
	assert.Empty(t, stored.Cart.Items)
	assert.Equal(t, 0, f.gate.count(model.MetricItemsPerSale))
}

func TestAddItems_UnavailableProductRejected(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	_, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-3", Quantity: 1}},
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestAddItems_ClosedGroupRejected(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")
	_, err := f.uc.Close(context.Background(), testRestaurant, group.ID)
	require.NoError(t, err)

	_, err = f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 1}},
	})
	assert.True(t, apperr.IsInvalidState(err))
}

func TestAddItems_ConcurrentNoLostUpdates(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	const workers = 4
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
					RestaurantID: testRestaurant,
					GroupID:      group.ID,
					Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 1}},
				})
				if err == nil {
					return
				}
				if !apperr.IsConflict(err) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	stored, err := f.repo.FindByID(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, stored.Cart.Items, 1)
	assert.Equal(t, workers, stored.Cart.Items[0].Quantity)
	assert.Equal(t, 40.00, stored.Cart.Total)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")
	updated, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 2}},
	})
	require.NoError(t, err)

	after, err := f.uc.RemoveItem(context.Background(), testRestaurant, group.ID, updated.Cart.Items[0].ID)

	require.NoError(t, err)
	assert.Empty(t, after.Cart.Items)
	assert.Equal(t, 0.00, after.Cart.Total)
	assert.Equal(t, 0, f.gate.count(model.MetricItemsPerSale))
}

func TestRemoveItem_UnknownID(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	_, err := f.uc.RemoveItem(context.Background(), testRestaurant, group.ID, "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestMerge_AddsTables(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	merged, err := f.uc.Merge(context.Background(), testRestaurant, group.ID, []string{"t2", "t3"})

	require.NoError(t, err)
	assert.Equal(t, model.TableGroupMerged, merged.Status)
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, merged.TableIDs)
	assert.Equal(t, 3, f.gate.count(model.MetricTablesOpen))
}

func TestMerge_TableHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")
	f.open(t, "t2")

	_, err := f.uc.Merge(context.Background(), testRestaurant, group.ID, []string{"t2"})
	assert.True(t, apperr.IsConflict(err))
}

func TestMergeGroups_AbsorbsSource(t *testing.T) {
	f := newFixture(t)
	target := f.open(t, "t1")
	source := f.open(t, "t2")
	_, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      source.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 1}},
	})
	require.NoError(t, err)

	merged, err := f.uc.MergeGroups(context.Background(), testRestaurant, target.ID, source.ID)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, merged.TableIDs)
	require.Len(t, merged.Cart.Items, 1)
	assert.Equal(t, 10.00, merged.Cart.Total)

	closedSource, err := f.repo.FindByID(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, closedSource.IsClosed())
}

func TestMergeGroups_SelfRejected(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	_, err := f.uc.MergeGroups(context.Background(), testRestaurant, group.ID, group.ID)
	assert.True(t, apperr.IsValidation(err))
}

func TestSplit_RemovesTables(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1", "t2", "t3")

	split, err := f.uc.Split(context.Background(), testRestaurant, group.ID, []string{"t3"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, split.TableIDs)
	assert.Equal(t, 2, f.gate.count(model.MetricTablesOpen))
}

func TestSplit_CannotRemoveAllTables(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1", "t2")

	_, err := f.uc.Split(context.Background(), testRestaurant, group.ID, []string{"t1", "t2"})
	assert.True(t, apperr.IsInvalidState(err))
}

func TestSplit_UnknownTable(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1", "t2")

	_, err := f.uc.Split(context.Background(), testRestaurant, group.ID, []string{"t9"})
	assert.True(t, apperr.IsNotFound(err))
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1", "t2")
	_, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 2}},
	})
	require.NoError(t, err)

	result, err := f.uc.Close(context.Background(), testRestaurant, group.ID)

	require.NoError(t, err)
	assert.Equal(t, 20.00, result.FinalTotal)
	assert.Equal(t, groupBase, result.ClosedAt)
	assert.Equal(t, 0, f.gate.count(model.MetricTablesOpen))
	assert.Equal(t, 1, f.gate.count(model.MetricSalesPerDay))

	stored, _ := f.repo.FindByID(context.Background(), group.ID)
	assert.True(t, stored.IsClosed())
}

func TestClose_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")
	_, err := f.uc.AddItems(context.Background(), &dto.AddItemsInput{
		RestaurantID: testRestaurant,
		GroupID:      group.ID,
		Items:        []dto.ItemInput{{ProductID: "prod-1", Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = f.uc.Close(context.Background(), testRestaurant, group.ID)
	require.NoError(t, err)

	require.Len(t, f.publisher.messages, 1)
	var event tablegroup.OrderClosedEvent
	require.NoError(t, json.Unmarshal(f.publisher.messages[0], &event))
	assert.Equal(t, tablegroup.EventTypeOrderClosed, event.EventType)
	assert.Equal(t, group.ID, event.Payload.ID)
	assert.Equal(t, testRestaurant, event.Payload.RestaurantID)
	assert.Equal(t, 20.00, event.Payload.Total)
	require.Len(t, event.Payload.Items, 1)
	assert.Equal(t, float64(2), event.Payload.Items[0].Quantity)
}

func TestClose_AlreadyClosed(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")
	_, err := f.uc.Close(context.Background(), testRestaurant, group.ID)
	require.NoError(t, err)

	_, err = f.uc.Close(context.Background(), testRestaurant, group.ID)
	assert.True(t, apperr.IsInvalidState(err))
	assert.Equal(t, 1, f.gate.count(model.MetricSalesPerDay))
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	first, err := f.uc.Get(context.Background(), testRestaurant, group.ID)
	require.NoError(t, err)
	first.TableIDs[0] = "mutated"

	second, err := f.uc.Get(context.Background(), testRestaurant, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, second.TableIDs)
}

func TestGet_WrongRestaurant(t *testing.T) {
	f := newFixture(t)
	group := f.open(t, "t1")

	_, err := f.uc.Get(context.Background(), "other-restaurant", group.ID)
	assert.True(t, apperr.IsNotFound(err))
}

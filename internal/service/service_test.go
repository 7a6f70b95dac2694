package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog/importer/internal/client"
	"catalog/importer/internal/domain"
	"catalog/importer/internal/domain/task"
	"catalog/importer/internal/feed"
	"catalog/importer/internal/result"
)

var errBoom = errors.New("boom")

type fakeCatalog struct {
	mu sync.Mutex

	buyers   []domain.Buyer
	catalogs []domain.Catalog

	listBuyersErr error
	linkErr       error
	onCategory    func()
	failCategory  map[string]bool
	failPrice     map[string]bool
	failProduct   map[string]bool

	calls              []string
	categories         []domain.Category
	categoryAssigned   []domain.CategoryAssignment
	prices             []domain.PriceSchedule
	products           []domain.Product
	productAssignments []domain.ProductAssignment
}

func (f *fakeCatalog) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCatalog) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeCatalog) GetBuyer(ctx context.Context, id string) (*domain.Buyer, error) {
	f.record("GetBuyer")
	return &domain.Buyer{ID: id}, nil
}

func (f *fakeCatalog) ListBuyers(ctx context.Context) ([]domain.Buyer, error) {
	f.record("ListBuyers")
	return f.buyers, f.listBuyersErr
}

func (f *fakeCatalog) CreateBuyer(ctx context.Context, buyer domain.Buyer) (*domain.Buyer, error) {
	f.record("CreateBuyer")
	return &buyer, nil
}

func (f *fakeCatalog) GetCatalog(ctx context.Context, id string) (*domain.Catalog, error) {
	f.record("GetCatalog")
	return &domain.Catalog{ID: id}, nil
}

func (f *fakeCatalog) ListCatalogs(ctx context.Context) ([]domain.Catalog, error) {
	f.record("ListCatalogs")
	return f.catalogs, nil
}

func (f *fakeCatalog) CreateCatalog(ctx context.Context, catalog domain.Catalog) (*domain.Catalog, error) {
	f.record("CreateCatalog")
	return &catalog, nil
}

func (f *fakeCatalog) SaveCatalogAssignment(ctx context.Context, assignment domain.CatalogAssignment) error {
	f.record("SaveCatalogAssignment")
	return f.linkErr
}

func (f *fakeCatalog) SaveCategory(ctx context.Context, catalogID string, category domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = append(f.categories, category)
	if f.onCategory != nil {
		f.onCategory()
	}
	if f.failCategory[category.ID] {
		return &client.APIError{Kind: client.KindAPI, StatusCode: 400, Message: "bad category",
			Request: &client.Request{Method: "PUT", URL: "https://api.example.com/v1/catalogs/" + catalogID + "/categories/" + category.ID}}
	}
	return nil
}

func (f *fakeCatalog) SaveCategoryAssignment(ctx context.Context, catalogID string, assignment domain.CategoryAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categoryAssigned = append(f.categoryAssigned, assignment)
	return nil
}

func (f *fakeCatalog) SavePriceSchedule(ctx context.Context, schedule domain.PriceSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = append(f.prices, schedule)
	if f.failPrice[schedule.ID] {
		return errBoom
	}
	return nil
}

func (f *fakeCatalog) SaveProduct(ctx context.Context, product domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, product)
	if f.failProduct[product.ID] {
		return errBoom
	}
	return nil
}

func (f *fakeCatalog) SaveProductAssignment(ctx context.Context, catalogID string, assignment domain.ProductAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productAssignments = append(f.productAssignments, assignment)
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []task.Task
}

func (q *fakeQueue) AddTask(ctx context.Context, t task.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return "1-0", nil
}

func (q *fakeQueue) RecentTasks(ctx context.Context, taskType string, count int64) ([]redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) Close() error { return nil }

func product(id, breadcrumbs string) domain.ProductRow {
	return domain.ProductRow{
		ID:          id,
		Name:        "Product " + id,
		RawPrice:    "10",
		Price:       decimal.NewFromInt(10),
		Breadcrumbs: breadcrumbs,
	}
}

func stats(t *testing.T, results *result.Accumulator, kind result.Kind) result.Stats {
	t.Helper()
	s := results.Counter(kind).Snapshot()
	assert.Equal(t, s.Total, s.Processed, "%s processed must reach total", kind)
	return s
}

func TestImport_MultiPathProduct(t *testing.T) {
	api := &fakeCatalog{buyers: []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}}}
	results := result.New()
	svc := NewService(api, nil, results, Options{})

	out, err := svc.Import(context.Background(), &feed.Feed{
		Products: []domain.ProductRow{product("P1", "Men>Shirts|Men>Pants")},
	})
	require.NoError(t, err)
	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, "b1", out.BuyerID)
	assert.Equal(t, "c1", out.CatalogID)

	require.Len(t, api.categories, 3)
	assert.Equal(t, domain.Category{ID: "men", Name: "Men", Active: true}, api.categories[0])
	assert.Len(t, api.categoryAssigned, 3)

	require.Len(t, api.products, 1)
	assert.Equal(t, "P1", api.products[0].DefaultPriceScheduleID)
	assert.ElementsMatch(t, []domain.ProductAssignment{
		{CategoryID: "menshirts", ProductID: "P1"},
		{CategoryID: "menpants", ProductID: "P1"},
	}, api.productAssignments)

	assert.Equal(t, int64(3), stats(t, results, result.KindCategories).Total)
	assert.Equal(t, int64(2), stats(t, results, result.KindProductAssignments).Total)
	assert.False(t, results.HasErrors())
}

func TestImport_PriceFailureShortCircuits(t *testing.T) {
	api := &fakeCatalog{
		buyers:    []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}},
		failPrice: map[string]bool{"P1": true},
	}
	results := result.New()
	svc := NewService(api, nil, results, Options{})

	_, err := svc.Import(context.Background(), &feed.Feed{
		Products: []domain.ProductRow{
			product("P1", "Men>Shirts|Men>Pants"),
			product("P2", "Men>Shirts"),
		},
	})
	require.NoError(t, err)

	require.Len(t, api.products, 1)
	assert.Equal(t, "P2", api.products[0].ID)
	assert.Equal(t, []domain.ProductAssignment{{CategoryID: "menshirts", ProductID: "P2"}}, api.productAssignments)

	products := stats(t, results, result.KindProducts)
	assert.Equal(t, int64(1), products.Errors)
	assert.Equal(t, int64(2), products.Total)

	assignments := stats(t, results, result.KindProductAssignments)
	assert.Equal(t, int64(0), assignments.Errors)
	assert.Equal(t, int64(2), assignments.Skipped)
	assert.Equal(t, int64(3), assignments.Total)
}

func TestImport_ProductFailureSkipsAssignments(t *testing.T) {
	api := &fakeCatalog{
		buyers:      []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}},
		failProduct: map[string]bool{"P1": true},
	}
	results := result.New()

	_, err := NewService(api, nil, results, Options{}).Import(context.Background(), &feed.Feed{
		Products: []domain.ProductRow{product("P1", "Men>Shirts")},
	})
	require.NoError(t, err)

	assert.Empty(t, api.productAssignments)
	assert.Equal(t, int64(1), stats(t, results, result.KindProducts).Errors)
	assert.Equal(t, int64(1), stats(t, results, result.KindProductAssignments).Skipped)
}

func TestImport_LookupMode(t *testing.T) {
	api := &fakeCatalog{buyers: []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}}}
	results := result.New()

	_, err := NewService(api, nil, results, Options{}).Import(context.Background(), &feed.Feed{
		Categories: []domain.CategoryRow{
			{Line: 2, Breadcrumb: "Men>Shirts", ID: "C1"},
			{Line: 3, Breadcrumb: "Men>Pants", ID: "C2"},
			{Line: 4, Breadcrumb: "Men", ID: "C0"},
		},
		Products: []domain.ProductRow{
			product("P1", "Men > Shirts"),
			product("P2", "Women>Tops"),
		},
	})
	require.NoError(t, err)

	parents := make(map[string]string)
	for _, c := range api.categories {
		parents[c.ID] = c.ParentID
	}
	assert.Equal(t, map[string]string{"C0": "", "C1": "C0", "C2": "C0"}, parents)
	assert.Equal(t, "C0", api.categories[0].ID)

	assert.Equal(t, []domain.ProductAssignment{{CategoryID: "C1", ProductID: "P1"}}, api.productAssignments)
	assert.Len(t, api.products, 2, "a missing category link does not block the product itself")

	assignments := stats(t, results, result.KindProductAssignments)
	assert.Equal(t, int64(1), assignments.Errors)
	assert.Equal(t, int64(2), assignments.Total)
}

func TestImport_ParentsUploadedBeforeChildren(t *testing.T) {
	api := &fakeCatalog{buyers: []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}}}

	rows := []domain.ProductRow{
		product("P1", "A>B>C>D"),
		product("P2", "A>E"),
		product("P3", "F>G>H"),
		product("P4", "A>B>I"),
	}
	_, err := NewService(api, nil, result.New(), Options{MaxWorkers: 4}).Import(context.Background(), &feed.Feed{Products: rows})
	require.NoError(t, err)

	pos := make(map[string]int)
	for i, c := range api.categories {
		pos[c.ID] = i
	}
	require.Len(t, pos, 9)
	for _, c := range api.categories {
		if c.ParentID != "" {
			assert.Less(t, pos[c.ParentID], pos[c.ID], "%s uploaded before its parent", c.ID)
		}
	}
}

func TestImport_FailedCategoryStillAssignedAndPublished(t *testing.T) {
	api := &fakeCatalog{
		buyers:       []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}},
		failCategory: map[string]bool{"menshirts": true},
	}
	q := &fakeQueue{}
	results := result.New()

	_, err := NewService(api, q, results, Options{RunID: "run-1"}).Import(context.Background(), &feed.Feed{
		Products: []domain.ProductRow{product("P1", "Men>Shirts")},
	})
	require.NoError(t, err)

	assert.Len(t, api.categoryAssigned, 2)
	assert.Equal(t, int64(1), stats(t, results, result.KindCategories).Errors)

	require.Len(t, q.tasks, 1)
	failed := q.tasks[0].(*task.FailedItemTask)
	assert.Equal(t, "run-1", failed.RunID)
	assert.Equal(t, "categories", failed.Kind)
	assert.Equal(t, "menshirts", failed.ItemID)
	assert.Equal(t, "PUT", failed.RequestMethod)
	assert.Contains(t, failed.RequestURL, "/categories/menshirts")
}

func TestImport_BuyerAndCatalogResolution(t *testing.T) {
	tests := []struct {
		name        string
		api         *fakeCatalog
		opts        Options
		wantBuyer   string
		wantCatalog string
		wantCalls   []string
		avoidCalls  []string
	}{
		{
			name:        "explicit ids",
			api:         &fakeCatalog{buyers: []domain.Buyer{{ID: "other"}}},
			opts:        Options{BuyerID: "b9", CatalogID: "c9"},
			wantBuyer:   "b9",
			wantCatalog: "c9",
			wantCalls:   []string{"GetBuyer", "GetCatalog"},
			avoidCalls:  []string{"ListBuyers", "ListCatalogs"},
		},
		{
			name:        "first listed buyer and its default catalog",
			api:         &fakeCatalog{buyers: []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}, {ID: "b2"}}},
			wantBuyer:   "b1",
			wantCatalog: "c1",
			avoidCalls:  []string{"CreateBuyer", "ListCatalogs"},
		},
		{
			name:        "first listed catalog",
			api:         &fakeCatalog{buyers: []domain.Buyer{{ID: "b1"}}, catalogs: []domain.Catalog{{ID: "c2"}}},
			wantBuyer:   "b1",
			wantCatalog: "c2",
			wantCalls:   []string{"ListCatalogs"},
			avoidCalls:  []string{"CreateCatalog"},
		},
		{
			name:        "defaults created",
			api:         &fakeCatalog{},
			wantBuyer:   domain.DefaultBuyer.ID,
			wantCatalog: domain.DefaultCatalog.ID,
			wantCalls:   []string{"CreateBuyer", "CreateCatalog"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewService(tt.api, nil, result.New(), tt.opts).Import(context.Background(), &feed.Feed{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantBuyer, out.BuyerID)
			assert.Equal(t, tt.wantCatalog, out.CatalogID)
			for _, c := range tt.wantCalls {
				assert.True(t, tt.api.called(c), "expected %s", c)
			}
			for _, c := range tt.avoidCalls {
				assert.False(t, tt.api.called(c), "unexpected %s", c)
			}
			assert.True(t, tt.api.called("SaveCatalogAssignment"))
		})
	}
}

func TestImport_FatalStages(t *testing.T) {
	t.Run("buyer", func(t *testing.T) {
		api := &fakeCatalog{listBuyersErr: errBoom}

		out, err := NewService(api, nil, result.New(), Options{}).Import(context.Background(), &feed.Feed{
			Products: []domain.ProductRow{product("P1", "Men")},
		})

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageBuyerResolved, stageErr.Stage)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, StageSessionEstablished, out.Stage)
		assert.Empty(t, api.categories)
		assert.Empty(t, api.prices)
	})

	t.Run("link", func(t *testing.T) {
		api := &fakeCatalog{buyers: []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}}, linkErr: errBoom}

		out, err := NewService(api, nil, result.New(), Options{}).Import(context.Background(), &feed.Feed{
			Products: []domain.ProductRow{product("P1", "Men")},
		})

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageBuyerCatalogLinked, stageErr.Stage)
		assert.Equal(t, StageCatalogResolved, out.Stage)
		assert.Equal(t, "c1", out.CatalogID)
		assert.Empty(t, api.categories)
	})
}

func TestImport_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	api := &fakeCatalog{
		buyers:     []domain.Buyer{{ID: "b1", DefaultCatalogID: "c1"}},
		onCategory: func() { once.Do(cancel) },
	}
	results := result.New()

	out, err := NewService(api, nil, results, Options{MaxWorkers: 1}).Import(ctx, &feed.Feed{
		Products: []domain.ProductRow{
			product("P1", "Men>Shirts"),
			product("P2", "Women>Tops"),
		},
	})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageCategoriesUploaded, stageErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageCategoriesBuilt, out.Stage)

	require.Len(t, api.categories, 1)
	assert.Empty(t, api.categoryAssigned)
	assert.Empty(t, api.prices)
	assert.Empty(t, api.products)

	categories := stats(t, results, result.KindCategories)
	assert.Equal(t, int64(4), categories.Total)
	assert.Equal(t, int64(3), categories.Skipped)
	assert.Zero(t, categories.Errors)
	assert.Zero(t, stats(t, results, result.KindProducts).Total)
}

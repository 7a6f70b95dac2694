package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"catalog/importer/internal/batch"
	"catalog/importer/internal/client"
	"catalog/importer/internal/domain"
	"catalog/importer/internal/domain/task"
	"catalog/importer/internal/feed"
	"catalog/importer/internal/hierarchy"
	"catalog/importer/internal/queue"
	"catalog/importer/internal/result"
)

type Options struct {
	RunID      string
	BuyerID    string
	CatalogID  string
	MaxWorkers int
}

type Service struct {
	client  client.CatalogService
	queue   queue.Queue
	results *result.Accumulator
	opts    Options
}

// NewService wires an import run. queue may be nil, in which case per-item
// failures are only logged and counted.
func NewService(
	client client.CatalogService,
	queue queue.Queue,
	results *result.Accumulator,
	opts Options,
) *Service {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = batch.DefaultLimit
	}
	return &Service{
		client:  client,
		queue:   queue,
		results: results,
		opts:    opts,
	}
}

// Outcome is what a run got to. It is returned even when Import fails.
type Outcome struct {
	Stage     Stage
	BuyerID   string
	CatalogID string
}

// productTarget is a product row with the leaf categories it links to.
type productTarget struct {
	row    domain.ProductRow
	leaves []string
}

// Import pushes a feed into the catalog. Buyer, catalog and link failures are
// fatal and returned as *StageError; every other failure is counted per item
// and the run carries on. A cancelled ctx stops the run after the current
// stage, with the items it never dispatched counted as skipped.
func (s *Service) Import(ctx context.Context, f *feed.Feed) (*Outcome, error) {
	out := &Outcome{Stage: StageSessionEstablished}

	buyer, err := s.resolveBuyer(ctx)
	if err != nil {
		return out, &StageError{Stage: StageBuyerResolved, Err: err}
	}
	out.BuyerID, out.Stage = buyer.ID, StageBuyerResolved

	catalogID, err := s.resolveCatalog(ctx, buyer)
	if err != nil {
		return out, &StageError{Stage: StageCatalogResolved, Err: err}
	}
	out.CatalogID, out.Stage = catalogID, StageCatalogResolved

	err = s.client.SaveCatalogAssignment(ctx, domain.CatalogAssignment{
		CatalogID:         catalogID,
		BuyerID:           buyer.ID,
		ViewAllCategories: true,
		ViewAllProducts:   true,
	})
	if err != nil {
		return out, &StageError{Stage: StageBuyerCatalogLinked, Err: fmt.Errorf("link buyer %s to catalog %s: %w", buyer.ID, catalogID, err)}
	}
	out.Stage = StageBuyerCatalogLinked
	log.Infof("🔗 Buyer %s can see catalog %s", buyer.ID, catalogID)

	tree, targets := s.buildCategories(ctx, f)
	out.Stage = StageCategoriesBuilt
	log.Infof("🌳 Built %d categories across %d levels", len(tree.Nodes), len(tree.Levels()))

	s.uploadCategories(ctx, catalogID, tree)
	if err := ctx.Err(); err != nil {
		return out, &StageError{Stage: StageCategoriesUploaded, Err: err}
	}
	out.Stage = StageCategoriesUploaded

	s.assignCategories(ctx, catalogID, buyer.ID, tree.IDs)
	if err := ctx.Err(); err != nil {
		return out, &StageError{Stage: StageCategoriesAssignedToBuyer, Err: err}
	}
	out.Stage = StageCategoriesAssignedToBuyer

	s.uploadProducts(ctx, catalogID, targets)
	if err := ctx.Err(); err != nil {
		return out, &StageError{Stage: StageProductsUploaded, Err: err}
	}
	out.Stage = StageProductsUploaded
	products := s.results.Counter(result.KindProducts).Snapshot()
	log.Infof("📦 Uploaded products: %d/%d processed, %d errors", products.Processed, products.Total, products.Errors)

	out.Stage = StageDone
	log.Infof("✅ Import finished for catalog %s", catalogID)
	return out, nil
}

func (s *Service) resolveBuyer(ctx context.Context) (*domain.Buyer, error) {
	if s.opts.BuyerID != "" {
		buyer, err := s.client.GetBuyer(ctx, s.opts.BuyerID)
		if err != nil {
			return nil, fmt.Errorf("get buyer %s: %w", s.opts.BuyerID, err)
		}
		log.Infof("👤 Using buyer %s", buyer.ID)
		return buyer, nil
	}

	buyers, err := s.client.ListBuyers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buyers: %w", err)
	}
	if len(buyers) > 0 {
		log.Infof("👤 Using existing buyer %s", buyers[0].ID)
		return &buyers[0], nil
	}

	buyer, err := s.client.CreateBuyer(ctx, domain.DefaultBuyer)
	if err != nil {
		return nil, fmt.Errorf("create default buyer: %w", err)
	}
	log.Infof("👤 Created buyer %s", buyer.ID)
	return buyer, nil
}

func (s *Service) resolveCatalog(ctx context.Context, buyer *domain.Buyer) (string, error) {
	if s.opts.CatalogID != "" {
		catalog, err := s.client.GetCatalog(ctx, s.opts.CatalogID)
		if err != nil {
			return "", fmt.Errorf("get catalog %s: %w", s.opts.CatalogID, err)
		}
		log.Infof("📚 Using catalog %s", catalog.ID)
		return catalog.ID, nil
	}

	if buyer.DefaultCatalogID != "" {
		log.Infof("📚 Using buyer default catalog %s", buyer.DefaultCatalogID)
		return buyer.DefaultCatalogID, nil
	}

	catalogs, err := s.client.ListCatalogs(ctx)
	if err != nil {
		return "", fmt.Errorf("list catalogs: %w", err)
	}
	if len(catalogs) > 0 {
		log.Infof("📚 Using existing catalog %s", catalogs[0].ID)
		return catalogs[0].ID, nil
	}

	catalog, err := s.client.CreateCatalog(ctx, domain.DefaultCatalog)
	if err != nil {
		return "", fmt.Errorf("create default catalog: %w", err)
	}
	log.Infof("📚 Created catalog %s", catalog.ID)
	return catalog.ID, nil
}

// buildCategories rebuilds the tree and resolves every product's leaf
// categories. With category rows the ids come from them; otherwise they are
// derived from the products' own breadcrumbs.
func (s *Service) buildCategories(ctx context.Context, f *feed.Feed) (*hierarchy.Tree, []productTarget) {
	categories := s.results.Counter(result.KindCategories)
	assignments := s.results.Counter(result.KindProductAssignments)

	var builder *hierarchy.Builder
	if len(f.Categories) > 0 {
		builder = hierarchy.NewBuilder(hierarchy.LookupFromRows(f.Categories))
		for _, row := range f.Categories {
			if _, err := builder.AddPath(row.Breadcrumb); err != nil {
				categories.AddTotal(1)
				categories.Settle(err)
				s.recordFailure(ctx, result.KindCategories, row.Breadcrumb, err)
			}
		}
	} else {
		builder = hierarchy.NewBuilder(nil)
	}

	targets := make([]productTarget, 0, len(f.Products))
	for _, row := range f.Products {
		var (
			leaves []string
			errs   []error
		)
		if len(f.Categories) > 0 {
			for _, path := range hierarchy.SplitPaths(row.Breadcrumbs) {
				leaf, err := builder.Resolve(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				leaves = append(leaves, leaf)
			}
		} else {
			leaves, errs = builder.AddRecord(row.Breadcrumbs)
		}

		for _, err := range errs {
			assignments.AddTotal(1)
			assignments.Settle(err)
			s.recordFailure(ctx, result.KindProductAssignments, row.ID, err)
		}

		targets = append(targets, productTarget{row: row, leaves: dedupe(leaves)})
	}

	return builder.Tree(), targets
}

// uploadCategories runs one batch per depth so every parent has settled
// before its children are sent.
func (s *Service) uploadCategories(ctx context.Context, catalogID string, tree *hierarchy.Tree) {
	counter := s.results.Counter(result.KindCategories)

	for depth, level := range tree.Levels() {
		batch.Run(ctx, level, func(ctx context.Context, node domain.CategoryNode) error {
			err := s.client.SaveCategory(ctx, catalogID, domain.NewCategory(node))
			if err != nil {
				s.recordFailure(ctx, result.KindCategories, node.ID, err)
			}
			return err
		},
			batch.WithLimit(s.opts.MaxWorkers),
			batch.WithCounter(counter),
			batch.WithName(fmt.Sprintf("categories (depth %d)", depth)),
		)
	}
}

// assignCategories makes every processed category visible to the buyer,
// including ones whose upsert failed.
func (s *Service) assignCategories(ctx context.Context, catalogID, buyerID string, ids []string) {
	batch.Run(ctx, ids, func(ctx context.Context, id string) error {
		err := s.client.SaveCategoryAssignment(ctx, catalogID, domain.NewCategoryAssignment(id, buyerID))
		if err != nil {
			s.recordFailure(ctx, result.KindCategoryAssignments, id, err)
		}
		return err
	},
		batch.WithLimit(s.opts.MaxWorkers),
		batch.WithCounter(s.results.Counter(result.KindCategoryAssignments)),
		batch.WithName("category assignments"),
	)
}

// uploadProducts saves each product's price schedule, then the product, then
// its category links. A failed price schedule or product skips everything
// after it for that row.
func (s *Service) uploadProducts(ctx context.Context, catalogID string, targets []productTarget) {
	assignments := s.results.Counter(result.KindProductAssignments)

	// Links are only announced for dispatched products, so a cancelled run
	// still settles every link it counted.
	batch.Run(ctx, targets, func(ctx context.Context, t productTarget) error {
		assignments.AddTotal(len(t.leaves))
		if err := s.client.SavePriceSchedule(ctx, domain.NewPriceSchedule(t.row)); err != nil {
			s.skipAssignments(t)
			s.recordFailure(ctx, result.KindProducts, t.row.ID, fmt.Errorf("price schedule: %w", err))
			return err
		}

		if err := s.client.SaveProduct(ctx, domain.NewProduct(t.row)); err != nil {
			s.skipAssignments(t)
			s.recordFailure(ctx, result.KindProducts, t.row.ID, err)
			return err
		}

		for _, leaf := range t.leaves {
			err := s.client.SaveProductAssignment(ctx, catalogID, domain.ProductAssignment{
				CategoryID: leaf,
				ProductID:  t.row.ID,
			})
			assignments.Settle(err)
			if err != nil {
				s.recordFailure(ctx, result.KindProductAssignments, t.row.ID+"->"+leaf, err)
			}
		}
		return nil
	},
		batch.WithLimit(s.opts.MaxWorkers),
		batch.WithCounter(s.results.Counter(result.KindProducts)),
		batch.WithName("products"),
	)
}

func (s *Service) skipAssignments(t productTarget) {
	assignments := s.results.Counter(result.KindProductAssignments)
	for range t.leaves {
		assignments.Skip()
	}
}

// recordFailure logs a per-item failure and publishes it when a failure
// queue is configured. Publishing problems never affect the run.
func (s *Service) recordFailure(ctx context.Context, kind result.Kind, itemID string, err error) {
	log.Warnf("❌ %s %s failed: %v", kind, itemID, err)

	if s.queue == nil {
		return
	}

	failed := &task.FailedItemTask{
		RunID:    s.opts.RunID,
		Kind:     string(kind),
		ItemID:   itemID,
		Error:    err.Error(),
		FailedAt: time.Now().UTC(),
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Request != nil {
		failed.RequestMethod = apiErr.Request.Method
		failed.RequestURL = apiErr.Request.URL
	}

	if _, addErr := s.queue.AddTask(ctx, failed); addErr != nil {
		log.Errorf("❌ Failed to publish failure for %s %s: %v", kind, itemID, addErr)
	}
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package container

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"catalog/importer/internal/client"
	"catalog/importer/internal/config"
	"catalog/importer/internal/domain"
	"catalog/importer/internal/feed"
	"catalog/importer/internal/queue"
	"catalog/importer/internal/repository"
	"catalog/importer/internal/result"
	"catalog/importer/internal/service"
	"catalog/importer/internal/session"
)

// Container holds all initialized components of one import run
type Container struct {
	Config     *config.Config
	RunID      string
	Sessions   session.Provider
	Source     *feed.Source
	Results    *result.Accumulator
	Repository repository.RunRepository // nil unless database.enabled
	Queue      queue.Queue              // nil unless redis.enabled

	newClient func(*session.Session) client.CatalogService
	db        *pgxpool.Pool
}

// Report is what the CLI prints once a run ends.
type Report struct {
	RunID    string
	Outcome  *service.Outcome
	Summary  result.Summary
	Rejected []*feed.RowError
	// ItemErrors is set when at least one item failed without stopping the run.
	ItemErrors bool
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config:   cfg,
		RunID:    uuid.NewString(),
		Sessions: session.NewPortalProvider(cfg.Session, cfg.Catalog),
		Source:   feed.NewSource(cfg.Feed),
		Results:  result.New(),
		newClient: func(s *session.Session) client.CatalogService {
			return client.NewCatalogClient(s, cfg.Catalog)
		},
	}

	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		container.db = db

		repo := repository.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		container.Repository = repo
		log.Info("✅ Run ledger enabled")
	}

	if cfg.Redis.Enabled {
		q, err := NewQueue(ctx, cfg.Redis)
		if err != nil {
			container.Close()
			return nil, err
		}
		container.Queue = q
		log.Info("✅ Failure stream enabled")
	}

	return container, nil
}

// NewQueue connects to Redis and returns the failure queue.
func NewQueue(ctx context.Context, cfg config.RedisConfig) (queue.Queue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")

	return queue.NewRedisQueue(rdb, cfg.StreamMaxLen), nil
}

// Run logs in and loads the feed concurrently, then imports. Both setup
// steps are fatal. The run is written to the ledger whatever the outcome.
func (c *Container) Run(ctx context.Context) (*Report, error) {
	started := time.Now().UTC()
	report := &Report{RunID: c.RunID}

	var (
		sess *session.Session
		data *feed.Feed
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		sess, err = c.Sessions.Login(gctx, session.CredentialsFromConfig(c.Config.Session))
		if err != nil {
			return &service.StageError{Stage: service.StageSessionEstablished, Err: err}
		}
		return nil
	})

	g.Go(func() error {
		var err error
		data, err = c.Source.Load(gctx)
		if err != nil {
			return fmt.Errorf("failed to load feed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err == nil {
		report.Rejected = data.Rejected

		svc := service.NewService(c.newClient(sess), c.Queue, c.Results, service.Options{
			RunID:      c.RunID,
			BuyerID:    c.Config.Import.BuyerID,
			CatalogID:  c.Config.Import.CatalogID,
			MaxWorkers: c.Config.Import.MaxWorkers,
		})
		report.Outcome, err = svc.Import(ctx, data)
	}

	report.Summary = c.Results.Summary()
	report.ItemErrors = c.Results.HasErrors()
	c.saveRun(ctx, started, report, err)

	return report, err
}

func (c *Container) saveRun(ctx context.Context, started time.Time, report *Report, runErr error) {
	if c.Repository == nil {
		return
	}

	run := &domain.RunSummary{
		ID:            c.RunID,
		MarketplaceID: c.Config.Session.MarketplaceID,
		Environment:   c.Config.Session.Environment,
		Status:        domain.RunStatusSucceeded,
		StartedAt:     started,
		FinishedAt:    time.Now().UTC(),
		Stats:         report.Summary.RunStats(),
	}
	if report.Outcome != nil {
		run.BuyerID = report.Outcome.BuyerID
		run.CatalogID = report.Outcome.CatalogID
	}
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}

	// A cancelled run still gets its ledger row.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := c.Repository.SaveRun(saveCtx, run); err != nil {
		log.Errorf("❌ Failed to save run %s: %v", c.RunID, err)
		return
	}
	log.Debugf("Saved run %s as %s", c.RunID, run.Status)
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Debug("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			return fmt.Errorf("failed to close redis: %w", err)
		}
	}

	log.Debug("Container shut down successfully")
	return nil
}

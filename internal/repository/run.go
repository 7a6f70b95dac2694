package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"catalog/importer/internal/domain"
)

// Schema creates the run ledger table.
const Schema = `
CREATE TABLE IF NOT EXISTS import_runs (
	id             TEXT PRIMARY KEY,
	marketplace_id TEXT NOT NULL,
	environment    TEXT NOT NULL,
	buyer_id       TEXT,
	catalog_id     TEXT,
	status         TEXT NOT NULL,
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	stats          JSONB NOT NULL
)`

type RunRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveRun(ctx context.Context, run *domain.RunSummary) error
}

// Execer is the part of *pgxpool.Pool the repository uses.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type runRepository struct {
	db Execer
}

func NewRunRepository(db Execer) RunRepository {
	return &runRepository{
		db: db,
	}
}

func (r *runRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create import_runs: %w", err)
	}
	return nil
}

func (r *runRepository) SaveRun(ctx context.Context, run *domain.RunSummary) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}

	query := `
	INSERT INTO import_runs (id, marketplace_id, environment, buyer_id, catalog_id, status, error, started_at, finished_at, stats)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id)
	DO UPDATE SET buyer_id = $4, catalog_id = $5, status = $6, error = $7, finished_at = $9, stats = $10`
	_, err = r.db.Exec(ctx, query,
		run.ID,
		run.MarketplaceID,
		run.Environment,
		run.BuyerID,
		run.CatalogID,
		string(run.Status),
		run.Error,
		run.StartedAt,
		run.FinishedAt,
		stats,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	return nil
}

package domain

import "time"

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunStats mirrors one result counter at the end of a run.
type RunStats struct {
	Processed int64 `json:"processed"`
	Total     int64 `json:"total"`
	Errors    int64 `json:"errors"`
	Skipped   int64 `json:"skipped"`
}

// RunSummary is the report written to the run ledger.
type RunSummary struct {
	ID            string              `json:"id"`
	MarketplaceID string              `json:"marketplace_id"`
	Environment   string              `json:"environment"`
	BuyerID       string              `json:"buyer_id,omitempty"`
	CatalogID     string              `json:"catalog_id,omitempty"`
	Status        RunStatus           `json:"status"`
	Error         string              `json:"error,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	Stats         map[string]RunStats `json:"stats"`
}

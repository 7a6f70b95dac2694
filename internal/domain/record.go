package domain

import "github.com/shopspring/decimal"

// Record is one raw feed row keyed by header name.
type Record map[string]string

// Get returns the value of a column, or "" when the column is absent.
func (r Record) Get(column string) string {
	return r[column]
}

// ProductRow is a validated product feed row.
type ProductRow struct {
	Line         int             `json:"line"`
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Description  string          `json:"description,omitempty"`
	RawPrice     string          `json:"-" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url,omitempty"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Breadcrumbs  string          `json:"breadcrumbs,omitempty"` // one or more paths separated by "|"
}

// CategoryRow is a validated category feed row.
type CategoryRow struct {
	Line       int    `json:"line"`
	Breadcrumb string `json:"breadcrumb" validate:"required"`
	ID         string `json:"id" validate:"required"`
}

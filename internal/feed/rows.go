package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"catalog/importer/internal/config"
	"catalog/importer/internal/domain"
)

var ErrMissingColumn = errors.New("feed file missing required column")

// RowError describes a feed row that was rejected before any remote call.
type RowError struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: %s %s", e.File, e.Line, e.Field, e.Message)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// schema parses raw records into typed rows for one file kind.
type schema struct {
	file string
	// columns maps struct field names to header names for error messages.
	columns map[string]string
}

func (s schema) requireColumns(t *Table, names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return fmt.Errorf("%w: %s has no %q column", ErrMissingColumn, s.file, name)
		}
	}
	return nil
}

func (s schema) validationErrors(line int, row any) []*RowError {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []*RowError{{File: s.file, Line: line, Field: "row", Message: err.Error()}}
	}

	out := make([]*RowError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := s.columns[fe.StructField()]
		if field == "" {
			field = fe.StructField()
		}
		out = append(out, &RowError{File: s.file, Line: line, Field: field, Message: "is " + fe.Tag()})
	}
	return out
}

// parsePrice accepts plain decimals with an optional leading currency symbol
// and thousands separators.
func parsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("is not a number: %q", raw)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative: %q", raw)
	}
	return price, nil
}

func parseProducts(file string, t *Table, cfg config.FeedConfig) ([]domain.ProductRow, []*RowError, error) {
	cols := cfg.ProductColumns
	s := schema{
		file: file,
		columns: map[string]string{
			"ID":       cols.ID,
			"Name":     cols.Name,
			"RawPrice": cols.Price,
		},
	}
	if err := s.requireColumns(t, cols.ID, cols.Name, cols.Price); err != nil {
		return nil, nil, err
	}

	rows := make([]domain.ProductRow, 0, len(t.Rows))
	var rejected []*RowError
	for _, r := range t.Rows {
		row := domain.ProductRow{
			Line:         r.Line,
			ID:           r.Record.Get(cols.ID),
			Name:         r.Record.Get(cols.Name),
			Description:  r.Record.Get(cols.Description),
			RawPrice:     r.Record.Get(cols.Price),
			ImageURL:     r.Record.Get(cols.ImageURL),
			ThumbnailURL: r.Record.Get(cols.ThumbnailURL),
			Breadcrumbs:  r.Record.Get(cols.Breadcrumbs),
		}

		if errs := s.validationErrors(r.Line, row); len(errs) > 0 {
			rejected = append(rejected, errs...)
			continue
		}

		price, err := parsePrice(row.RawPrice)
		if err != nil {
			rejected = append(rejected, &RowError{File: file, Line: r.Line, Field: cols.Price, Message: err.Error()})
			continue
		}
		row.Price = price

		if cfg.StripHTML {
			row.Description = stripHTML(row.Description)
		}
		if cfg.PrefixImages {
			row.ImageURL = prefixURL(cfg.ImageURLPrefix, row.ImageURL)
			row.ThumbnailURL = prefixURL(cfg.ImageURLPrefix, row.ThumbnailURL)
		}

		rows = append(rows, row)
	}

	return rows, rejected, nil
}

func parseCategories(file string, t *Table, cols config.CategoryColumns) ([]domain.CategoryRow, []*RowError, error) {
	s := schema{
		file: file,
		columns: map[string]string{
			"Breadcrumb": cols.Breadcrumb,
			"ID":         cols.ID,
		},
	}
	if err := s.requireColumns(t, cols.Breadcrumb, cols.ID); err != nil {
		return nil, nil, err
	}

	rows := make([]domain.CategoryRow, 0, len(t.Rows))
	var rejected []*RowError
	for _, r := range t.Rows {
		row := domain.CategoryRow{
			Line:       r.Line,
			Breadcrumb: r.Record.Get(cols.Breadcrumb),
			ID:         r.Record.Get(cols.ID),
		}
		if errs := s.validationErrors(r.Line, row); len(errs) > 0 {
			rejected = append(rejected, errs...)
			continue
		}
		rows = append(rows, row)
	}

	return rows, rejected, nil
}

// prefixURL joins relative image paths onto prefix. Absolute and
// protocol-relative URLs pass through.
func prefixURL(prefix, u string) string {
	if u == "" || prefix == "" {
		return u
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(u, "//") {
		return u
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(u, "/")
}

func logRejected(rejected []*RowError) {
	for _, e := range rejected {
		log.Warnf("⚠️ Skipping row: %v", e)
	}
}

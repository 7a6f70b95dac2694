package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"catalog/importer/internal/client"
	"catalog/importer/internal/config"
	"catalog/importer/internal/container"
	"catalog/importer/internal/domain/task"
	"catalog/importer/internal/service"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

func printBanner(w io.Writer, cfg *config.Config) {
	bold.Fprintln(w, "Catalog Importer")
	fmt.Fprintf(w, "  marketplace: %s (%s)\n", cfg.Session.MarketplaceID, cfg.Session.Environment)
	if cfg.Feed.ProductsPath != "" {
		fmt.Fprintf(w, "  products:    %s\n", cfg.Feed.ProductsPath)
	} else {
		fmt.Fprintf(w, "  template:    %s\n", cfg.Feed.Template)
	}
	if cfg.Feed.CategoriesPath != "" {
		fmt.Fprintf(w, "  categories:  %s\n", cfg.Feed.CategoriesPath)
	}
	fmt.Fprintln(w)
}

func printUsageError(w io.Writer, err error) {
	red.Fprintf(w, "> %s\n", err)
}

func printSummary(w io.Writer, report *container.Report) {
	stage := service.StageStart
	if report.Outcome != nil {
		stage = report.Outcome.Stage
	}

	fmt.Fprintln(w)
	bold.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "  %-20s %s\n", "stage", stage)

	for _, e := range report.Summary {
		line := fmt.Sprintf("  %-20s %d/%d processed, %d errors", e.Kind, e.Processed, e.Total, e.Errors)
		if e.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", e.Skipped)
		}
		if e.Errors > 0 {
			yellow.Fprintln(w, line)
		} else {
			green.Fprintln(w, line)
		}
	}

	if n := len(report.Rejected); n > 0 {
		yellow.Fprintf(w, "  %-20s %d rows\n", "rejected", n)
		for _, r := range report.Rejected {
			fmt.Fprintf(w, "    %s\n", r.Error())
		}
	}

	if report.ItemErrors {
		yellow.Fprintln(w, "Finished with item errors")
	}
}

// printFatal prints a run-stopping error with the failed request and any
// itemized errors the catalog API returned.
func printFatal(w io.Writer, err error) {
	red.Fprintf(w, "✖ %s\n", err)

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	if apiErr.Request != nil {
		fmt.Fprintf(w, "  %s\n", apiErr.Request)
	}
	if len(apiErr.Errors) > 0 {
		data, mErr := json.MarshalIndent(apiErr.Errors, "  ", "  ")
		if mErr == nil {
			fmt.Fprintf(w, "  %s\n", data)
		}
	}
}

func printFailures(w io.Writer, failures []*task.FailedItemTask) {
	if len(failures) == 0 {
		green.Fprintln(w, "No recorded failures")
		return
	}
	for _, f := range failures {
		bold.Fprintf(w, "%s  %s %s\n", f.FailedAt.Format("2006-01-02 15:04:05"), f.Kind, f.ItemID)
		fmt.Fprintf(w, "  run:   %s\n", f.RunID)
		if f.RequestMethod != "" {
			fmt.Fprintf(w, "  call:  %s %s\n", f.RequestMethod, f.RequestURL)
		}
		fmt.Fprintf(w, "  error: %s\n", strings.TrimSpace(f.Error))
	}
}

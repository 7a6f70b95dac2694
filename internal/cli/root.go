package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"catalog/importer/internal/config"
	"catalog/importer/internal/container"
	"catalog/importer/internal/feed"
)

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "catalog-importer",
		Short: "Import a product and category feed into a marketplace catalog",
		Long: `Imports a delimited product feed, and optionally a category feed, into a
marketplace catalog. Categories are rebuilt from breadcrumb paths such as
"Men>Shirts", uploaded parents first, made visible to the buyer, and linked
to their products.

Examples:
  # Import the built-in template into a sandbox marketplace
  catalog-importer -u jane -p secret -m my-marketplace

  # Import your own files
  catalog-importer -u jane -p secret -m my-marketplace -f products.csv -c categories.csv

Exit codes:
  0  finished, possibly with per-item errors (see the summary)
  1  the run stopped on a fatal error
  3  missing or invalid options`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       versionString(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to a YAML config file (default ./config.yaml when present)")
	pf.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging, including every catalog API call")

	f := cmd.Flags()
	f.StringP("username", "u", "", "Portal username")
	f.StringP("password", "p", "", "Portal password")
	f.StringP("marketplace-id", "m", "", "ID of the marketplace to import into")
	f.StringP("environment", "e", "sandbox", "Target environment: sandbox, staging or production")
	f.StringP("template", "t", "riggsandporter", "Built-in feed template ("+strings.Join(feed.Templates(), ", ")+")")
	f.StringP("filepath", "f", "", "Path to a products file; takes precedence over --template")
	f.StringP("categories-filepath", "c", "", "Path to a categories file")
	f.String("buyer-id", "", "Import for this buyer instead of the first existing one")
	f.String("catalog-id", "", "Import into this catalog instead of the buyer's default")
	f.Bool("prefix-images", false, "Prefix relative image URLs with --image-url-prefix")
	f.String("image-url-prefix", "", "Base URL for relative image URLs")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newFailuresCmd(opts))

	return cmd
}

func configureLogging(level string, verbose bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("⚠️ Unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
}

func runImport(cmd *cobra.Command, opts *rootOptions) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		printUsageError(errOut, err)
		return withCode(exitUsage, err)
	}
	configureLogging(cfg.Log.Level, opts.verbose)

	if err := cfg.Validate(); err != nil {
		printUsageError(errOut, err)
		if errors.Is(err, config.ErrMissingCredentials) {
			_ = cmd.Usage()
		}
		return withCode(exitUsage, err)
	}

	printBanner(out, cfg)

	ctx := cmd.Context()
	app, err := container.New(ctx, cfg)
	if err != nil {
		printFatal(errOut, err)
		return withCode(exitFailure, err)
	}
	defer app.Close()

	report, err := app.Run(ctx)
	if report != nil {
		printSummary(out, report)
	}
	if err != nil {
		fmt.Fprintln(errOut)
		printFatal(errOut, err)
		return withCode(exitFailure, err)
	}

	return nil
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !reported(err) {
		fmt.Fprintln(stderr, err)
	}
	return exitCode(err)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"catalog/importer/internal/config"
	"catalog/importer/internal/container"
	"catalog/importer/internal/domain/task"
	"catalog/importer/internal/queue"
)

var errRedisDisabled = errors.New("the failure stream needs redis.enabled=true")

func newFailuresCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int64
		runID string
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List per-item failures recorded in the failure stream",
		Long: `Reads the most recent per-item failures that import runs published to Redis.

Examples:
  # Show the last 20 failures
  REDIS_ENABLED=true catalog-importer failures

  # Only failures of one run
  catalog-importer failures --config config.yaml --run-id 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			errOut := cmd.ErrOrStderr()

			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				printUsageError(errOut, err)
				return withCode(exitUsage, err)
			}
			configureLogging(cfg.Log.Level, opts.verbose)

			if !cfg.Redis.Enabled {
				printUsageError(errOut, errRedisDisabled)
				return withCode(exitUsage, errRedisDisabled)
			}

			fatal := func(err error) error {
				printFatal(errOut, err)
				return withCode(exitFailure, err)
			}

			q, err := container.NewQueue(cmd.Context(), cfg.Redis)
			if err != nil {
				return fatal(err)
			}
			defer q.Close()

			msgs, err := q.RecentTasks(cmd.Context(), (&task.FailedItemTask{}).TaskType(), limit)
			if err != nil {
				return fatal(err)
			}

			failures, err := queue.DecodeFailures(msgs)
			if err != nil {
				return fatal(err)
			}

			printFailures(cmd.OutOrStdout(), filterRun(failures, runID))
			return nil
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 20, "Maximum number of failures to show")
	cmd.Flags().StringVar(&runID, "run-id", "", "Only show failures of this run")

	return cmd
}

func filterRun(failures []*task.FailedItemTask, runID string) []*task.FailedItemTask {
	if runID == "" {
		return failures
	}
	out := failures[:0]
	for _, f := range failures {
		if f.RunID == runID {
			out = append(out, f)
		}
	}
	return out
}

package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/history"
	"github.com/provisor/provisor/pkg/telemetry"
)

func newApplyCommand() *cobra.Command {
	var (
		dryRun          bool
		continueOnError bool
		parallelism     int
		timeout         time.Duration
		historyPath     string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge the host to the manifest",
		Long: `Converge the host to the state declared in the manifest.

Each resource is checked first; only diverged resources are applied. A
failed resource skips its dependents (and with the default fail-fast
policy, everything not yet started), and the report records an outcome for
every declared resource. Re-running after a partial failure only touches
what is still diverged.`,
		Example: `  # Converge with the default fail-fast policy
  provisor apply -m provisor.yaml

  # Show what would change without touching anything
  provisor apply -m provisor.yaml --dry-run

  # Keep independent branches going past a failure
  provisor apply -m provisor.yaml --continue-on-error --parallelism 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			plan, err := loadPlan(manifestPath)
			if err != nil {
				return err
			}

			policy := engine.FailFast
			if continueOnError {
				policy = engine.ContinueOnError
			}

			exec := engine.NewExecutor(engine.Options{
				Policy:          policy,
				DryRun:          dryRun,
				Parallelism:     parallelism,
				ResourceTimeout: timeout,
				Logger:          log,
				Metrics:         telemetry.NewMetrics(),
			})

			report := exec.Execute(cmd.Context(), plan)

			if historyPath != "" && !dryRun {
				store, err := history.Open(historyPath)
				if err != nil {
					return err
				}
				// Journaling failures must not mask the run result.
				if err := store.RecordRun(cmd.Context(), manifestPath, report); err != nil {
					log.Warn().Err(err).Msg("failed to journal run")
				}
				store.Close()
			}

			if err := renderReport(report); err != nil {
				return err
			}
			return exitWith(report.ExitCode())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report pending actions without applying")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep independent branches running past a failure")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "max concurrent resources (1 = sequential)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-resource timeout (0 = none)")
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite run journal path (empty = no journal)")

	return cmd
}

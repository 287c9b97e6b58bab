package commands

import (
	"github.com/spf13/cobra"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/telemetry"
)

func newPlanCommand() *cobra.Command {
	var (
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: `Check every resource and report the pending actions without applying
anything. Equivalent to apply --dry-run: probes run, mutations do not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			plan, err := loadPlan(manifestPath)
			if err != nil {
				return err
			}

			exec := engine.NewExecutor(engine.Options{
				DryRun:      true,
				Parallelism: parallelism,
				Logger:      log,
				Metrics:     telemetry.NewMetrics(),
			})

			report := exec.Execute(cmd.Context(), plan)
			if err := renderReport(report); err != nil {
				return err
			}
			return exitWith(report.ExitCode())
		},
	}

	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "max concurrent probes (1 = sequential)")

	return cmd
}

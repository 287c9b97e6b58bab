// Package commands implements the provisor CLI.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/telemetry"
)

var (
	// Global flags
	manifestPath string
	logLevel     string
	logFormat    string
	jsonOutput   bool
)

// Execute runs the root command and returns the process exit code.
// Planning failures (unparseable manifest, unknown dependency, cycle) exit
// with a distinct code because nothing was touched.
func Execute(ctx context.Context, version, commit, buildDate string) int {
	rootCmd := newRootCommand(version, commit, buildDate)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var coded *codedError
		if errors.As(err, &coded) {
			return coded.code
		}
		pterm.Error.Println(err.Error())
		if engine.KindOf(err).IsPlanning() {
			return engine.ExitPlanningFailed
		}
		return engine.ExitExecutionFailed
	}
	return engine.ExitSuccess
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "provisor",
		Short: "Provisor - declarative host provisioning",
		Long: `Provisor converges a host to the state declared in a manifest.

Each resource is checked before it is touched: already-satisfied resources
are left alone, so re-running a manifest is always safe and is the repair
mechanism after a partial failure.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "provisor.yaml", "manifest file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output reports in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

func newLogger() (*telemetry.Logger, error) {
	return telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  logLevel,
		Format: logFormat,
		Output: "stderr",
	})
}

// codedError carries a precomputed exit code through cobra's error return,
// letting deferred cleanup (history store, log file) run before the process
// exits. The report itself was already rendered; no extra message prints.
type codedError struct {
	code int
}

func (e *codedError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func exitWith(code int) error {
	if code == engine.ExitSuccess {
		return nil
	}
	return &codedError{code: code}
}

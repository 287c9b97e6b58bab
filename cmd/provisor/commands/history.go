package commands

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/provisor/provisor/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	var (
		historyPath string
		limit       int
		runID       string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs",
		Long: `List runs recorded in the SQLite journal, newest first. With --run,
show the per-resource outcomes of a single run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(historyPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				steps, err := store.StepResults(cmd.Context(), runID)
				if err != nil {
					return err
				}
				return renderSteps(steps)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderRuns(runs)
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "provisor-history.db", "SQLite run journal path")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show step outcomes of one run")

	return cmd
}

func renderRuns(runs []history.RunRecord) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	rows := pterm.TableData{{"RUN", "STARTED", "STATUS", "DURATION", "UNCHANGED", "APPLIED", "FAILED", "SKIPPED"}}
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status, r.Duration.String(),
			strconv.Itoa(r.Summary.Unchanged), strconv.Itoa(r.Summary.Applied),
			strconv.Itoa(r.Summary.Failed), strconv.Itoa(r.Summary.Skipped),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func renderSteps(steps []history.StepRecord) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	}

	rows := pterm.TableData{{"RESOURCE", "KIND", "OUTCOME", "DURATION", "DETAIL"}}
	for _, s := range steps {
		detail := s.Reason
		if s.Error != "" {
			detail = s.Error
		}
		outcome := s.Outcome
		if s.Tolerated {
			outcome += " (tolerated)"
		}
		rows = append(rows, []string{s.ResourceID, s.ResourceKind, outcome, s.Duration.String(), detail})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

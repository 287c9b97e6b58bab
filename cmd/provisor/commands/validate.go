package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest and its dependency graph",
		Long: `Parse the manifest, validate every resource declaration, and plan the
dependency order without touching the host. Catches unknown dependencies
and cycles before any run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(manifestPath)
			if err != nil {
				return err
			}

			pterm.Success.Println(fmt.Sprintf("%s: %d resources, %d levels",
				manifestPath, len(plan.Steps), len(plan.Levels())))
			return nil
		},
	}

	return cmd
}

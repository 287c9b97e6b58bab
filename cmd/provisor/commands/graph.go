package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the dependency graph in DOT format",
		Long: `Print the planned dependency graph in Graphviz DOT format.

Pipe through dot to render:
  provisor graph -m provisor.yaml | dot -Tsvg -o plan.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(manifestPath)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), plan.ToDOT())
			return nil
		},
	}

	return cmd
}

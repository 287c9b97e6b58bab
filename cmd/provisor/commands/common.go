package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/provisor/provisor/pkg/config"
	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/system"
)

// loadPlan parses the manifest, binds resources to the host, and plans the
// run. Everything that can fail here is a planning failure: nothing has
// been touched yet.
func loadPlan(path string) (*engine.Plan, error) {
	loader := config.NewLoader()
	manifest, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	runner := system.NewExecRunner()
	// A missing package manager only matters when the manifest declares
	// package resources; BuildResources enforces that.
	pkgs, _ := system.DetectPackageManager(runner)

	rs, err := loader.BuildResources(manifest, filepath.Dir(path), config.Collaborators{
		Runner:   runner,
		Packages: pkgs,
		Units:    system.NewSystemd(runner),
		Compose:  system.NewDockerCompose(runner),
	})
	if err != nil {
		return nil, err
	}

	graph, err := engine.NewGraph(rs)
	if err != nil {
		return nil, err
	}
	return graph.Plan()
}

// renderReport prints the run report, honoring --json.
func renderReport(report *engine.RunReport) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	rows := pterm.TableData{{"RESOURCE", "KIND", "OUTCOME", "DURATION", "DETAIL"}}
	for _, res := range report.Results {
		outcome := string(res.Outcome.Kind)
		if res.Outcome.Kind == engine.OutcomeApplied && report.DryRun {
			outcome = "would apply"
		}
		if res.Outcome.Tolerated {
			outcome += " (tolerated)"
		}
		rows = append(rows, []string{
			res.ResourceID, res.ResourceKind, outcome,
			res.Duration.Round(1e6).String(), res.Outcome.Reason,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	s := report.Summarize()
	line := fmt.Sprintf("%d unchanged, %d applied, %d failed, %d skipped",
		s.Unchanged, s.Applied, s.Failed, s.Skipped)
	switch report.Status {
	case engine.RunSuccess:
		pterm.Success.Println(line)
	case engine.RunCancelled:
		pterm.Warning.Println("run cancelled: " + line)
	default:
		pterm.Error.Println("run failed: " + line)
	}
	return nil
}

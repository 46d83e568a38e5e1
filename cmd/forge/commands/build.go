package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/engine"
)

func newBuildCommand(version string) *cobra.Command {
	var (
		targets  []string
		skipFuse bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the project for the selected targets",
		Long: `Build the project once per selected target, strictly in order.

Target selection: explicit --target flags win, then the manifest's pinned
targets, then the host default mapping (macOS builds both darwin
architectures and fuses them into a universal binary; Linux and Windows
build their single x86_64 target; unrecognized hosts build natively).

A non-zero exit from the build command halts the remaining targets and the
process exits 1. A build that exits zero without producing its artifact is
reported as a distinct outcome and degrades the run instead of failing it.`,
		Example: `  # Build for this host's default targets
  forge build

  # Build a single explicit target
  forge build --target x86_64-unknown-linux-gnu

  # Build both darwin halves without fusing
  forge build --skip-fuse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest()
			if err != nil {
				return err
			}
			if len(targets) > 0 {
				m.Targets = targets
				if err := m.Validate(); err != nil {
					return err
				}
			}

			tel, err := newTelemetry(version)
			if err != nil {
				return err
			}
			ctx := tel.WithContext(cmd.Context())
			defer tel.Shutdown(ctx)

			pipeline, cleanup, err := newPipeline(ctx, m, tel)
			if err != nil {
				return err
			}
			defer cleanup()
			pipeline.SkipFusion = skipFuse

			report, runErr := pipeline.Execute(ctx)
			printReport(report)
			return runErr
		},
	}

	cmd.Flags().StringArrayVarP(&targets, "target", "t", nil, "build only this target triple (repeatable)")
	cmd.Flags().BoolVar(&skipFuse, "skip-fuse", false, "skip universal binary fusion")

	return cmd
}

// printReport writes the run summary: JSON on --json, a short table
// otherwise.
func printReport(report *engine.Report) {
	if report == nil {
		return
	}
	if jsonOutput {
		_ = json.NewEncoder(os.Stdout).Encode(report)
		return
	}

	fmt.Printf("\nRun %s (%s) on %s: %s\n", report.RunID, report.Project, report.Host, report.Status)
	for _, step := range report.Steps {
		printStep(step)
	}
	if report.Universal != nil {
		printStep(*report.Universal)
	}
}

func printStep(step engine.StepResult) {
	switch step.Status {
	case engine.StepSucceeded:
		fmt.Printf("  ok       %-28s %s (%s)\n", step.Target, step.ArtifactPath, step.Duration.Round(time.Millisecond))
	case engine.StepFailed:
		fmt.Printf("  FAIL     %-28s exit status %d\n", step.Target, step.ExitCode)
	case engine.StepSkipped:
		fmt.Printf("  skipped  %-28s\n", step.Target)
	case engine.StepArtifactMissing:
		fmt.Printf("  missing  %-28s expected %s\n", step.Target, step.ArtifactPath)
	}
}

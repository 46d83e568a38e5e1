package commands

import (
	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/launch"
	"github.com/crossforge/crossforge/pkg/platform"
	"github.com/crossforge/crossforge/pkg/telemetry"
)

func newRunCommand(version string) *cobra.Command {
	var (
		yes     bool
		noBuild bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, then optionally launch the produced binary",
		Long: `Run the build pipeline to a terminal outcome, then prompt whether to
launch the most specific produced binary (universal first, then the host
target, then the native build). The binary starts detached; forge does not
supervise it.

A missing binary at launch time is a warning, not an error.`,
		Example: `  # Build and prompt before launching
  forge run

  # Build and launch without prompting
  forge run --yes

  # Launch whatever a previous build produced
  forge run --no-build`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest()
			if err != nil {
				return err
			}

			tel, err := newTelemetry(version)
			if err != nil {
				return err
			}
			ctx := tel.WithContext(cmd.Context())
			defer tel.Shutdown(ctx)
			log := tel.Logger

			host := platform.DetectHost()
			if !noBuild {
				pipeline, cleanup, err := newPipeline(ctx, m, tel)
				if err != nil {
					return err
				}
				defer cleanup()

				report, runErr := pipeline.Execute(ctx)
				printReport(report)
				if runErr != nil {
					return runErr
				}
				host = pipeline.Host
			}

			// The launch step is only reached once the build outcome is
			// terminal.
			artifact := launch.PickArtifact(m, host)
			if artifact == "" {
				log.Warn("no output binary found; nothing to launch")
				return nil
			}

			launcher := launch.NewLauncher()
			if !yes && !launcher.Confirm("Launch "+artifact+"?") {
				log.Info("leaving binary un-launched")
				return nil
			}

			_, span := tel.Tracer.StartLaunchSpan(ctx, artifact)
			if err := launcher.Launch(artifact); err != nil {
				telemetry.RecordError(span, err)
				span.End()
				return err
			}
			telemetry.RecordSuccess(span)
			span.End()
			tel.Metrics.RecordLaunch()

			log.Infof("launched %s (detached)", artifact)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "launch without prompting")
	cmd.Flags().BoolVar(&noBuild, "no-build", false, "skip the build and launch an existing binary")

	return cmd
}

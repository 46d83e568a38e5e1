package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/engine"
	"github.com/crossforge/crossforge/pkg/fusion"
	"github.com/crossforge/crossforge/pkg/platform"
	"github.com/crossforge/crossforge/pkg/toolchain"
)

func newFuseCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse existing darwin artifacts into a universal binary",
		Long: `Merge the previously built Apple Silicon and Intel binaries into one
universal executable. Unlike the fusion step inside 'forge build', which is
skipped silently when an artifact is missing, this explicit command fails
loudly when either input is absent.`,
		Example: `  forge fuse`,
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

			armPath := platform.TargetDarwinARM64.ArtifactPath(m.OutputDir, m.Binary)
			amdPath := platform.TargetDarwinAMD64.ArtifactPath(m.OutputDir, m.Binary)
			for _, in := range []string{armPath, amdPath} {
				if _, err := os.Stat(in); err != nil {
					return fmt.Errorf("fusion requires both darwin artifacts; missing %s", in)
				}
			}

			runner := &toolchain.ExecRunner{Stream: true}
			fuser := fusion.NewLipoFuser(m.Toolchain.FuseCommand, runner)
			output := platform.UniversalPath(m.OutputDir, m.Binary)

			result, err := fuser.Fuse(ctx, output, armPath, amdPath)
			if err != nil {
				return engine.NewFusionError(-1, err)
			}
			if result.ExitCode != 0 {
				return engine.NewFusionError(result.ExitCode, nil)
			}
			tel.Metrics.RecordFusion(string(engine.StepSucceeded))

			log.Infof("fused universal binary: %s", output)
			fmt.Println(output)
			return nil
		},
	}
	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/platform"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the build manifest",
		Long: `Parse the manifest, check it against the closed target set, and
print the targets a build on this host would select.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest()
			if err != nil {
				return err
			}

			host := platform.DetectHost()
			targets, err := m.TargetList()
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				targets = platform.TargetsForHost(host)
			}

			fmt.Printf("Manifest OK: project=%s binary=%s toolchain=%s\n",
				m.Project, m.Binary, m.Toolchain.Command)
			fmt.Printf("Host %s would build:\n", host)
			for _, t := range targets {
				fmt.Printf("  %s\n", t)
			}
			return nil
		},
	}
	return cmd
}

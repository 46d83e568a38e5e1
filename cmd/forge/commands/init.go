package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/config"
)

func newInitCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter build manifest",
		Long: `Write a starter forge.yaml with the default release profile:
optimizer level 3, fat link-time optimization, a single codegen unit and
stripped symbols.`,
		Example: `  # Create forge.yaml for a project
  forge init --project dino-runner`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := config.Default(project)
			path := manifestPath()
			if err := m.Write(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project name")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

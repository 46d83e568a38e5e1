package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent build runs",
		Long: `List recent build runs from the history database, newest first.
With --run, show the per-target steps of one run instead.`,
		Example: `  # Last 20 runs
  forge history

  # Steps of one run
  forge history --run 4f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest()
			if err != nil {
				return err
			}
			if m.Store.Path == "" {
				return fmt.Errorf("build history is disabled (store.path is empty)")
			}

			ctx := cmd.Context()
			store, err := stores.Open(ctx, m.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				steps, err := store.ListSteps(ctx, runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return json.NewEncoder(os.Stdout).Encode(steps)
				}
				for _, s := range steps {
					fmt.Printf("%-28s %-16s exit=%-3d %8s  %s\n",
						s.Target, s.Status, s.ExitCode,
						s.Duration.Round(time.Millisecond), s.ArtifactPath)
				}
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(runs)
			}
			for _, r := range runs {
				completed := "-"
				if r.CompletedAt != nil {
					completed = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
				}
				fmt.Printf("%s  %-12s %-10s %-20s %s\n",
					r.ID, r.Project, r.Status,
					r.StartedAt.Format(time.RFC3339), completed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the steps of this run")

	return cmd
}

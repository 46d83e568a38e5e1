package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/platform"
)

func newTargetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List supported build targets",
		Long: `List the closed set of supported target triples and mark those the
current host selects by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := platform.DetectHost()
			selected := make(map[platform.Target]bool)
			for _, t := range platform.TargetsForHost(host) {
				selected[t] = true
			}

			if jsonOutput {
				out := struct {
					Host     string   `json:"host"`
					Targets  []string `json:"targets"`
					Selected []string `json:"selected"`
				}{Host: host.String()}
				for _, t := range platform.All() {
					out.Targets = append(out.Targets, t.String())
				}
				for _, t := range platform.TargetsForHost(host) {
					out.Selected = append(out.Selected, t.String())
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("Host: %s\n", host)
			for _, t := range platform.All() {
				marker := " "
				if selected[t] {
					marker = "*"
				}
				fmt.Printf("  %s %s\n", marker, t)
			}
			if selected[platform.TargetNative] {
				fmt.Println("  * native (host default build)")
			}
			return nil
		},
	}
	return cmd
}

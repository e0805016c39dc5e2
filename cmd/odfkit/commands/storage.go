package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Storage returns the parent command for inspecting the storage cluster.
func Storage() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the storage cluster",
	}

	cmd.AddCommand(StorageStatus())

	return cmd
}

// StorageStatus returns the command for showing ceph cluster status.
//
// This command reads health, capacity, and OSD population from the
// toolbox pod on the provider cluster.
//
// Flags:
//
//	--config, -c: Path to the run configuration (default "odfkit.yaml")
//	--json: Output status as JSON
func StorageStatus() *cobra.Command {
	var (
		configPath string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ceph health, capacity, and OSD population",
		Long: `Show the ceph cluster status on the provider.

Runs ceph status, df, and osd stat through the toolbox pod and prints
health, raw capacity usage, and the OSD population.

Examples:
  odfkit storage status
  odfkit storage status --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.StorageStatus(cmd.Context(), configPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

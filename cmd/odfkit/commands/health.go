package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Health returns the command for showing the health of every cluster.
//
// This command checks each configured cluster: API reachability, node
// readiness, cluster operator state, and the role-specific storage
// state (ceph health on the provider, client operator presence on
// clients).
//
// Flags:
//
//	--config, -c: Path to the run configuration (default "odfkit.yaml")
//	--cluster: Check only this cluster
//	--watch, -w: Refresh continuously
//	--json: Output in JSON format
func Health() *cobra.Command {
	var (
		configPath  string
		clusterName string
		watch       bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the health of every configured cluster",
		Long: `Show the health of the clusters in the run configuration.

For each cluster the command reports whether the API answers, how many
nodes are ready, how many cluster operators are degraded, and the
role-specific storage state: ceph health on the provider, client
operator installation on clients.

Examples:
  odfkit health
  odfkit health --cluster provider-1
  odfkit health --watch
  odfkit health --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Health(cmd.Context(), configPath, clusterName, watch, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Check only this cluster")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh continuously")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

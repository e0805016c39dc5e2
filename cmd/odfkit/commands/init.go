package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Init returns the command for interactively creating a run configuration.
//
// This command guides users through describing their clusters using an
// interactive wizard with text inputs, single-select prompts, and
// confirmations, and writes the result as a configuration YAML file.
//
// Flags:
//
//	--output, -o: Path to output file (default "odfkit.yaml")
//	--advanced, -a: Show advanced configuration options
//	--full, -f: Output full YAML with all options (default: minimal output)
func Init() *cobra.Command {
	var (
		outputPath string
		advanced   bool
		fullOutput bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a run configuration",
		Long: `Interactively create a run configuration file.

This command guides you through describing the clusters a run manages,
one cluster at a time. For each cluster it will ask about:

  - Cluster identity (name, role, and platform)
  - Cluster access (kubeconfig path)
  - Storage cluster settings (provider clusters only)
  - Load balancer address pool (bare-metal clusters only)
  - Hosted cluster fleet settings (hub clusters only)

Use --advanced for additional options like the object storage
endpoint used by the S3 workload.

Use --full to output the complete YAML with all configuration
options (useful for manual editing). By default, a minimal
YAML is generated with only essential values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath, advanced, fullOutput)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "odfkit.yaml", "Output file path")
	cmd.Flags().BoolVarP(&advanced, "advanced", "a", false, "Show advanced configuration options")
	cmd.Flags().BoolVarP(&fullOutput, "full", "f", false, "Output full YAML with all options")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Hosted returns the parent command for managing the hosted cluster
// fleet.
//
// This command provides subcommands for creating, verifying, and
// destroying the hosted clusters the hub manages, and for retrieving
// their kubeconfigs.
func Hosted() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosted",
		Short: "Manage the hosted cluster fleet",
	}

	cmd.AddCommand(HostedCreate())
	cmd.AddCommand(HostedVerify())
	cmd.AddCommand(HostedDestroy())
	cmd.AddCommand(HostedKubeconfig())

	return cmd
}

// HostedCreate returns the command for creating the hosted cluster fleet.
func HostedCreate() *cobra.Command {
	var (
		configPath  string
		skipClients bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the hosted cluster fleet and connect it to storage",
		Long: `Create the configured hosted clusters on the hub.

Brings the fleet to the configured size, reusing clusters that already
exist, and waits until every control plane is available and every node
pool is at its target replica count. When the run has a provider
cluster, the storage client operator is then installed into each guest
and connected to the provider with a fresh onboarding ticket.

Re-running is safe: existing clusters, installed operators, and
connected clients are all left alone.

Examples:
  odfkit hosted create
  odfkit hosted create --skip-clients`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.HostedCreate(cmd.Context(), configPath, skipClients)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().BoolVar(&skipClients, "skip-clients", false, "Create the fleet without installing storage clients")

	return cmd
}

// HostedVerify returns the command for verifying the hosted cluster fleet.
func HostedVerify() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify every hosted cluster end to end",
		Long: `Verify the hosted cluster fleet against the provider.

Checks each cluster in stages: the control plane is reachable and its
nodes ready, the client operator is installed and its storage client
connected, the ceph storage classes exist in the guest, and the
provider still sees a fresh heartbeat from the cluster's consumer.
A failed stage skips the stages behind it for that cluster; the other
clusters are still checked. The command fails if any cluster failed any
stage, listing every failure.

Examples:
  odfkit hosted verify`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.HostedVerify(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")

	return cmd
}

// HostedDestroy returns the command for destroying the hosted cluster fleet.
func HostedDestroy() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the hosted cluster fleet",
		Long: `Destroy every hosted cluster the configuration names.

Tears each cluster down through the hosted control plane CLI and waits
until the hub no longer knows it. Clusters that are already gone are
skipped.

Examples:
  odfkit hosted destroy`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.HostedDestroy(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")

	return cmd
}

// HostedKubeconfig returns the command for fetching a guest kubeconfig.
func HostedKubeconfig() *cobra.Command {
	var (
		configPath string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "kubeconfig NAME",
		Short: "Fetch the kubeconfig of a hosted cluster",
		Long: `Fetch the kubeconfig the control plane published for a hosted
cluster, waiting for it if the control plane has not written it yet.

Without --output the kubeconfig is printed to stdout.

Examples:
  odfkit hosted kubeconfig hcp-0
  odfkit hosted kubeconfig hcp-0 -o hcp-0.kubeconfig`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.HostedKubeconfig(cmd.Context(), configPath, args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the kubeconfig to this file instead of stdout")

	return cmd
}

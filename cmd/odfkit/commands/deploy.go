package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Deploy returns the parent command for installing operators.
//
// This command provides subcommands for deploying the storage stack and
// its companion operators onto the clusters named in the run
// configuration.
func Deploy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy operators onto configured clusters",
	}

	cmd.AddCommand(DeployODF())
	cmd.AddCommand(DeployCertManager())
	cmd.AddCommand(DeployMetalLB())
	cmd.AddCommand(DeployMCE())
	cmd.AddCommand(DeployCNV())

	return cmd
}

// DeployODF returns the command for deploying the storage stack.
//
// This command installs the storage operator through OLM on the
// provider cluster, creates the storage cluster, and waits until it is
// serving.
//
// Flags:
//
//	--config, -c: Path to the run configuration (default "odfkit.yaml")
func DeployODF() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "odf",
		Short: "Deploy the storage operator and storage cluster",
		Long: `Deploy the storage operator and storage cluster on the provider.

Installs the operator through OLM, from a custom catalog image when one
is configured, creates the storage cluster with the configured device
sets, and waits until it reports Ready and its storage classes exist.

When the run has client or hosted clusters, the storage cluster is
deployed in provider mode so remote consumers can onboard.

Examples:
  odfkit deploy odf
  odfkit deploy odf -c run.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DeployODF(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")

	return cmd
}

// DeployCertManager returns the command for deploying cert-manager.
func DeployCertManager() *cobra.Command {
	var (
		configPath  string
		clusterName string
	)

	cmd := &cobra.Command{
		Use:   "cert-manager",
		Short: "Deploy cert-manager via its Helm chart",
		Long: `Deploy cert-manager on a cluster via its Helm chart.

Hosted control planes need cert-manager on the hub for their serving
certificates, so without --cluster the chart lands on the hub.

Examples:
  odfkit deploy cert-manager
  odfkit deploy cert-manager --cluster provider-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DeployCertManager(cmd.Context(), configPath, clusterName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Target cluster (default: the hub)")

	return cmd
}

// DeployMetalLB returns the command for deploying MetalLB.
func DeployMetalLB() *cobra.Command {
	var (
		configPath  string
		clusterName string
	)

	cmd := &cobra.Command{
		Use:   "metallb",
		Short: "Deploy MetalLB with the configured address pool",
		Long: `Deploy MetalLB on a bare-metal cluster.

Installs the MetalLB operator through OLM, creates the MetalLB
instance, and publishes an address pool with the addresses configured
for the cluster. LoadBalancer services, including the storage provider
endpoint, get their addresses from this pool.

Examples:
  odfkit deploy metallb
  odfkit deploy metallb --cluster provider-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DeployMetalLB(cmd.Context(), configPath, clusterName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Target cluster (default: the provider)")

	return cmd
}

// DeployMCE returns the command for deploying multicluster engine.
func DeployMCE() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mce",
		Short: "Deploy the multicluster engine on the hub",
		Long: `Deploy the multicluster engine operator on the hub cluster.

Installs the operator through OLM, creates the MultiClusterEngine with
the hypershift components enabled, and waits for the hosted control
plane CRDs to register. Required before hosted clusters can be created.

Examples:
  odfkit deploy mce`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DeployMCE(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")

	return cmd
}

// DeployCNV returns the command for deploying OpenShift Virtualization.
func DeployCNV() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cnv",
		Short: "Deploy OpenShift Virtualization on the hub",
		Long: `Deploy the OpenShift Virtualization operator on the hub cluster.

Installs the operator through OLM and creates the HyperConverged
instance. Hosted clusters on the kubevirt platform run their worker
nodes as virtual machines, so the hub needs this before creating them.

Examples:
  odfkit deploy cnv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DeployCNV(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")

	return cmd
}

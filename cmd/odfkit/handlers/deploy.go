// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/odfkit/odfkit/internal/deployment"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

// Deployer interface for testing - matches the single-cluster installers.
type Deployer interface {
	Deploy(ctx context.Context) error
}

// StorageDeployer interface for testing - matches deployment.ODF.
type StorageDeployer interface {
	Deploy(ctx context.Context) error
	ProviderEndpoint(ctx context.Context) (string, error)
}

// AddressPoolDeployer interface for testing - matches deployment.MetalLB.
type AddressPoolDeployer interface {
	Deploy(ctx context.Context, addresses []string) error
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadFramework loads the run configuration and builds the framework.
	loadFramework = framework.Load

	// newClusterClient builds an API client from a kubeconfig path.
	newClusterClient = ocp.NewClient

	// newODF creates the storage stack installer.
	newODF = func(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps, cfg framework.StorageConfig, provider bool) StorageDeployer {
		d := deployment.NewODF(client, timeouts, steps, cfg)
		d.Provider = provider
		return d
	}

	// newCertManager creates the cert-manager installer.
	newCertManager = func(kubeconfig []byte, steps *framework.Steps) Deployer {
		return deployment.NewCertManager(kubeconfig, steps)
	}

	// newMetalLB creates the MetalLB installer.
	newMetalLB = func(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps) AddressPoolDeployer {
		return deployment.NewMetalLB(client, timeouts, steps)
	}

	// newMCE creates the multicluster engine installer.
	newMCE = func(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps) Deployer {
		return deployment.NewMCE(client, timeouts, steps)
	}

	// newCNV creates the virtualization installer.
	newCNV = func(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps) Deployer {
		return deployment.NewCNV(client, timeouts, steps)
	}

	// readFile reads a file (for testing injection).
	readFile = os.ReadFile
)

// DeployODF installs the storage operator and storage cluster on the
// provider cluster and waits until it is serving.
//
// When the run has client clusters or a hosted fleet, the storage
// cluster is deployed in provider mode so remote consumers can onboard.
func DeployODF(ctx context.Context, configPath string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	provider := fw.Provider()
	client, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}

	log.Printf("Deploying the storage stack on cluster %q", provider.Name)

	providerMode := hasConsumers(fw)
	odf := newODF(client, fw.Timeouts(), fw.Steps(), provider.Storage, providerMode)
	if err := odf.Deploy(ctx); err != nil {
		return err
	}

	printODFSuccess(ctx, odf, provider, providerMode)
	return nil
}

// DeployCertManager installs cert-manager via its Helm chart. Hosted
// control planes need it on the hub, so that is the default target.
func DeployCertManager(ctx context.Context, configPath, clusterName string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	cluster, err := targetCluster(fw, clusterName, fw.Hub())
	if err != nil {
		return err
	}

	kubeconfig, err := readFile(cluster.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to read kubeconfig for cluster %q: %w", cluster.Name, err)
	}

	log.Printf("Deploying cert-manager on cluster %q", cluster.Name)
	if err := newCertManager(kubeconfig, fw.Steps()).Deploy(ctx); err != nil {
		return err
	}

	fmt.Printf("\ncert-manager is ready on cluster %q\n", cluster.Name)
	return nil
}

// DeployMetalLB installs MetalLB and publishes the address pool
// configured for the cluster.
func DeployMetalLB(ctx context.Context, configPath, clusterName string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	cluster, err := targetCluster(fw, clusterName, fw.Provider())
	if err != nil {
		return err
	}
	if len(cluster.MetalLBAddresses) == 0 {
		return fmt.Errorf("cluster %q has no metallb_addresses configured", cluster.Name)
	}

	client, err := newClusterClient(cluster.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", cluster.Name, err)
	}

	log.Printf("Deploying MetalLB on cluster %q", cluster.Name)
	if err := newMetalLB(client, fw.Timeouts(), fw.Steps()).Deploy(ctx, cluster.MetalLBAddresses); err != nil {
		return err
	}

	fmt.Printf("\nMetalLB is ready on cluster %q, address pool has %d entries\n", cluster.Name, len(cluster.MetalLBAddresses))
	return nil
}

// DeployMCE installs the multicluster engine on the hub cluster.
func DeployMCE(ctx context.Context, configPath string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	hub := fw.Hub()
	client, err := newClusterClient(hub.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", hub.Name, err)
	}

	log.Printf("Deploying the multicluster engine on cluster %q", hub.Name)
	if err := newMCE(client, fw.Timeouts(), fw.Steps()).Deploy(ctx); err != nil {
		return err
	}

	fmt.Printf("\nMulticluster engine is ready on cluster %q\n", hub.Name)
	return nil
}

// DeployCNV installs OpenShift Virtualization on the hub cluster.
func DeployCNV(ctx context.Context, configPath string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	hub := fw.Hub()
	client, err := newClusterClient(hub.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", hub.Name, err)
	}

	log.Printf("Deploying OpenShift Virtualization on cluster %q", hub.Name)
	if err := newCNV(client, fw.Timeouts(), fw.Steps()).Deploy(ctx); err != nil {
		return err
	}

	fmt.Printf("\nOpenShift Virtualization is ready on cluster %q\n", hub.Name)
	return nil
}

// targetCluster resolves the cluster a command acts on: the named one,
// or the given default when the name is empty.
func targetCluster(fw *framework.Framework, name string, fallback *framework.Cluster) (*framework.Cluster, error) {
	if name == "" {
		return fallback, nil
	}
	cluster := fw.Config().ByName(name)
	if cluster == nil {
		return nil, fmt.Errorf("unknown cluster %q", name)
	}
	return cluster, nil
}

// hasConsumers reports whether the storage cluster must serve remote
// consumers: true when the run has client clusters or a hosted fleet.
func hasConsumers(fw *framework.Framework) bool {
	if len(fw.Clients()) > 0 {
		return true
	}
	for _, cl := range fw.Config().Clusters {
		if cl.Hosted.Count > 0 {
			return true
		}
	}
	return false
}

// printODFSuccess outputs the completion message and, in provider mode,
// the endpoint remote consumers onboard against.
func printODFSuccess(ctx context.Context, odf StorageDeployer, provider *framework.Cluster, providerMode bool) {
	fmt.Println()
	fmt.Printf("Storage cluster %s is ready on cluster %q\n", provider.Storage.StorageClusterName, provider.Name)

	if !providerMode {
		return
	}
	endpoint, err := odf.ProviderEndpoint(ctx)
	if err != nil {
		log.Printf("Provider endpoint not resolvable yet: %v", err)
		return
	}
	fmt.Printf("Provider endpoint: %s\n", endpoint)
}

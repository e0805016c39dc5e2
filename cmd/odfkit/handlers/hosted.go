package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/odfkit/odfkit/internal/deployment"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/hosted"
	"github.com/odfkit/odfkit/internal/ocp"
)

// FleetManager interface for testing - matches hosted.Orchestrator.
type FleetManager interface {
	Create(ctx context.Context) error
	Verify(ctx context.Context, provider *ocp.Client, providerNamespace string) *hosted.Results
	Destroy(ctx context.Context) error
	GuestKubeconfig(ctx context.Context, name string) ([]byte, error)
	InstallClients(ctx context.Context, provider *deployment.ODF, catalogImage, channel string) error
}

// Factory function variables for hosted - can be replaced in tests.
var (
	// newFleetManager creates the orchestrator for the hub's fleet.
	newFleetManager = func(hub *ocp.Client, hubKubeconfig string, timeouts *framework.Timeouts, steps *framework.Steps, cfg framework.HostedConfig) FleetManager {
		return hosted.NewOrchestrator(hub, hosted.NewHCP(hubKubeconfig), timeouts, steps, cfg)
	}

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile
)

// HostedCreate brings the hosted cluster fleet to its configured size
// and, unless skipped, installs and connects the storage client on
// every guest.
func HostedCreate(ctx context.Context, configPath string, skipClients bool) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	hub, fleet, err := hubFleet(fw)
	if err != nil {
		return err
	}

	log.Printf("Creating %d hosted clusters on hub %q", hub.Hosted.Count, hub.Name)
	if err := fleet.Create(ctx); err != nil {
		return err
	}

	if skipClients {
		printHostedCreateSuccess(hub, false)
		return nil
	}

	provider := fw.Provider()
	providerClient, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}

	log.Printf("Connecting storage clients to provider %q", provider.Name)
	odf := deployment.NewODF(providerClient, fw.Timeouts(), fw.Steps(), provider.Storage)
	if err := fleet.InstallClients(ctx, odf, provider.Storage.CatalogImage, provider.Storage.Channel); err != nil {
		return err
	}

	printHostedCreateSuccess(hub, true)
	return nil
}

// HostedVerify checks every hosted cluster in stages against the
// provider and fails if any cluster failed any stage.
func HostedVerify(ctx context.Context, configPath string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	hub, fleet, err := hubFleet(fw)
	if err != nil {
		return err
	}

	provider := fw.Provider()
	providerClient, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}

	log.Printf("Verifying %d hosted clusters against provider %q", hub.Hosted.Count, provider.Name)
	results := fleet.Verify(ctx, providerClient, provider.Storage.Namespace)
	results.Log()

	if err := results.Summarize(); err != nil {
		return err
	}
	fmt.Printf("\nAll %d hosted clusters verified\n", hub.Hosted.Count)
	return nil
}

// HostedDestroy tears down every hosted cluster the configuration
// names.
func HostedDestroy(ctx context.Context, configPath string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	hub, fleet, err := hubFleet(fw)
	if err != nil {
		return err
	}

	log.Printf("Destroying %d hosted clusters on hub %q", hub.Hosted.Count, hub.Name)
	if err := fleet.Destroy(ctx); err != nil {
		return err
	}

	fmt.Printf("\nHosted cluster fleet on %q destroyed\n", hub.Name)
	return nil
}

// HostedKubeconfig fetches the kubeconfig of one hosted cluster and
// writes it to the output path, or stdout when none is given.
func HostedKubeconfig(ctx context.Context, configPath, name, outputPath string) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	_, fleet, err := hubFleet(fw)
	if err != nil {
		return err
	}

	data, err := fleet.GuestKubeconfig(ctx, name)
	if err != nil {
		return err
	}

	if outputPath == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := writeFile(outputPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write kubeconfig: %w", err)
	}
	fmt.Printf("Kubeconfig for %s saved to %s\n", name, outputPath)
	return nil
}

// hubFleet resolves the hub cluster and builds its fleet manager. A hub
// without configured hosted clusters is a configuration mistake worth
// reporting before any API call.
func hubFleet(fw *framework.Framework) (*framework.Cluster, FleetManager, error) {
	hub := fw.Hub()
	if hub.Hosted.Count == 0 {
		return nil, nil, fmt.Errorf("cluster %q has no hosted clusters configured; set hosted.count", hub.Name)
	}

	client, err := newClusterClient(hub.Kubeconfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster %q: %w", hub.Name, err)
	}

	return hub, newFleetManager(client, hub.Kubeconfig, fw.Timeouts(), fw.Steps(), hub.Hosted), nil
}

// printHostedCreateSuccess outputs the completion message and next steps.
func printHostedCreateSuccess(hub *framework.Cluster, clientsConnected bool) {
	fmt.Println()
	fmt.Printf("Hosted cluster fleet on %q is up: %d clusters\n", hub.Name, hub.Hosted.Count)
	if clientsConnected {
		fmt.Println("Storage clients installed and connected on every guest.")
		fmt.Println()
		fmt.Println("Verify the fleet end to end with:")
		fmt.Println("  odfkit hosted verify")
		return
	}
	fmt.Println()
	fmt.Println("Storage clients were not installed. Re-run without --skip-clients")
	fmt.Println("once the provider is ready, or verify with:")
	fmt.Println("  odfkit hosted verify")
}

package handlers

import (
	"context"
	"fmt"
	"log"

	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/odfkit/odfkit/internal/ceph"
	"github.com/odfkit/odfkit/internal/faults"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

// FaultRunner interface for testing - matches faults.Injector.
type FaultRunner interface {
	Run(ctx context.Context) error
}

// CampaignSpec carries the fault campaign settings parsed from flags.
type CampaignSpec struct {
	Faults     []faults.Fault
	Iterations int
	Interface  string
	Seed       int64
}

// Factory function variables for faults - can be replaced in tests.
var (
	// newNodeConsole creates the debug-pod console for host commands.
	// Fault campaigns keep an audit trail of every command they run.
	newNodeConsole = func(kubeconfig string) faults.NodeConsole {
		return ocp.NewOC(kubeconfig).WithAudit(zap.New(zap.UseDevMode(true)))
	}

	// newFaultRunner creates the injector with its campaign settings.
	newFaultRunner = func(client *ocp.Client, console faults.NodeConsole, health faults.HealthCheck, timeouts *framework.Timeouts, steps *framework.Steps, spec CampaignSpec) FaultRunner {
		in := faults.NewInjector(client, console, health, timeouts, steps)
		in.Faults = spec.Faults
		in.Iterations = spec.Iterations
		in.Interface = spec.Interface
		in.Seed = spec.Seed
		return in
	}
)

// FaultsRun executes a network fault campaign on the provider cluster
// and verifies the storage recovered afterwards.
func FaultsRun(ctx context.Context, configPath string, faultSpecs []string, iterations int, iface string, seed int64) error {
	parsed := make([]faults.Fault, 0, len(faultSpecs))
	for _, spec := range faultSpecs {
		f, err := faults.ParseFault(spec)
		if err != nil {
			return err
		}
		parsed = append(parsed, f)
	}

	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	provider := fw.Provider()
	client, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}

	log.Printf("Running fault campaign on cluster %q", provider.Name)

	console := newNodeConsole(provider.Kubeconfig)
	health := ceph.NewTools(client, provider.Storage.Namespace)
	runner := newFaultRunner(client, console, health, fw.Timeouts(), fw.Steps(), CampaignSpec{
		Faults:     parsed,
		Iterations: iterations,
		Interface:  iface,
		Seed:       seed,
	})

	if err := runner.Run(ctx); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Fault campaign on %q completed, storage recovered\n", provider.Name)
	return nil
}

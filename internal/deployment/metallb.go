package deployment

import (
	"context"
	"fmt"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/templates"
)

const (
	metallbNamespace = "metallb-system"
	metallbPackage   = "metallb-operator"
	metallbChannel   = "stable"
	metallbPoolName  = "odfkit-pool"
)

// MetalLB installs the load balancer stack bare-metal clusters need
// before any LoadBalancer service can get an address: the provider API
// service and the hosted control planes both depend on it.
type MetalLB struct {
	client   *ocp.Client
	timeouts *framework.Timeouts
	steps    *framework.Steps
}

// NewMetalLB returns an installer bound to one cluster.
func NewMetalLB(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps) *MetalLB {
	return &MetalLB{client: client, timeouts: timeouts, steps: steps}
}

// Deploy installs the operator, creates the MetalLB instance, and
// configures an address pool when addresses are given.
func (m *MetalLB) Deploy(ctx context.Context, addresses []string) error {
	m.steps.Step("Installing %s in namespace %s", metallbPackage, metallbNamespace)
	spec := OLMSpec{
		Namespace:         metallbNamespace,
		OperatorGroupName: "metallb-operator-operatorgroup",
		CatalogSourceName: "redhat-operators",
		SubscriptionName:  metallbPackage,
		Package:           metallbPackage,
		Channel:           metallbChannel,
	}
	if _, err := NewOLM(m.client, m.timeouts).Install(ctx, spec); err != nil {
		return fmt.Errorf("failed to install metallb operator: %w", err)
	}

	m.steps.Step("Creating MetalLB instance")
	manifest, err := templates.RenderFile("metallb/instance.yaml.tmpl", map[string]interface{}{
		"Namespace": metallbNamespace,
	})
	if err != nil {
		return err
	}
	if _, err := m.client.Apply(ctx, manifest); err != nil {
		return fmt.Errorf("failed to apply metallb instance: %w", err)
	}

	if err := m.client.WaitForDeploymentReady(ctx, metallbNamespace, "controller", m.timeouts.DeploymentReady); err != nil {
		return err
	}

	if len(addresses) == 0 {
		return nil
	}

	m.steps.Step("Configuring address pool %s", metallbPoolName)
	manifest, err = templates.RenderFile("metallb/pool.yaml.tmpl", map[string]interface{}{
		"Namespace": metallbNamespace,
		"PoolName":  metallbPoolName,
		"Addresses": addresses,
	})
	if err != nil {
		return err
	}
	if _, err := m.client.Apply(ctx, manifest); err != nil {
		return fmt.Errorf("failed to apply address pool: %w", err)
	}
	return nil
}

package deployment

import (
	"context"
	"fmt"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
	"github.com/odfkit/odfkit/internal/templates"
)

const (
	mceNamespace = "multicluster-engine"
	mcePackage   = "multicluster-engine"
	mceChannel   = "stable-2.7"
	mceName      = "multiclusterengine"

	// hypershiftNamespace is created by the engine once local hosting
	// is enabled.
	hypershiftNamespace = "hypershift"
)

// MCE installs the multicluster engine and enables hosted control
// planes on the hub.
type MCE struct {
	client   *ocp.Client
	timeouts *framework.Timeouts
	steps    *framework.Steps
}

// NewMCE returns an installer bound to the hub cluster.
func NewMCE(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps) *MCE {
	return &MCE{client: client, timeouts: timeouts, steps: steps}
}

// Deploy installs the operator, creates the MultiClusterEngine with
// hosted control planes enabled, and waits for the hypershift operator
// to come up.
func (m *MCE) Deploy(ctx context.Context) error {
	m.steps.Step("Installing %s in namespace %s", mcePackage, mceNamespace)
	spec := OLMSpec{
		Namespace:         mceNamespace,
		OperatorGroupName: "multicluster-engine-operatorgroup",
		CatalogSourceName: "redhat-operators",
		SubscriptionName:  mcePackage,
		Package:           mcePackage,
		Channel:           mceChannel,
	}
	if _, err := NewOLM(m.client, m.timeouts).Install(ctx, spec); err != nil {
		return fmt.Errorf("failed to install multicluster engine: %w", err)
	}

	m.steps.Step("Creating MultiClusterEngine %s", mceName)
	objs, err := templates.RenderObjects("mce", map[string]interface{}{
		"Name":            mceName,
		"TargetNamespace": mceNamespace,
	})
	if err != nil {
		return fmt.Errorf("failed to render multicluster engine: %w", err)
	}

	engines := resources.MultiClusterEngines(m.client.Dynamic)
	for _, obj := range objs {
		if _, err := engines.CreateIfAbsent(ctx, obj); err != nil {
			return err
		}
	}

	m.steps.Step("Waiting for MultiClusterEngine to become available")
	if err := engines.WaitForPhase(ctx, mceName, "Available", m.timeouts.OperatorInstall); err != nil {
		return err
	}

	m.steps.Step("Waiting for hypershift operator")
	return m.client.WaitForDeploymentReady(ctx, hypershiftNamespace, "operator", m.timeouts.DeploymentReady)
}

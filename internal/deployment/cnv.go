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
	cnvNamespace = "openshift-cnv"
	cnvPackage   = "kubevirt-hyperconverged"
	cnvChannel   = "stable"
)

// CNV installs the virtualization stack hosted clusters on the
// kubevirt platform run on.
type CNV struct {
	client   *ocp.Client
	timeouts *framework.Timeouts
	steps    *framework.Steps
}

// NewCNV returns an installer bound to the hub cluster.
func NewCNV(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps) *CNV {
	return &CNV{client: client, timeouts: timeouts, steps: steps}
}

// Deploy installs the operator, creates the HyperConverged instance,
// and waits for virtualization to report available.
func (c *CNV) Deploy(ctx context.Context) error {
	c.steps.Step("Installing %s in namespace %s", cnvPackage, cnvNamespace)
	spec := OLMSpec{
		Namespace:         cnvNamespace,
		OperatorGroupName: "kubevirt-hyperconverged-group",
		CatalogSourceName: "redhat-operators",
		SubscriptionName:  cnvPackage,
		Package:           cnvPackage,
		Channel:           cnvChannel,
	}
	if _, err := NewOLM(c.client, c.timeouts).Install(ctx, spec); err != nil {
		return fmt.Errorf("failed to install virtualization operator: %w", err)
	}

	c.steps.Step("Creating HyperConverged instance")
	objs, err := templates.RenderObjects("cnv", map[string]interface{}{
		"Namespace": cnvNamespace,
	})
	if err != nil {
		return fmt.Errorf("failed to render hyperconverged: %w", err)
	}

	hcos := resources.HyperConvergeds(c.client.Dynamic, cnvNamespace)
	for _, obj := range objs {
		if _, err := hcos.CreateIfAbsent(ctx, obj); err != nil {
			return err
		}
	}

	c.steps.Step("Waiting for virtualization to become available")
	return hcos.WaitForCondition(ctx, "kubevirt-hyperconverged", "Available", "True", c.timeouts.OperatorInstall)
}

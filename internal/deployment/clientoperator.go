package deployment

import (
	"context"
	"fmt"
	"strings"

	opv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
	"github.com/odfkit/odfkit/internal/templates"
)

const (
	clientPackage       = "ocs-client-operator"
	clientNamespace     = "openshift-storage-client"
	clientOperatorGroup = "openshift-storage-client-operatorgroup"
)

// ClientOperator installs the storage client operator on a consumer
// cluster and connects it to a provider.
type ClientOperator struct {
	client   *ocp.Client
	timeouts *framework.Timeouts

	// CatalogImage overrides the marketplace catalog when set.
	CatalogImage string
	Channel      string
}

// NewClientOperator returns an installer bound to one consumer cluster.
func NewClientOperator(client *ocp.Client, timeouts *framework.Timeouts, catalogImage, channel string) *ClientOperator {
	return &ClientOperator{client: client, timeouts: timeouts, CatalogImage: catalogImage, Channel: channel}
}

func (c *ClientOperator) olmSpec() OLMSpec {
	spec := OLMSpec{
		Namespace:         clientNamespace,
		OperatorGroupName: clientOperatorGroup,
		CatalogSourceName: "redhat-operators",
		SubscriptionName:  clientPackage,
		Package:           clientPackage,
		Channel:           c.Channel,
	}
	if c.CatalogImage != "" {
		spec.CatalogSourceName = "ocs-client-catalogsource"
		spec.CatalogImage = c.CatalogImage
	}
	return spec
}

// Deploy installs the client operator via OLM.
func (c *ClientOperator) Deploy(ctx context.Context) error {
	if _, err := NewOLM(c.client, c.timeouts).Install(ctx, c.olmSpec()); err != nil {
		return fmt.Errorf("failed to install client operator: %w", err)
	}
	return nil
}

// Installed reports whether the client operator's CSV has succeeded,
// without waiting.
func (c *ClientOperator) Installed(ctx context.Context) (bool, error) {
	csvs := &opv1alpha1.ClusterServiceVersionList{}
	err := c.client.Runtime.List(ctx, csvs, &crclient.ListOptions{Namespace: clientNamespace})
	if err != nil {
		return false, fmt.Errorf("failed to list csvs in %s: %w", clientNamespace, err)
	}
	prefix := clientPackage + "."
	for i := range csvs.Items {
		csv := &csvs.Items[i]
		if strings.HasPrefix(csv.Name, prefix) && csv.Status.Phase == opv1alpha1.CSVPhaseSucceeded {
			return true, nil
		}
	}
	return false, nil
}

// Connect creates the StorageClient pointing at the provider and waits
// until it reports Connected.
func (c *ClientOperator) Connect(ctx context.Context, name, providerEndpoint, onboardingTicket string) error {
	if providerEndpoint == "" {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "storageclient",
			Detail:    "provider endpoint is empty",
		}
	}

	objs, err := templates.RenderObjects("storageclient", map[string]interface{}{
		"Name":             name,
		"ProviderEndpoint": providerEndpoint,
		"OnboardingTicket": onboardingTicket,
	})
	if err != nil {
		return fmt.Errorf("failed to render storage client: %w", err)
	}

	clients := resources.StorageClients(c.client.Dynamic)
	for _, obj := range objs {
		if _, err := clients.CreateIfAbsent(ctx, obj); err != nil {
			return err
		}
	}

	return clients.WaitForPhase(ctx, name, "Connected", c.timeouts.ClientConnected)
}

// IsConnected reports the current connection state of a StorageClient.
// A client that does not exist yet is simply not connected.
func (c *ClientOperator) IsConnected(ctx context.Context, name string) (bool, error) {
	clients := resources.StorageClients(c.client.Dynamic)
	obj, err := clients.Get(ctx, name)
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return resources.StorageClientConnected(obj), nil
}

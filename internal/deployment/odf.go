package deployment

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
	"github.com/odfkit/odfkit/internal/templates"
)

const (
	odfPackage         = "odf-operator"
	odfOperatorGroup   = "openshift-storage-operatorgroup"
	odfCatalogSource   = "odf-catalogsource"
	defaultODFChannel  = "stable-4.18"
	providerAPIService = "ocs-provider-server"
	providerAPIPort    = 50051
)

// ODF installs the storage operator and storage cluster on a provider
// cluster.
type ODF struct {
	client   *ocp.Client
	timeouts *framework.Timeouts
	steps    *framework.Steps
	cfg      framework.StorageConfig

	// Provider exposes the storage cluster to remote consumers.
	Provider bool
}

// NewODF returns an installer for one cluster's storage stack.
func NewODF(client *ocp.Client, timeouts *framework.Timeouts, steps *framework.Steps, cfg framework.StorageConfig) *ODF {
	return &ODF{client: client, timeouts: timeouts, steps: steps, cfg: cfg}
}

func (d *ODF) channel() string {
	if d.cfg.Channel != "" {
		return d.cfg.Channel
	}
	return defaultODFChannel
}

func (d *ODF) olmSpec() OLMSpec {
	spec := OLMSpec{
		Namespace:         d.cfg.Namespace,
		OperatorGroupName: odfOperatorGroup,
		CatalogSourceName: "redhat-operators",
		SubscriptionName:  odfPackage,
		Package:           odfPackage,
		Channel:           d.channel(),
	}
	if d.cfg.CatalogImage != "" {
		spec.CatalogSourceName = odfCatalogSource
		spec.CatalogImage = d.cfg.CatalogImage
	}
	return spec
}

// Deploy installs the operator, creates the storage cluster, and waits
// until it is serving. Re-running on a cluster where parts already
// exist picks up where the previous run stopped.
func (d *ODF) Deploy(ctx context.Context) error {
	olm := NewOLM(d.client, d.timeouts)

	d.steps.Step("Installing %s in namespace %s", odfPackage, d.cfg.Namespace)
	if _, err := olm.Install(ctx, d.olmSpec()); err != nil {
		return fmt.Errorf("failed to install storage operator: %w", err)
	}

	d.steps.Step("Creating storage cluster %s", d.cfg.StorageClusterName)
	if err := d.ensureStorageCluster(ctx); err != nil {
		return err
	}

	d.steps.Step("Waiting for storage cluster %s to become ready", d.cfg.StorageClusterName)
	sc := resources.StorageClusters(d.client.Dynamic, d.cfg.Namespace)
	if err := sc.WaitForPhase(ctx, d.cfg.StorageClusterName, "Ready", d.timeouts.StorageCluster); err != nil {
		return err
	}

	d.steps.Step("Waiting for ceph cluster health")
	if err := d.waitForCephHealth(ctx); err != nil {
		return err
	}

	d.steps.Step("Verifying storage classes")
	if err := d.verifyStorageClasses(ctx); err != nil {
		return err
	}

	return nil
}

// waitForCephHealth waits until the Rook ceph cluster backing the
// storage cluster reports healthy. HEALTH_WARN is accepted; a freshly
// deployed cluster commonly warns while it rebalances.
func (d *ODF) waitForCephHealth(ctx context.Context) error {
	cc := resources.CephClusters(d.client.Dynamic, d.cfg.Namespace)
	name := d.cfg.StorageClusterName + "-cephcluster"

	what := fmt.Sprintf("ceph cluster %s health", name)
	return ocp.PollUntil(ctx, what, d.timeouts.PollInterval, d.timeouts.CephHealth, func(ctx context.Context) (bool, string, error) {
		obj, err := cc.Get(ctx, name)
		if apierrors.IsNotFound(err) {
			return false, fmt.Sprintf("ceph cluster %s not created yet", name), nil
		}
		if err != nil {
			return false, "", err
		}
		health, _, err := unstructured.NestedString(obj.Object, "status", "ceph", "health")
		if err != nil {
			return false, "", err
		}
		switch health {
		case "HEALTH_OK", "HEALTH_WARN":
			return true, "", nil
		}
		return false, fmt.Sprintf("ceph health is %q", health), nil
	})
}

// ensureStorageCluster creates the StorageCluster CR unless it already
// exists. An existing cluster whose device-set layout differs from the
// requested one is reported rather than reconciled; resizing a running
// storage cluster is not this installer's job.
func (d *ODF) ensureStorageCluster(ctx context.Context) error {
	sc := resources.StorageClusters(d.client.Dynamic, d.cfg.Namespace)

	existing, err := sc.Get(ctx, d.cfg.StorageClusterName)
	if err == nil {
		return d.checkExistingStorageCluster(existing)
	}
	if !apierrors.IsNotFound(err) {
		return err
	}

	objs, err := templates.RenderObjects("storagecluster", d.templateData())
	if err != nil {
		return fmt.Errorf("failed to render storage cluster: %w", err)
	}
	for _, obj := range objs {
		if _, err := sc.CreateIfAbsent(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (d *ODF) templateData() map[string]interface{} {
	return map[string]interface{}{
		"Name":                 d.cfg.StorageClusterName,
		"Namespace":            d.cfg.Namespace,
		"DeviceSets":           d.cfg.DeviceSets,
		"DeviceSetSize":        d.cfg.DeviceSetSize,
		"ReplicaCount":         d.cfg.ReplicaCount,
		"StorageClassName":     d.cfg.StorageClassName,
		"AllowRemoteConsumers": d.Provider,
	}
}

func (d *ODF) checkExistingStorageCluster(existing *unstructured.Unstructured) error {
	sets, found, err := unstructured.NestedSlice(existing.Object, "spec", "storageDeviceSets")
	if err != nil || !found || len(sets) == 0 {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "storagecluster",
			Detail:    fmt.Sprintf("existing %s carries no storage device sets", existing.GetName()),
		}
	}
	set, ok := sets[0].(map[string]interface{})
	if !ok {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "storagecluster",
			Detail:    fmt.Sprintf("existing %s has a malformed device set", existing.GetName()),
		}
	}
	count, _ := set["count"].(int64)
	if int(count) != d.cfg.DeviceSets {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "storagecluster",
			Detail:    fmt.Sprintf("existing %s has %d device sets, configuration requests %d", existing.GetName(), count, d.cfg.DeviceSets),
		}
	}
	return nil
}

// verifyStorageClasses waits until the file and block storage classes
// derived from the storage cluster exist.
func (d *ODF) verifyStorageClasses(ctx context.Context) error {
	expected := []string{
		d.cfg.StorageClusterName + "-cephfs",
		d.cfg.StorageClusterName + "-ceph-rbd",
	}

	what := fmt.Sprintf("storage classes %v", expected)
	return ocp.PollUntil(ctx, what, d.timeouts.PollInterval, d.timeouts.DeploymentReady, func(ctx context.Context) (bool, string, error) {
		for _, name := range expected {
			_, err := d.client.Clientset.StorageV1().StorageClasses().Get(ctx, name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return false, fmt.Sprintf("storage class %s not created yet", name), nil
			}
			if err != nil {
				return false, "", err
			}
		}
		return true, "", nil
	})
}

// ProviderEndpoint returns the address remote consumers onboard
// against, published by the provider API service.
func (d *ODF) ProviderEndpoint(ctx context.Context) (string, error) {
	svc, err := d.client.Clientset.CoreV1().Services(d.cfg.Namespace).Get(ctx, providerAPIService, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get provider API service: %w", err)
	}

	for _, ingress := range svc.Status.LoadBalancer.Ingress {
		if ingress.IP != "" {
			return fmt.Sprintf("%s:%d", ingress.IP, providerAPIPort), nil
		}
		if ingress.Hostname != "" {
			return fmt.Sprintf("%s:%d", ingress.Hostname, providerAPIPort), nil
		}
	}

	if svc.Spec.Type == corev1.ServiceTypeNodePort {
		return d.nodePortEndpoint(ctx, svc)
	}
	return "", fmt.Errorf("provider API service has no load balancer address yet")
}

func (d *ODF) nodePortEndpoint(ctx context.Context, svc *corev1.Service) (string, error) {
	var nodePort int32
	for _, port := range svc.Spec.Ports {
		if port.Port == providerAPIPort {
			nodePort = port.NodePort
		}
	}
	if nodePort == 0 {
		return "", fmt.Errorf("provider API service exposes no node port")
	}

	workers, err := d.client.ListWorkerNodes(ctx)
	if err != nil {
		return "", err
	}
	if len(workers) == 0 {
		return "", fmt.Errorf("no worker nodes to reach the provider API through")
	}
	ip, err := d.client.NodeInternalIP(ctx, workers[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", ip, nodePort), nil
}

// OnboardingKey reads the provider's private onboarding key, created by
// the operator during deployment.
func (d *ODF) OnboardingKey(ctx context.Context) ([]byte, error) {
	data, err := d.client.ReadSecretKey(ctx, d.cfg.Namespace, "onboarding-private-key", "key")
	if err != nil {
		return nil, fmt.Errorf("failed to read onboarding key: %w", err)
	}
	return data, nil
}

// Undeploy removes the storage cluster and the operator. The namespace
// is left behind for inspection.
func (d *ODF) Undeploy(ctx context.Context) error {
	d.steps.Step("Deleting storage cluster %s", d.cfg.StorageClusterName)
	sc := resources.StorageClusters(d.client.Dynamic, d.cfg.Namespace)
	if err := sc.DeleteAndWait(ctx, d.cfg.StorageClusterName, d.timeouts.ResourceDelete); err != nil {
		return err
	}

	d.steps.Step("Uninstalling %s", odfPackage)
	return NewOLM(d.client, d.timeouts).Uninstall(ctx, d.olmSpec())
}

// Package deployment installs the operators the framework depends on:
// the storage operator on provider clusters, the client operator on
// consumer clusters, and the hub-side virtualization and multi-cluster
// stack. Installers are idempotent; re-running one skips work whose
// target already exists and fails when existing state contradicts the
// requested configuration.
package deployment

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/blang/semver/v4"
	opv1 "github.com/operator-framework/api/pkg/operators/v1"
	opv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

// MarketplaceNamespace holds the cluster's default operator catalogs.
const MarketplaceNamespace = "openshift-marketplace"

// OLMSpec describes one operator installation.
type OLMSpec struct {
	// Namespace the operator installs into. Created when absent.
	Namespace string
	// OperatorGroupName for the namespace. At most one operator group
	// may exist per namespace.
	OperatorGroupName string
	// AllNamespaces installs the operator cluster-wide instead of
	// scoping it to its own namespace.
	AllNamespaces bool
	// CatalogSourceName to subscribe from. When CatalogImage is set a
	// catalog source of this name is created in Namespace; otherwise an
	// existing catalog in the marketplace namespace is used.
	CatalogSourceName string
	CatalogImage      string
	SubscriptionName  string
	Package           string
	Channel           string
}

func (s *OLMSpec) catalogNamespace() string {
	if s.CatalogImage != "" {
		return s.Namespace
	}
	return MarketplaceNamespace
}

// OLM installs operators through the Operator Lifecycle Manager.
type OLM struct {
	client   *ocp.Client
	timeouts *framework.Timeouts
}

// NewOLM returns an installer bound to one cluster.
func NewOLM(client *ocp.Client, timeouts *framework.Timeouts) *OLM {
	return &OLM{client: client, timeouts: timeouts}
}

// Install drives the full chain: namespace, operator group, catalog
// source, subscription, and waits for the CSV to succeed. It returns
// the name of the succeeded CSV.
func (o *OLM) Install(ctx context.Context, spec OLMSpec) (string, error) {
	if spec.Package == "" || spec.Channel == "" {
		return "", fmt.Errorf("operator package and channel are required")
	}

	if err := o.EnsureNamespace(ctx, spec.Namespace); err != nil {
		return "", err
	}
	if err := o.EnsureOperatorGroup(ctx, spec); err != nil {
		return "", err
	}
	if err := o.EnsureCatalogSource(ctx, spec); err != nil {
		return "", err
	}
	if err := o.EnsureSubscription(ctx, spec); err != nil {
		return "", err
	}
	return o.WaitForCSVSucceeded(ctx, spec.Namespace, spec.Package)
}

// EnsureNamespace creates the namespace with the labels and annotations
// operator namespaces need: cluster monitoring enabled and management
// workload partitioning allowed.
func (o *OLM) EnsureNamespace(ctx context.Context, name string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Labels:      map[string]string{"openshift.io/cluster-monitoring": "true"},
			Annotations: map[string]string{"workload.openshift.io/allowed": "management"},
		},
	}
	_, err := o.client.Clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	log.Printf("Created namespace %s", name)
	return nil
}

// EnsureOperatorGroup creates the operator group unless the namespace
// already has one. A namespace with more than one operator group is
// broken beyond what this installer should touch.
func (o *OLM) EnsureOperatorGroup(ctx context.Context, spec OLMSpec) error {
	existing := &opv1.OperatorGroupList{}
	if err := o.client.Runtime.List(ctx, existing, &crclient.ListOptions{Namespace: spec.Namespace}); err != nil {
		return fmt.Errorf("failed to list operator groups in %s: %w", spec.Namespace, err)
	}
	if len(existing.Items) > 1 {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "operatorgroup",
			Detail:    fmt.Sprintf("%d operator groups in namespace %s, expected at most one", len(existing.Items), spec.Namespace),
		}
	}
	if len(existing.Items) == 1 {
		return nil
	}

	og := &opv1.OperatorGroup{
		ObjectMeta: metav1.ObjectMeta{Name: spec.OperatorGroupName, Namespace: spec.Namespace},
	}
	if !spec.AllNamespaces {
		og.Spec.TargetNamespaces = []string{spec.Namespace}
	}
	if err := o.client.Runtime.Create(ctx, og); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create operator group %s: %w", spec.OperatorGroupName, err)
	}
	return nil
}

// EnsureCatalogSource creates a grpc catalog source from the configured
// image and waits for its registry pod to serve. With no image
// configured the operator is expected to come from an existing catalog
// and there is nothing to create.
func (o *OLM) EnsureCatalogSource(ctx context.Context, spec OLMSpec) error {
	if spec.CatalogImage == "" {
		return nil
	}

	cs := &opv1alpha1.CatalogSource{
		ObjectMeta: metav1.ObjectMeta{Name: spec.CatalogSourceName, Namespace: spec.Namespace},
		Spec: opv1alpha1.CatalogSourceSpec{
			SourceType:  opv1alpha1.SourceTypeGrpc,
			Image:       spec.CatalogImage,
			DisplayName: spec.CatalogSourceName,
			Publisher:   "odfkit",
		},
	}
	if err := o.client.Runtime.Create(ctx, cs); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create catalog source %s: %w", spec.CatalogSourceName, err)
	}

	selector := fmt.Sprintf("olm.catalogSource=%s", spec.CatalogSourceName)
	return o.client.WaitForPodsReady(ctx, spec.Namespace, selector, 1, o.timeouts.OperatorInstall)
}

// EnsureSubscription creates the subscription with automatic install
// plan approval.
func (o *OLM) EnsureSubscription(ctx context.Context, spec OLMSpec) error {
	sub := &opv1alpha1.Subscription{
		ObjectMeta: metav1.ObjectMeta{Name: spec.SubscriptionName, Namespace: spec.Namespace},
		Spec: &opv1alpha1.SubscriptionSpec{
			Channel:                spec.Channel,
			InstallPlanApproval:    opv1alpha1.ApprovalAutomatic,
			CatalogSource:          spec.CatalogSourceName,
			CatalogSourceNamespace: spec.catalogNamespace(),
			Package:                spec.Package,
		},
	}
	if err := o.client.Runtime.Create(ctx, sub); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create subscription %s: %w", spec.SubscriptionName, err)
	}
	log.Printf("Subscribed to %s (channel %s) in %s", spec.Package, spec.Channel, spec.Namespace)
	return nil
}

// WaitForCSVSucceeded waits until the CSV installed for the package
// reports the Succeeded phase and returns its name.
func (o *OLM) WaitForCSVSucceeded(ctx context.Context, namespace, pkg string) (string, error) {
	prefix := pkg + "."
	var csvName string

	what := fmt.Sprintf("csv for package %s", pkg)
	err := ocp.PollUntil(ctx, what, o.timeouts.PollInterval, o.timeouts.CSVSucceeded, func(ctx context.Context) (bool, string, error) {
		csvs := &opv1alpha1.ClusterServiceVersionList{}
		if err := o.client.Runtime.List(ctx, csvs, &crclient.ListOptions{Namespace: namespace}); err != nil {
			return false, "", err
		}
		for i := range csvs.Items {
			csv := &csvs.Items[i]
			if !strings.HasPrefix(csv.Name, prefix) {
				continue
			}
			if csv.Status.Phase == opv1alpha1.CSVPhaseSucceeded {
				csvName = csv.Name
				return true, "", nil
			}
			return false, fmt.Sprintf("csv %s in phase %q", csv.Name, csv.Status.Phase), nil
		}
		return false, "waiting on csv to be created", nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("CSV %s succeeded", csvName)
	return csvName, nil
}

// CSVVersion extracts the semantic version from a CSV name such as
// odf-operator.v4.18.3.
func CSVVersion(csvName string) (semver.Version, error) {
	idx := strings.LastIndex(csvName, ".v")
	if idx < 0 {
		return semver.Version{}, fmt.Errorf("csv name %q carries no version", csvName)
	}
	v, err := semver.Parse(csvName[idx+2:])
	if err != nil {
		return semver.Version{}, fmt.Errorf("failed to parse version of csv %q: %w", csvName, err)
	}
	return v, nil
}

// Uninstall removes the subscription, its CSVs, and the catalog source.
// The namespace is left in place.
func (o *OLM) Uninstall(ctx context.Context, spec OLMSpec) error {
	sub := &opv1alpha1.Subscription{
		ObjectMeta: metav1.ObjectMeta{Name: spec.SubscriptionName, Namespace: spec.Namespace},
	}
	if err := o.client.Runtime.Delete(ctx, sub); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete subscription %s: %w", spec.SubscriptionName, err)
	}

	csvs := &opv1alpha1.ClusterServiceVersionList{}
	if err := o.client.Runtime.List(ctx, csvs, &crclient.ListOptions{Namespace: spec.Namespace}); err != nil {
		return fmt.Errorf("failed to list csvs in %s: %w", spec.Namespace, err)
	}
	prefix := spec.Package + "."
	for i := range csvs.Items {
		csv := &csvs.Items[i]
		if !strings.HasPrefix(csv.Name, prefix) {
			continue
		}
		if err := o.client.Runtime.Delete(ctx, csv); err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete csv %s: %w", csv.Name, err)
		}
	}

	if spec.CatalogImage != "" {
		cs := &opv1alpha1.CatalogSource{
			ObjectMeta: metav1.ObjectMeta{Name: spec.CatalogSourceName, Namespace: spec.Namespace},
		}
		if err := o.client.Runtime.Delete(ctx, cs); err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete catalog source %s: %w", spec.CatalogSourceName, err)
		}
	}
	return nil
}

package resources

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

var (
	HostedClusterGVR      = schema.GroupVersionResource{Group: "hypershift.openshift.io", Version: "v1beta1", Resource: "hostedclusters"}
	NodePoolGVR           = schema.GroupVersionResource{Group: "hypershift.openshift.io", Version: "v1beta1", Resource: "nodepools"}
	MultiClusterEngineGVR = schema.GroupVersionResource{Group: "multicluster.openshift.io", Version: "v1", Resource: "multiclusterengines"}
	HyperConvergedGVR     = schema.GroupVersionResource{Group: "hco.kubevirt.io", Version: "v1beta1", Resource: "hyperconvergeds"}
)

// HostedClusters returns a handle on HostedCluster objects in the
// given clusters namespace.
func HostedClusters(client dynamic.Interface, namespace string) *Resource {
	return New(client, HostedClusterGVR, namespace)
}

// NodePools returns a handle on NodePool objects in the given clusters
// namespace.
func NodePools(client dynamic.Interface, namespace string) *Resource {
	return New(client, NodePoolGVR, namespace)
}

// MultiClusterEngines returns a handle on the cluster-scoped
// MultiClusterEngine singleton.
func MultiClusterEngines(client dynamic.Interface) *Resource {
	return New(client, MultiClusterEngineGVR, "")
}

// HyperConvergeds returns a handle on HyperConverged objects in the
// virtualization namespace.
func HyperConvergeds(client dynamic.Interface, namespace string) *Resource {
	return New(client, HyperConvergedGVR, namespace)
}

// HostedClusterAvailable reports whether a HostedCluster's control
// plane is up.
func HostedClusterAvailable(obj *unstructured.Unstructured) bool {
	status, _, found := NamedCondition(obj, "Available")
	return found && status == "True"
}

// NodePoolReady reports whether all requested replicas of a NodePool
// have joined.
func NodePoolReady(obj *unstructured.Unstructured) bool {
	status, _, found := NamedCondition(obj, "Ready")
	if !found || status != "True" {
		return false
	}
	want, _, _ := unstructured.NestedInt64(obj.Object, "spec", "replicas")
	have, _, _ := unstructured.NestedInt64(obj.Object, "status", "replicas")
	return want == have
}

// KubeconfigSecretName returns the name of the secret holding the
// guest cluster's admin kubeconfig, published on HostedCluster status.
func KubeconfigSecretName(obj *unstructured.Unstructured) (string, error) {
	name, found, err := unstructured.NestedString(obj.Object, "status", "kubeconfig", "name")
	if err != nil {
		return "", fmt.Errorf("failed to read kubeconfig reference of %s: %w", obj.GetName(), err)
	}
	if !found || name == "" {
		return "", fmt.Errorf("hostedcluster %s has not published a kubeconfig yet", obj.GetName())
	}
	return name, nil
}

package ocp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func TestResourceForKind(t *testing.T) {
	tests := []struct {
		kind     string
		resource string
	}{
		{"StorageCluster", "storageclusters"},
		{"CephCluster", "cephclusters"},
		{"StorageConsumer", "storageconsumers"},
		{"ClientProfile", "clientprofiles"},
		{"HostedCluster", "hostedclusters"},
		{"NodePool", "nodepools"},
		{"MultiClusterEngine", "multiclusterengines"},
		{"HyperConverged", "hyperconvergeds"},
		{"NetworkPolicy", "networkpolicies"},
		{"SecurityContextConstraints", "securitycontextconstraints"},
		{"StorageClass", "storageclasses"},
		{"ObjectBucketClaim", "objectbucketclaims"},
		{"ConfigMap", "configmaps"},
		{"Proxy", "proxies"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.resource, ResourceForKind(tt.kind))
		})
	}
}

func TestScheme_RegistersExpectedGroups(t *testing.T) {
	s := Scheme()

	known := []schema.GroupVersionKind{
		{Group: "", Version: "v1", Kind: "Pod"},
		{Group: "apps", Version: "v1", Kind: "Deployment"},
		{Group: "operators.coreos.com", Version: "v1alpha1", Kind: "CatalogSource"},
		{Group: "operators.coreos.com", Version: "v1alpha1", Kind: "Subscription"},
		{Group: "operators.coreos.com", Version: "v1", Kind: "OperatorGroup"},
		{Group: "config.openshift.io", Version: "v1", Kind: "ClusterOperator"},
		{Group: "route.openshift.io", Version: "v1", Kind: "Route"},
		{Group: "apiextensions.k8s.io", Version: "v1", Kind: "CustomResourceDefinition"},
	}
	for _, gvk := range known {
		assert.True(t, s.Recognizes(gvk), "scheme should recognize %s", gvk)
	}
}

func TestApply_CreatesAndUpdates(t *testing.T) {
	fakeDynamic := dynfake.NewSimpleDynamicClient(runtime.NewScheme())
	client := &Client{
		Clientset: k8sfake.NewSimpleClientset(),
		Dynamic:   fakeDynamic,
	}

	manifest := `
apiVersion: v1
kind: ConfigMap
metadata:
  name: workload-settings
  namespace: odfkit-scale
data:
  pvcs: "100"
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: bench-settings
  namespace: odfkit-scale
data:
  buckets: "10"
`

	ctx := context.Background()
	applied, err := client.Apply(ctx, manifest)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "workload-settings", applied[0].GetName())
	assert.Equal(t, "bench-settings", applied[1].GetName())

	// Re-applying with changed data must take the update path.
	updated := `
apiVersion: v1
kind: ConfigMap
metadata:
  name: workload-settings
  namespace: odfkit-scale
data:
  pvcs: "500"
`
	applied, err = client.Apply(ctx, updated)
	require.NoError(t, err)
	require.Len(t, applied, 1)

	gvr := schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}
	live, err := fakeDynamic.Resource(gvr).Namespace("odfkit-scale").
		Get(ctx, "workload-settings", metav1.GetOptions{})
	require.NoError(t, err)
	data, _, err := unstructured.NestedStringMap(live.Object, "data")
	require.NoError(t, err)
	assert.Equal(t, "500", data["pvcs"])
}

func TestApply_SkipsEmptyDocuments(t *testing.T) {
	client := &Client{
		Dynamic: dynfake.NewSimpleDynamicClient(runtime.NewScheme()),
	}

	manifest := `
---
# nothing here
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: only-one
  namespace: default
`
	applied, err := client.Apply(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "only-one", applied[0].GetName())
}

func TestApply_RejectsGarbage(t *testing.T) {
	client := &Client{
		Dynamic: dynfake.NewSimpleDynamicClient(runtime.NewScheme()),
	}

	_, err := client.Apply(context.Background(), "{not yaml: [")
	assert.Error(t, err)
}

func TestCreateSecret_CreateThenUpdate(t *testing.T) {
	fakeClientset := k8sfake.NewSimpleClientset()
	client := &Client{Clientset: fakeClientset}

	ctx := context.Background()
	require.NoError(t, client.CreateSecret(ctx, "odfkit", "onboarding-token", map[string][]byte{
		"token": []byte("abc"),
	}))

	// Second call with new data updates in place.
	require.NoError(t, client.CreateSecret(ctx, "odfkit", "onboarding-token", map[string][]byte{
		"token": []byte("xyz"),
	}))

	secret, err := fakeClientset.CoreV1().Secrets("odfkit").Get(ctx, "onboarding-token", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), secret.Data["token"])
}

func TestReadSecretKey(t *testing.T) {
	fakeClientset := k8sfake.NewSimpleClientset()
	client := &Client{Clientset: fakeClientset}

	ctx := context.Background()
	require.NoError(t, client.CreateSecret(ctx, "clusters", "hcp-1-admin-kubeconfig", map[string][]byte{
		"kubeconfig": []byte("apiVersion: v1"),
	}))

	data, err := client.ReadSecretKey(ctx, "clusters", "hcp-1-admin-kubeconfig", "kubeconfig")
	require.NoError(t, err)
	assert.Equal(t, []byte("apiVersion: v1"), data)

	_, err = client.ReadSecretKey(ctx, "clusters", "hcp-1-admin-kubeconfig", "missing")
	assert.ErrorContains(t, err, "no key")

	_, err = client.ReadSecretKey(ctx, "clusters", "absent", "kubeconfig")
	assert.Error(t, err)
}

package resources

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// Group/version/resource coordinates for the storage-side custom
// resources. Versions track the operator releases the framework is
// exercised against.
var (
	StorageClusterGVR    = schema.GroupVersionResource{Group: "ocs.openshift.io", Version: "v1", Resource: "storageclusters"}
	CephClusterGVR       = schema.GroupVersionResource{Group: "ceph.rook.io", Version: "v1", Resource: "cephclusters"}
	StorageConsumerGVR   = schema.GroupVersionResource{Group: "ocs.openshift.io", Version: "v1alpha1", Resource: "storageconsumers"}
	StorageClientGVR     = schema.GroupVersionResource{Group: "ocs.openshift.io", Version: "v1alpha1", Resource: "storageclients"}
	ClientProfileGVR     = schema.GroupVersionResource{Group: "csi.ceph.io", Version: "v1alpha1", Resource: "clientprofiles"}
	ObjectBucketClaimGVR = schema.GroupVersionResource{Group: "objectbucket.io", Version: "v1alpha1", Resource: "objectbucketclaims"}
)

// StorageClusters returns a handle on StorageCluster objects in the
// given namespace.
func StorageClusters(client dynamic.Interface, namespace string) *Resource {
	return New(client, StorageClusterGVR, namespace)
}

// CephClusters returns a handle on the Rook CephCluster objects.
func CephClusters(client dynamic.Interface, namespace string) *Resource {
	return New(client, CephClusterGVR, namespace)
}

// StorageConsumers returns a handle on the provider-side consumer
// records, one per connected client cluster.
func StorageConsumers(client dynamic.Interface, namespace string) *Resource {
	return New(client, StorageConsumerGVR, namespace)
}

// StorageClients returns a handle on the cluster-scoped StorageClient
// objects on a consumer cluster.
func StorageClients(client dynamic.Interface) *Resource {
	return New(client, StorageClientGVR, "")
}

// ClientProfiles returns a handle on the CSI client profiles created
// for a connected consumer.
func ClientProfiles(client dynamic.Interface, namespace string) *Resource {
	return New(client, ClientProfileGVR, namespace)
}

// ObjectBucketClaims returns a handle on OBCs in the given namespace.
func ObjectBucketClaims(client dynamic.Interface, namespace string) *Resource {
	return New(client, ObjectBucketClaimGVR, namespace)
}

// LastHeartbeat parses status.lastHeartbeat of a StorageConsumer.
func LastHeartbeat(obj *unstructured.Unstructured) (time.Time, error) {
	raw, found, err := unstructured.NestedString(obj.Object, "status", "lastHeartbeat")
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read lastHeartbeat of %s: %w", obj.GetName(), err)
	}
	if !found || raw == "" {
		return time.Time{}, fmt.Errorf("storageconsumer %s has not reported a heartbeat", obj.GetName())
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse lastHeartbeat %q of %s: %w", raw, obj.GetName(), err)
	}
	return ts, nil
}

// HeartbeatFresh reports whether the consumer's last heartbeat is
// within the given threshold of now.
func HeartbeatFresh(obj *unstructured.Unstructured, threshold time.Duration, now time.Time) bool {
	ts, err := LastHeartbeat(obj)
	if err != nil {
		return false
	}
	return now.Sub(ts) <= threshold
}

// StorageClientConnected reports whether a StorageClient has reached
// its connected phase.
func StorageClientConnected(obj *unstructured.Unstructured) bool {
	return Phase(obj) == "Connected"
}

// StorageClientID returns the consumer identity the provider assigned
// to a StorageClient. The provider names its StorageConsumer record
// storageconsumer-<id>.
func StorageClientID(obj *unstructured.Unstructured) (string, error) {
	id, found, err := unstructured.NestedString(obj.Object, "status", "id")
	if err != nil {
		return "", fmt.Errorf("failed to read id of storageclient %s: %w", obj.GetName(), err)
	}
	if !found || id == "" {
		return "", fmt.Errorf("storageclient %s has not been assigned a consumer id", obj.GetName())
	}
	return id, nil
}

// ConsumerName converts a storage client id into the provider-side
// StorageConsumer object name.
func ConsumerName(clientID string) string {
	return "storageconsumer-" + clientID
}

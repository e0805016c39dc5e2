package resources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func consumerWithHeartbeat(name, lastHeartbeat string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "ocs.openshift.io/v1alpha1",
		"kind":       "StorageConsumer",
		"metadata":   map[string]interface{}{"name": name, "namespace": "openshift-storage"},
	}}
	if lastHeartbeat != "" {
		obj.Object["status"] = map[string]interface{}{"lastHeartbeat": lastHeartbeat}
	}
	return obj
}

func TestLastHeartbeat(t *testing.T) {
	ts := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	obj := consumerWithHeartbeat("consumer-hc-0", ts.Format(time.RFC3339))

	got, err := LastHeartbeat(obj)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestLastHeartbeatMissing(t *testing.T) {
	_, err := LastHeartbeat(consumerWithHeartbeat("consumer-hc-0", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not reported a heartbeat")
}

func TestLastHeartbeatUnparseable(t *testing.T) {
	_, err := LastHeartbeat(consumerWithHeartbeat("consumer-hc-0", "yesterday"))
	require.Error(t, err)
}

func TestHeartbeatFresh(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)

	fresh := consumerWithHeartbeat("a", now.Add(-30*time.Second).Format(time.RFC3339))
	stale := consumerWithHeartbeat("b", now.Add(-10*time.Minute).Format(time.RFC3339))
	silent := consumerWithHeartbeat("c", "")

	assert.True(t, HeartbeatFresh(fresh, 2*time.Minute, now))
	assert.False(t, HeartbeatFresh(stale, 2*time.Minute, now))
	assert.False(t, HeartbeatFresh(silent, 2*time.Minute, now))
}

func TestStorageClientConnected(t *testing.T) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "ocs.openshift.io/v1alpha1",
		"kind":       "StorageClient",
		"metadata":   map[string]interface{}{"name": "storage-client"},
		"status":     map[string]interface{}{"phase": "Connected"},
	}}
	assert.True(t, StorageClientConnected(obj))

	obj.Object["status"] = map[string]interface{}{"phase": "Progressing"}
	assert.False(t, StorageClientConnected(obj))
}

func TestStorageClientID(t *testing.T) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "ocs.openshift.io/v1alpha1",
		"kind":       "StorageClient",
		"metadata":   map[string]interface{}{"name": "storage-client"},
		"status":     map[string]interface{}{"id": "4f2e"},
	}}

	id, err := StorageClientID(obj)
	require.NoError(t, err)
	assert.Equal(t, "4f2e", id)
	assert.Equal(t, "storageconsumer-4f2e", ConsumerName(id))

	obj.Object["status"] = map[string]interface{}{}
	_, err = StorageClientID(obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer id")
}

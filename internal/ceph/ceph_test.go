package ceph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/ocp"
)

const healthyStatusJSON = `{
	"fsid": "7b1f6c4e",
	"health": {"status": "HEALTH_OK", "checks": {}},
	"pgmap": {"num_pgs": 169}
}`

const degradedStatusJSON = `{
	"health": {
		"status": "HEALTH_WARN",
		"checks": {
			"OSD_DOWN": {"severity": "HEALTH_WARN", "summary": {"message": "1 osd down"}},
			"PG_DEGRADED": {"severity": "HEALTH_WARN", "summary": {"message": "Degraded data redundancy"}}
		}
	}
}`

func toolboxPod(name string, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "openshift-storage",
			Labels:    map[string]string{"app": "rook-ceph-tools"},
		},
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
		},
	}
}

// fakeTools wires a Tools instance whose exec returns canned output and
// records the commands it ran.
func fakeTools(t *testing.T, stdout string, execErr error) (*Tools, *[][]string) {
	t.Helper()
	client := &ocp.Client{Clientset: k8sfake.NewSimpleClientset(toolboxPod("rook-ceph-tools-5d8f", true))}
	tools := NewTools(client, "openshift-storage")

	var commands [][]string
	tools.exec = func(ctx context.Context, namespace, pod, container string, command []string) (string, string, error) {
		assert.Equal(t, "openshift-storage", namespace)
		assert.Equal(t, "rook-ceph-tools-5d8f", pod)
		commands = append(commands, command)
		if execErr != nil {
			return "", "connection reset", execErr
		}
		return stdout, "", nil
	}
	return tools, &commands
}

func TestQueryHealthOK(t *testing.T) {
	tools, commands := fakeTools(t, healthyStatusJSON, nil)

	health, err := tools.QueryHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEALTH_OK", health.Status)
	assert.Empty(t, health.Checks)

	require.Len(t, *commands, 1)
	assert.Equal(t, []string{"ceph", "status", "--format", "json"}, (*commands)[0])
}

func TestQueryHealthCollectsChecks(t *testing.T) {
	tools, _ := fakeTools(t, degradedStatusJSON, nil)

	health, err := tools.QueryHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEALTH_WARN", health.Status)
	assert.Len(t, health.Checks, 2)
	assert.Contains(t, health.String(), "OSD_DOWN: 1 osd down")
}

func TestHealthOK(t *testing.T) {
	tools, _ := fakeTools(t, healthyStatusJSON, nil)
	assert.NoError(t, tools.HealthOK(context.Background()))
}

func TestHealthOKDegraded(t *testing.T) {
	tools, _ := fakeTools(t, degradedStatusJSON, nil)

	err := tools.HealthOK(context.Background())
	require.Error(t, err)

	var ws *odferrors.ResourceWrongStatus
	require.True(t, errors.As(err, &ws), "expected ResourceWrongStatus, got %T", err)
	assert.Equal(t, "HEALTH_OK", ws.Expected)
	assert.Contains(t, ws.Actual, "HEALTH_WARN")
	assert.Contains(t, ws.Actual, "1 osd down")
}

func TestQueryHealthRejectsGarbage(t *testing.T) {
	tools, _ := fakeTools(t, "error: monclient timed out", nil)

	_, err := tools.QueryHealth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no health.status")
}

func TestRunWrapsExecFailure(t *testing.T) {
	tools, _ := fakeTools(t, "", errors.New("dial tcp: broken"))

	_, err := tools.Run(context.Background(), "ceph", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ceph command "ceph status" failed`)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRunRequiresReadyToolbox(t *testing.T) {
	client := &ocp.Client{Clientset: k8sfake.NewSimpleClientset(toolboxPod("rook-ceph-tools-5d8f", false))}
	tools := NewTools(client, "openshift-storage")

	_, err := tools.Run(context.Background(), "ceph", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ready rook-ceph-tools pod")
}

func TestWaitForHealthOKRecovers(t *testing.T) {
	tools, _ := fakeTools(t, degradedStatusJSON, nil)
	attempts := 0
	inner := tools.exec
	tools.exec = func(ctx context.Context, namespace, pod, container string, command []string) (string, string, error) {
		attempts++
		if attempts >= 3 {
			return healthyStatusJSON, "", nil
		}
		return inner(ctx, namespace, pod, container, command)
	}

	err := tools.WaitForHealthOK(context.Background(), 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempts, 3)
}

func TestWaitForHealthOKTimeout(t *testing.T) {
	tools, _ := fakeTools(t, degradedStatusJSON, nil)

	err := tools.WaitForHealthOK(context.Background(), 10*time.Millisecond, 60*time.Millisecond)
	require.Error(t, err)
	assert.True(t, odferrors.IsTimeoutExpired(err))
	assert.Contains(t, err.Error(), "HEALTH_WARN")
}

func TestDF(t *testing.T) {
	tools, commands := fakeTools(t, `{
		"stats": {"total_bytes": 1610612736000, "total_used_raw_bytes": 536870912000, "total_avail_bytes": 1073741824000}
	}`, nil)

	capacity, err := tools.DF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1610612736000), capacity.TotalBytes)
	assert.Equal(t, int64(536870912000), capacity.UsedBytes)
	assert.InDelta(t, 0.333, capacity.UsedFraction(), 0.001)

	assert.Equal(t, []string{"ceph", "df", "--format", "json"}, (*commands)[0])
}

func TestOSDsTopLevel(t *testing.T) {
	tools, _ := fakeTools(t, `{"epoch": 100, "num_osds": 3, "num_up_osds": 3, "num_in_osds": 3}`, nil)

	stat, err := tools.OSDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stat.Total)
	assert.True(t, stat.AllUp())
}

func TestOSDsNestedOSDMap(t *testing.T) {
	tools, _ := fakeTools(t, `{"osdmap": {"num_osds": 3, "num_up_osds": 2, "num_in_osds": 3}}`, nil)

	stat, err := tools.OSDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stat.Total)
	assert.Equal(t, 2, stat.Up)
	assert.False(t, stat.AllUp())
}

func TestHealthOKAllowWarn(t *testing.T) {
	tools, _ := fakeTools(t, degradedStatusJSON, nil)
	tools.AllowWarn = true

	assert.NoError(t, tools.HealthOK(context.Background()))
}

func TestAllowWarnDoesNotAcceptError(t *testing.T) {
	tools, _ := fakeTools(t, `{"health": {"status": "HEALTH_ERR", "checks": {}}}`, nil)
	tools.AllowWarn = true

	err := tools.HealthOK(context.Background())
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	tools, _ := fakeTools(t, `{
		"health": {"status": "HEALTH_OK", "checks": {}},
		"monmap": {"num_mons": 3},
		"osdmap": {"num_osds": 3, "num_up_osds": 3, "num_in_osds": 3},
		"pgmap": {"num_pgs": 169}
	}`, nil)

	status, err := tools.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEALTH_OK", status.Health.Status)
	assert.Equal(t, 3, status.Mons)
	assert.True(t, status.OSDs.AllUp())
	assert.Equal(t, 169, status.PGs)
}

func TestOSDTreeDownOSDs(t *testing.T) {
	tools, _ := fakeTools(t, `{"nodes": [
		{"id": -1, "name": "default", "type": "root", "children": [-3]},
		{"id": -3, "name": "worker-0", "type": "host", "children": [0, 1]},
		{"id": 0, "name": "osd.0", "type": "osd", "status": "up"},
		{"id": 1, "name": "osd.1", "type": "osd", "status": "down"}
	]}`, nil)

	nodes, err := tools.OSDTree(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, []int64{0, 1}, nodes[1].Children)
	assert.Equal(t, []string{"osd.1"}, DownOSDs(nodes))
}

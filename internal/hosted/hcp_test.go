package hosted

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odferrors "github.com/odfkit/odfkit/internal/errors"
)

// stubHCP replaces commandContext with a shell script, capturing the
// arguments the wrapper would have handed to hcp.
func stubHCP(t *testing.T, script string) *[][]string {
	t.Helper()
	var calls [][]string
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
	t.Cleanup(func() { commandContext = orig })
	return &calls
}

func TestHCPCreateKubeVirtArgs(t *testing.T) {
	calls := stubHCP(t, `exit 0`)
	h := NewHCP("/kubeconfigs/hub")

	err := h.CreateKubeVirt(context.Background(), CreateSpec{
		Name:             "hcp-0",
		Namespace:        "clusters",
		ReleaseImage:     "quay.io/openshift-release-dev/ocp-release:4.18.3-x86_64",
		NodePoolReplicas: 2,
		CPUCores:         8,
		Memory:           "12Gi",
		PullSecretPath:   "/secrets/pull-secret.json",
		SSHKeyPath:       "/keys/odfkit.pub",
	})
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	args := (*calls)[0]
	assert.Equal(t, "hcp", args[0])
	assert.Equal(t, []string{
		"create", "cluster", "kubevirt",
		"--name", "hcp-0",
		"--namespace", "clusters",
		"--node-pool-replicas", "2",
		"--cores", "8",
		"--memory", "12Gi",
		"--release-image", "quay.io/openshift-release-dev/ocp-release:4.18.3-x86_64",
		"--pull-secret", "/secrets/pull-secret.json",
		"--ssh-key", "/keys/odfkit.pub",
	}, args[1:])
}

func TestHCPCreateKubeVirtOmitsEmptyFlags(t *testing.T) {
	calls := stubHCP(t, `exit 0`)
	h := NewHCP("/kubeconfigs/hub")

	err := h.CreateKubeVirt(context.Background(), CreateSpec{
		Name:             "hcp-1",
		Namespace:        "clusters",
		NodePoolReplicas: 3,
		CPUCores:         4,
		Memory:           "8Gi",
	})
	require.NoError(t, err)

	args := (*calls)[0]
	assert.NotContains(t, args, "--release-image")
	assert.NotContains(t, args, "--pull-secret")
	assert.NotContains(t, args, "--ssh-key")
}

func TestHCPDestroyClusterArgs(t *testing.T) {
	calls := stubHCP(t, `exit 0`)
	h := NewHCP("/kubeconfigs/hub")

	err := h.DestroyCluster(context.Background(), "hcp-0", "clusters")
	require.NoError(t, err)

	args := (*calls)[0]
	assert.Equal(t, []string{"destroy", "cluster", "--name", "hcp-0", "--namespace", "clusters"}, args[1:])
}

func TestHCPFailureIsCommandFailed(t *testing.T) {
	stubHCP(t, `echo 'failed to create infra' >&2; exit 1`)
	h := NewHCP("/kubeconfigs/hub")

	err := h.CreateKubeVirt(context.Background(), CreateSpec{
		Name: "hcp-0", Namespace: "clusters", NodePoolReplicas: 2, CPUCores: 8, Memory: "12Gi",
	})
	require.Error(t, err)

	var cf *odferrors.CommandFailed
	require.True(t, errors.As(err, &cf), "expected CommandFailed, got %T", err)
	assert.Equal(t, 1, cf.ExitCode)
	assert.Contains(t, cf.Stderr, "failed to create infra")
	assert.Contains(t, cf.Command, "hcp create cluster kubevirt")
}

func TestHCPPassesHubKubeconfig(t *testing.T) {
	stubHCP(t, `printf '%s' "$KUBECONFIG"`)
	h := NewHCP("/kubeconfigs/hub")

	out, err := h.run(context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "/kubeconfigs/hub", out)
}

func TestClusterNames(t *testing.T) {
	assert.Equal(t, []string{"hcp-0", "hcp-1", "hcp-2"}, clusterNames("hcp", 3))
	assert.Empty(t, clusterNames("hcp", 0))
}

package hosted

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	odferrors "github.com/odfkit/odfkit/internal/errors"
)

// commandContext builds the hcp process; swapped in tests.
var commandContext = exec.CommandContext

// HCP shells out to the hosted control plane CLI. Cluster creation and
// destruction stay on the CLI because it owns the infra wiring;
// everything after creation goes through the API.
type HCP struct {
	kubeconfig string
	binary     string
}

// NewHCP returns a runner bound to the hub's kubeconfig.
func NewHCP(kubeconfig string) *HCP {
	return &HCP{kubeconfig: kubeconfig, binary: "hcp"}
}

// CreateSpec carries the flags for one hosted cluster creation.
type CreateSpec struct {
	Name             string
	Namespace        string
	ReleaseImage     string
	NodePoolReplicas int
	CPUCores         int
	Memory           string
	PullSecretPath   string
	SSHKeyPath       string
}

// CreateKubeVirt creates a hosted cluster on the kubevirt platform.
// The command returns once the resources are posted; readiness is
// awaited separately.
func (h *HCP) CreateKubeVirt(ctx context.Context, spec CreateSpec) error {
	args := []string{
		"create", "cluster", "kubevirt",
		"--name", spec.Name,
		"--namespace", spec.Namespace,
		"--node-pool-replicas", strconv.Itoa(spec.NodePoolReplicas),
		"--cores", strconv.Itoa(spec.CPUCores),
		"--memory", spec.Memory,
	}
	if spec.ReleaseImage != "" {
		args = append(args, "--release-image", spec.ReleaseImage)
	}
	if spec.PullSecretPath != "" {
		args = append(args, "--pull-secret", spec.PullSecretPath)
	}
	if spec.SSHKeyPath != "" {
		args = append(args, "--ssh-key", spec.SSHKeyPath)
	}

	_, err := h.run(ctx, args...)
	return err
}

// DestroyCluster tears down a hosted cluster and its infrastructure.
func (h *HCP) DestroyCluster(ctx context.Context, name, namespace string) error {
	_, err := h.run(ctx, "destroy", "cluster", "--name", name, "--namespace", namespace)
	return err
}

func (h *HCP) run(ctx context.Context, args ...string) (string, error) {
	cmd := commandContext(ctx, h.binary, args...)
	cmd.Env = append(os.Environ(), "KUBECONFIG="+h.kubeconfig)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		display := h.binary + " " + strings.Join(args, " ")
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", odferrors.NewCommandFailed(display, exitCode, stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// clusterNames expands the configured prefix and count into the names
// the run manages.
func clusterNames(prefix string, count int) []string {
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		names = append(names, fmt.Sprintf("%s-%d", prefix, i))
	}
	return names
}

package ocp

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WorkerLabel selects schedulable worker nodes.
const WorkerLabel = "node-role.kubernetes.io/worker"

// ListWorkerNodes returns the names of all worker nodes.
func (c *Client) ListWorkerNodes(ctx context.Context) ([]string, error) {
	nodes, err := c.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: WorkerLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list worker nodes: %w", err)
	}

	names := make([]string, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		names = append(names, node.Name)
	}
	return names, nil
}

// RestartNode reboots a node through a debug pod. The node transitions
// through NotReady; callers follow up with WaitForNodeReady.
func (o *OC) RestartNode(ctx context.Context, node string) error {
	// systemctl reboot returns once the reboot is scheduled; the debug pod
	// itself dies with the node, so a command error here is expected noise.
	_, err := o.DebugNode(ctx, node, "systemctl", "reboot")
	if err != nil && !isConnectionTornDown(err) {
		return fmt.Errorf("failed to reboot node %s: %w", node, err)
	}
	return nil
}

// WaitForNodeReady waits for one specific node to report Ready.
func (c *Client) WaitForNodeReady(ctx context.Context, name string, timeout time.Duration) error {
	what := fmt.Sprintf("node %s ready", name)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		node, err := c.Clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Sprintf("error getting node: %v", err), nil
		}
		if !IsNodeReady(node) {
			return false, "node not ready", nil
		}
		return true, "", nil
	})
}

// WaitForNodeNotReady waits for a node to leave Ready, confirming a
// restart actually took effect before waiting for recovery.
func (c *Client) WaitForNodeNotReady(ctx context.Context, name string, timeout time.Duration) error {
	what := fmt.Sprintf("node %s not ready", name)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		node, err := c.Clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			// API briefly unreachable counts as the node going down.
			return true, "", nil
		}
		if IsNodeReady(node) {
			return false, "node still ready", nil
		}
		return true, "", nil
	})
}

// NodeInternalIP returns the first InternalIP address of a node.
func (c *Client) NodeInternalIP(ctx context.Context, name string) (string, error) {
	node, err := c.Clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get node %s: %w", name, err)
	}
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			return addr.Address, nil
		}
	}
	return "", fmt.Errorf("node %s has no internal IP", name)
}

func isConnectionTornDown(err error) bool {
	// The reboot severs the debug pod's stream mid-command.
	msg := err.Error()
	for _, s := range []string{"connection reset", "broken pipe", "unexpected EOF", "error dialing backend"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

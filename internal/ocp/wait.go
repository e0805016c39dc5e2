package ocp

import (
	"context"
	"fmt"
	"time"

	configv1 "github.com/openshift/api/config/v1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilwait "k8s.io/apimachinery/pkg/util/wait"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"

	odferrors "github.com/odfkit/odfkit/internal/errors"
)

// DefaultPollInterval is the tick used by every wait in this package
// unless the caller's Timeouts say otherwise.
const DefaultPollInterval = 5 * time.Second

// Condition reports whether the awaited state holds, plus a short
// human-readable reason for the current state when it does not.
type Condition func(ctx context.Context) (done bool, reason string, err error)

// PollUntil runs cond every interval until it is done, errors, or the
// timeout elapses. On timeout the returned error is a TimeoutExpired
// carrying the last observed reason.
func PollUntil(ctx context.Context, what string, interval, timeout time.Duration, cond Condition) error {
	lastReason := ""

	err := utilwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		done, reason, err := cond(ctx)
		if reason != "" {
			lastReason = reason
		}
		return done, err
	})
	if err == nil {
		return nil
	}
	if utilwait.Interrupted(err) {
		return odferrors.NewTimeoutExpired(what, timeout, lastReason)
	}
	return fmt.Errorf("waiting for %s: %w", what, err)
}

// WaitForDeploymentReady waits for a deployment to have all replicas
// updated and available.
func (c *Client) WaitForDeploymentReady(ctx context.Context, namespace, name string, timeout time.Duration) error {
	what := fmt.Sprintf("deployment %s/%s ready", namespace, name)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		deployment := &appsv1.Deployment{}
		err := c.Runtime.Get(ctx, crclient.ObjectKey{Namespace: namespace, Name: name}, deployment)
		if err != nil {
			return false, fmt.Sprintf("waiting on deployment %s to be created", name), nil
		}
		if !isDeploymentReady(deployment) {
			return false, fmt.Sprintf("waiting on deployment %s to become available", name), nil
		}
		return true, "", nil
	})
}

// WaitForPodsReady waits until at least minCount pods matching the label
// selector are Running and Ready.
func (c *Client) WaitForPodsReady(ctx context.Context, namespace, labelSelector string, minCount int, timeout time.Duration) error {
	what := fmt.Sprintf("%d ready pods matching %q in %s", minCount, labelSelector, namespace)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		pods, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: labelSelector,
		})
		if err != nil {
			return false, fmt.Sprintf("error listing pods: %v", err), nil
		}

		ready := 0
		for i := range pods.Items {
			if IsPodReady(&pods.Items[i]) {
				ready++
			}
		}
		if ready < minCount {
			return false, fmt.Sprintf("%d/%d pods ready", ready, minCount), nil
		}
		return true, "", nil
	})
}

// WaitForPVCBound waits for a single PVC to reach phase Bound.
func (c *Client) WaitForPVCBound(ctx context.Context, namespace, name string, timeout time.Duration) error {
	what := fmt.Sprintf("pvc %s/%s bound", namespace, name)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		pvc, err := c.Clientset.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Sprintf("waiting on pvc %s to be created", name), nil
		}
		if pvc.Status.Phase != corev1.ClaimBound {
			return false, fmt.Sprintf("pvc phase is %s", pvc.Status.Phase), nil
		}
		return true, "", nil
	})
}

// WaitForCRD waits for a CustomResourceDefinition to exist and report
// Established.
func (c *Client) WaitForCRD(ctx context.Context, name string, timeout time.Duration) error {
	what := fmt.Sprintf("crd %s established", name)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		crd := &apiextv1.CustomResourceDefinition{}
		if err := c.Runtime.Get(ctx, crclient.ObjectKey{Name: name}, crd); err != nil {
			return false, fmt.Sprintf("waiting on crd %s to be created", name), nil
		}
		for _, cond := range crd.Status.Conditions {
			if cond.Type == apiextv1.Established && cond.Status == apiextv1.ConditionTrue {
				return true, "", nil
			}
		}
		return false, fmt.Sprintf("crd %s not established", name), nil
	})
}

// WaitForNReadyNodes waits until at least n nodes are Ready.
func (c *Client) WaitForNReadyNodes(ctx context.Context, n int, timeout time.Duration) error {
	what := fmt.Sprintf("%d ready nodes", n)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		nodes, err := c.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		if err != nil {
			return false, fmt.Sprintf("error listing nodes: %v", err), nil
		}
		ready := 0
		for i := range nodes.Items {
			if IsNodeReady(&nodes.Items[i]) {
				ready++
			}
		}
		if ready < n {
			return false, fmt.Sprintf("%d/%d nodes ready", ready, n), nil
		}
		return true, "", nil
	})
}

// WaitForClusterOperatorsReady waits until every cluster operator is
// Available and neither Progressing nor Degraded.
func (c *Client) WaitForClusterOperatorsReady(ctx context.Context, timeout time.Duration) error {
	return PollUntil(ctx, "cluster operators settled", 15*time.Second, timeout, func(ctx context.Context) (bool, string, error) {
		operators := &configv1.ClusterOperatorList{}
		if err := c.Runtime.List(ctx, operators); err != nil {
			return false, fmt.Sprintf("error listing cluster operators: %v", err), nil
		}
		if len(operators.Items) == 0 {
			return false, "no cluster operators reported yet", nil
		}
		for i := range operators.Items {
			co := &operators.Items[i]
			if !clusterOperatorSettled(co) {
				return false, fmt.Sprintf("cluster operator %s not settled", co.Name), nil
			}
		}
		return true, "", nil
	})
}

// WaitForClusterVersionDone waits until the ClusterVersion reports a
// completed update.
func (c *Client) WaitForClusterVersionDone(ctx context.Context, timeout time.Duration) error {
	return PollUntil(ctx, "cluster version rollout complete", 15*time.Second, timeout, func(ctx context.Context) (bool, string, error) {
		cv := &configv1.ClusterVersion{}
		if err := c.Runtime.Get(ctx, crclient.ObjectKey{Name: "version"}, cv); err != nil {
			return false, fmt.Sprintf("error getting clusterversion: %v", err), nil
		}
		for _, h := range cv.Status.History {
			if h.State == configv1.CompletedUpdate {
				return true, "", nil
			}
		}
		return false, "no completed update in clusterversion history", nil
	})
}

// WaitForNamespaceGone waits for a namespace to finish terminating.
func (c *Client) WaitForNamespaceGone(ctx context.Context, name string, timeout time.Duration) error {
	what := fmt.Sprintf("namespace %s deleted", name)
	return PollUntil(ctx, what, DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		_, err := c.Clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return true, "", nil
		}
		if err != nil {
			return false, fmt.Sprintf("error getting namespace: %v", err), nil
		}
		return false, "namespace still terminating", nil
	})
}

// isDeploymentReady checks if a deployment is ready.
func isDeploymentReady(deployment *appsv1.Deployment) bool {
	if deployment.Spec.Replicas == nil {
		return false
	}
	replicas := *deployment.Spec.Replicas
	if deployment.Status.UpdatedReplicas != replicas ||
		deployment.Status.Replicas != replicas ||
		deployment.Status.AvailableReplicas != replicas {
		return false
	}

	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// IsPodReady reports whether a pod is Running with the Ready condition.
func IsPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// IsNodeReady reports whether a node has the Ready condition true.
func IsNodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func clusterOperatorSettled(co *configv1.ClusterOperator) bool {
	available, progressing, degraded := false, false, false
	for _, cond := range co.Status.Conditions {
		switch cond.Type {
		case configv1.OperatorAvailable:
			available = cond.Status == configv1.ConditionTrue
		case configv1.OperatorProgressing:
			progressing = cond.Status == configv1.ConditionTrue
		case configv1.OperatorDegraded:
			degraded = cond.Status == configv1.ConditionTrue
		}
	}
	return available && !progressing && !degraded
}

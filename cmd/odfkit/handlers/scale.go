package handlers

import (
	"context"
	"fmt"
	"log"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/scale"
)

// BulkRunner interface for testing - matches scale.Runner.
type BulkRunner interface {
	BulkPVC(ctx context.Context, id string, count int, storageClass, size, accessMode string) error
	BulkPods(ctx context.Context, id string, count int, pvcJob string) error
	BulkOBC(ctx context.Context, id string, count int, storageClass string) error
	WaitForBound(ctx context.Context, id string, count int) error
	WaitForRunning(ctx context.Context, id string, count int) error
	WaitForOBCBound(ctx context.Context, id string, count int) error
	Cleanup(ctx context.Context, id string) error
}

// newBulkRunner creates the batch runner for one cluster and namespace.
var newBulkRunner = func(client *ocp.Client, namespace string, timeouts *framework.Timeouts, steps *framework.Steps) BulkRunner {
	return scale.NewRunner(client, namespace, timeouts, steps)
}

// ScalePVC bulk-creates PVCs as one batch and waits until all are
// Bound.
func ScalePVC(ctx context.Context, configPath, id, namespace string, count int, storageClass, size, accessMode string) error {
	fw, client, runner, err := scaleSetup(ctx, configPath, namespace)
	if err != nil {
		return err
	}
	jobID := batchID(fw, id)

	if err := ensureNamespace(ctx, client, namespace); err != nil {
		return err
	}

	if err := runner.BulkPVC(ctx, jobID, count, storageClass, size, accessMode); err != nil {
		return err
	}
	if err := runner.WaitForBound(ctx, jobID, count); err != nil {
		return err
	}

	fmt.Printf("\n%d PVCs of job %s are Bound in %s\n", count, jobID, namespace)
	return nil
}

// ScalePods bulk-creates load pods mounting an earlier PVC batch and
// waits until all are Running.
func ScalePods(ctx context.Context, configPath, id, namespace string, count int, pvcJob string) error {
	fw, client, runner, err := scaleSetup(ctx, configPath, namespace)
	if err != nil {
		return err
	}
	jobID := batchID(fw, id)

	if err := ensureNamespace(ctx, client, namespace); err != nil {
		return err
	}

	if err := runner.BulkPods(ctx, jobID, count, pvcJob); err != nil {
		return err
	}
	if err := runner.WaitForRunning(ctx, jobID, count); err != nil {
		return err
	}

	fmt.Printf("\n%d pods of job %s are Running in %s\n", count, jobID, namespace)
	return nil
}

// ScaleOBC bulk-creates object bucket claims as one batch and waits
// until all are Bound.
func ScaleOBC(ctx context.Context, configPath, id, namespace string, count int, storageClass string) error {
	fw, client, runner, err := scaleSetup(ctx, configPath, namespace)
	if err != nil {
		return err
	}
	jobID := batchID(fw, id)

	if err := ensureNamespace(ctx, client, namespace); err != nil {
		return err
	}

	if err := runner.BulkOBC(ctx, jobID, count, storageClass); err != nil {
		return err
	}
	if err := runner.WaitForOBCBound(ctx, jobID, count); err != nil {
		return err
	}

	fmt.Printf("\n%d object bucket claims of job %s are Bound in %s\n", count, jobID, namespace)
	return nil
}

// ScaleCleanup deletes every object of a batch and waits for the
// deletes to finalize.
func ScaleCleanup(ctx context.Context, configPath, id, namespace string) error {
	fw, _, runner, err := scaleSetup(ctx, configPath, namespace)
	if err != nil {
		return err
	}
	jobID := batchID(fw, id)

	if err := runner.Cleanup(ctx, jobID); err != nil {
		return err
	}

	fmt.Printf("\nJob %s cleaned up in %s\n", jobID, namespace)
	return nil
}

// scaleSetup loads the framework and wires the batch runner against the
// provider cluster.
func scaleSetup(ctx context.Context, configPath, namespace string) (*framework.Framework, *ocp.Client, BulkRunner, error) {
	fw, err := loadFramework(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	provider := fw.Provider()
	client, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}

	log.Printf("Scale job targeting cluster %q, namespace %s", provider.Name, namespace)
	return fw, client, newBulkRunner(client, namespace, fw.Timeouts(), fw.Steps()), nil
}

// batchID defaults the batch id to the run id.
func batchID(fw *framework.Framework, id string) string {
	if id != "" {
		return id
	}
	return fw.RunID()
}

// ensureNamespace creates the namespace unless it already exists.
func ensureNamespace(ctx context.Context, client *ocp.Client, name string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	_, err := client.Clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	return nil
}

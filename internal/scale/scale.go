// Package scale bulk-creates storage objects in labeled batches, the
// kube-job pattern: render one multi-document manifest, apply it as a
// unit, then poll server-side counts until every object reaches its
// target phase. Jobs are identified by a label so that counting and
// cleanup never need the individual object names.
package scale

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
	"github.com/odfkit/odfkit/internal/templates"
)

// JobLabel marks every object of a bulk job with its job id.
const JobLabel = "odfkit.io/job"

var (
	pvcGVR = schema.GroupVersionResource{Version: "v1", Resource: "persistentvolumeclaims"}
	podGVR = schema.GroupVersionResource{Version: "v1", Resource: "pods"}
)

// jobGVRs are the kinds a bulk job can consist of, in cleanup order:
// pods must release their claims before the claims themselves go.
var jobGVRs = []schema.GroupVersionResource{podGVR, pvcGVR, resources.ObjectBucketClaimGVR}

const (
	defaultImage   = "registry.access.redhat.com/ubi9/ubi-minimal:latest"
	defaultCommand = "dd if=/dev/urandom of=/mnt/data/load.bin bs=1M count=64 && sleep infinity"
)

// Runner bulk-creates PVCs, load pods, and object bucket claims in one
// namespace and polls them to their target state.
type Runner struct {
	client    *ocp.Client
	namespace string
	timeouts  *framework.Timeouts
	steps     *framework.Steps

	// Image run by the load pods. Defaults to a UBI minimal image.
	Image string
	// Command run inside the load pods. It must keep the pod Running,
	// so a finite write should end in something like `sleep infinity`.
	Command string
}

// NewRunner wires a scale runner against one cluster and namespace.
func NewRunner(client *ocp.Client, namespace string, timeouts *framework.Timeouts, steps *framework.Steps) *Runner {
	return &Runner{
		client:    client,
		namespace: namespace,
		timeouts:  timeouts,
		steps:     steps,
	}
}

// BulkPVC creates count PVCs labeled with the job id.
func (r *Runner) BulkPVC(ctx context.Context, id string, count int, storageClass, size, accessMode string) error {
	if err := r.ensureUnused(ctx, id); err != nil {
		return err
	}
	r.steps.Step("Creating %d PVCs for scale job %s (%s, %s each)", count, id, storageClass, size)

	docs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		doc, err := templates.RenderFile("scale/pvc.yaml.tmpl", struct {
			Name, Namespace, JobID, StorageClass, AccessMode, Size string
		}{
			Name:         objectName(id, "pvc", i),
			Namespace:    r.namespace,
			JobID:        id,
			StorageClass: storageClass,
			AccessMode:   accessMode,
			Size:         size,
		})
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return r.apply(ctx, id, docs)
}

// BulkPods creates count load pods labeled with the job id, mounting
// the PVCs of an earlier bulk job round-robin.
func (r *Runner) BulkPods(ctx context.Context, id string, count int, pvcJob string) error {
	if err := r.ensureUnused(ctx, id); err != nil {
		return err
	}
	claims, err := r.jobNames(ctx, pvcGVR, pvcJob)
	if err != nil {
		return err
	}
	if len(claims) == 0 {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "scale job " + id,
			Detail:    fmt.Sprintf("no PVCs labeled %s=%s to mount", JobLabel, pvcJob),
		}
	}

	image := r.Image
	if image == "" {
		image = defaultImage
	}
	command := r.Command
	if command == "" {
		command = defaultCommand
	}

	r.steps.Step("Creating %d load pods for scale job %s over %d PVCs", count, id, len(claims))

	docs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		doc, err := templates.RenderFile("scale/pod.yaml.tmpl", struct {
			Name, Namespace, JobID, Image, Command, PVCName string
		}{
			Name:      objectName(id, "pod", i),
			Namespace: r.namespace,
			JobID:     id,
			Image:     image,
			Command:   command,
			PVCName:   claims[i%len(claims)],
		})
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return r.apply(ctx, id, docs)
}

// BulkOBC creates count ObjectBucketClaims labeled with the job id.
func (r *Runner) BulkOBC(ctx context.Context, id string, count int, storageClass string) error {
	if err := r.ensureUnused(ctx, id); err != nil {
		return err
	}
	r.steps.Step("Creating %d object bucket claims for scale job %s (%s)", count, id, storageClass)

	docs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		doc, err := templates.RenderFile("scale/obc.yaml.tmpl", struct {
			Name, Namespace, JobID, StorageClass string
		}{
			Name:         objectName(id, "obc", i),
			Namespace:    r.namespace,
			JobID:        id,
			StorageClass: storageClass,
		})
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return r.apply(ctx, id, docs)
}

// WaitForBound waits until count PVCs of the job report phase Bound.
func (r *Runner) WaitForBound(ctx context.Context, id string, count int) error {
	return r.waitForPhase(ctx, pvcGVR, "PVCs", id, count, "Bound", r.timeouts.PVCBound)
}

// WaitForRunning waits until count pods of the job report phase Running.
func (r *Runner) WaitForRunning(ctx context.Context, id string, count int) error {
	return r.waitForPhase(ctx, podGVR, "pods", id, count, "Running", r.timeouts.PodRunning)
}

// WaitForOBCBound waits until count OBCs of the job report phase Bound.
func (r *Runner) WaitForOBCBound(ctx context.Context, id string, count int) error {
	return r.waitForPhase(ctx, resources.ObjectBucketClaimGVR, "object bucket claims", id, count, "Bound", r.timeouts.PVCBound)
}

// Cleanup deletes every object of the job and waits until they are
// gone. A job that left nothing behind is not an error.
func (r *Runner) Cleanup(ctx context.Context, id string) error {
	r.steps.Step("Cleaning up scale job %s", id)

	deleted := 0
	for _, gvr := range jobGVRs {
		objs, err := r.list(ctx, gvr, id)
		if err != nil {
			return err
		}
		res := resources.New(r.client.Dynamic, gvr, r.namespace)
		for i := range objs {
			if err := res.Delete(ctx, objs[i].GetName()); err != nil {
				return err
			}
			deleted++
		}
	}
	if deleted == 0 {
		log.Printf("Scale job %s: nothing to clean up", id)
		return nil
	}
	log.Printf("Scale job %s: deleted %d objects", id, deleted)

	what := fmt.Sprintf("scale job %s objects removed", id)
	return ocp.PollUntil(ctx, what, r.timeouts.PollInterval, r.timeouts.ResourceDelete, func(ctx context.Context) (bool, string, error) {
		remaining, err := r.countAll(ctx, id)
		if err != nil {
			return false, "", err
		}
		if remaining > 0 {
			return false, fmt.Sprintf("%d objects remaining", remaining), nil
		}
		return true, "", nil
	})
}

func (r *Runner) apply(ctx context.Context, id string, docs []string) error {
	applied, err := r.client.Apply(ctx, strings.Join(docs, "\n---\n"))
	if err != nil {
		return fmt.Errorf("failed to apply scale job %s: %w", id, err)
	}
	log.Printf("Scale job %s: applied %d objects", id, len(applied))
	return nil
}

// ensureUnused rejects a job id that still has objects on the cluster.
// Re-running a job under the same id would mix two generations of
// objects into one count, so the caller has to clean up first.
func (r *Runner) ensureUnused(ctx context.Context, id string) error {
	existing, err := r.countAll(ctx, id)
	if err != nil {
		return err
	}
	if existing > 0 {
		return &odferrors.UnexpectedDeploymentConfiguration{
			Component: "scale job " + id,
			Detail:    fmt.Sprintf("%d objects labeled %s=%s already exist, run cleanup first", existing, JobLabel, id),
		}
	}
	return nil
}

func (r *Runner) waitForPhase(ctx context.Context, gvr schema.GroupVersionResource, what, id string, count int, phase string, timeout time.Duration) error {
	state := strings.ToLower(phase)
	target := fmt.Sprintf("%d %s of scale job %s %s", count, what, id, state)
	return ocp.PollUntil(ctx, target, r.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		objs, err := r.list(ctx, gvr, id)
		if err != nil {
			return false, "", err
		}
		reached := 0
		for i := range objs {
			if resources.Phase(&objs[i]) == phase {
				reached++
			}
		}
		if reached < count {
			log.Printf("Scale job %s: %d/%d %s %s", id, reached, count, what, state)
			return false, fmt.Sprintf("%d/%d %s", reached, count, state), nil
		}
		return true, "", nil
	})
}

func (r *Runner) list(ctx context.Context, gvr schema.GroupVersionResource, id string) ([]unstructured.Unstructured, error) {
	return resources.New(r.client.Dynamic, gvr, r.namespace).List(ctx, JobLabel+"="+id)
}

// jobNames returns the sorted object names of one kind within a job.
func (r *Runner) jobNames(ctx context.Context, gvr schema.GroupVersionResource, id string) ([]string, error) {
	objs, err := r.list(ctx, gvr, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(objs))
	for i := range objs {
		names = append(names, objs[i].GetName())
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runner) countAll(ctx context.Context, id string) (int, error) {
	total := 0
	for _, gvr := range jobGVRs {
		objs, err := r.list(ctx, gvr, id)
		if err != nil {
			return 0, err
		}
		total += len(objs)
	}
	return total, nil
}

// objectName builds a stable, zero-padded per-index name so listings
// sort in creation order.
func objectName(id, kind string, index int) string {
	return fmt.Sprintf("%s-%s-%04d", id, kind, index)
}

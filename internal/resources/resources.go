// Package resources provides accessors for the custom resources the
// framework drives but does not own: storage clusters, consumer and
// client objects, hosted control planes, and the operator CRs around
// them. All access goes through the dynamic client as unstructured
// objects; the schemas belong to the operators that define them.
package resources

import (
	"context"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/odfkit/odfkit/internal/ocp"
)

// Resource is a handle on one kind of custom resource, optionally
// scoped to a namespace. An empty namespace means cluster-scoped.
type Resource struct {
	client    dynamic.Interface
	gvr       schema.GroupVersionResource
	namespace string
}

// New returns a handle for the given group/version/resource.
func New(client dynamic.Interface, gvr schema.GroupVersionResource, namespace string) *Resource {
	return &Resource{client: client, gvr: gvr, namespace: namespace}
}

// GVR returns the group/version/resource this handle operates on.
func (r *Resource) GVR() schema.GroupVersionResource { return r.gvr }

// Namespace returns the namespace scope, empty for cluster-scoped.
func (r *Resource) Namespace() string { return r.namespace }

func (r *Resource) iface() dynamic.ResourceInterface {
	if r.namespace == "" {
		return r.client.Resource(r.gvr)
	}
	return r.client.Resource(r.gvr).Namespace(r.namespace)
}

// Get fetches one object by name.
func (r *Resource) Get(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	obj, err := r.iface().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", r.gvr.Resource, name, err)
	}
	return obj, nil
}

// Exists reports whether the named object exists.
func (r *Resource) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.iface().Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s %s: %w", r.gvr.Resource, name, err)
	}
	return true, nil
}

// List returns all objects in scope, optionally filtered by label selector.
func (r *Resource) List(ctx context.Context, selector string) ([]unstructured.Unstructured, error) {
	list, err := r.iface().List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.gvr.Resource, err)
	}
	return list.Items, nil
}

// Create submits a new object.
func (r *Resource) Create(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	created, err := r.iface().Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s %s: %w", r.gvr.Resource, obj.GetName(), err)
	}
	return created, nil
}

// CreateIfAbsent creates the object unless one with the same name
// already exists. It reports whether a new object was created, which
// lets callers re-enter an interrupted run without failing on work
// already done.
func (r *Resource) CreateIfAbsent(ctx context.Context, obj *unstructured.Unstructured) (bool, error) {
	_, err := r.iface().Create(ctx, obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create %s %s: %w", r.gvr.Resource, obj.GetName(), err)
	}
	return true, nil
}

// Update replaces an existing object.
func (r *Resource) Update(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	updated, err := r.iface().Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", r.gvr.Resource, obj.GetName(), err)
	}
	return updated, nil
}

// Patch applies a patch to the named object.
func (r *Resource) Patch(ctx context.Context, name string, pt types.PatchType, data []byte) error {
	if _, err := r.iface().Patch(ctx, name, pt, data, metav1.PatchOptions{}); err != nil {
		return fmt.Errorf("failed to patch %s %s: %w", r.gvr.Resource, name, err)
	}
	return nil
}

// Delete removes the named object. A missing object is not an error.
func (r *Resource) Delete(ctx context.Context, name string) error {
	err := r.iface().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete %s %s: %w", r.gvr.Resource, name, err)
	}
	return nil
}

// DeleteAndWait removes the named object and waits until it is gone,
// covering finalizer-delayed teardown.
func (r *Resource) DeleteAndWait(ctx context.Context, name string, timeout time.Duration) error {
	if err := r.Delete(ctx, name); err != nil {
		return err
	}
	what := fmt.Sprintf("%s %s deleted", r.gvr.Resource, name)
	return ocp.PollUntil(ctx, what, ocp.DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		_, err := r.iface().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return true, "", nil
		}
		if err != nil {
			return false, "", err
		}
		return false, "still present", nil
	})
}

// StatusString reads a dotted string field from the named object's
// status, e.g. StatusString(ctx, name, "phase").
func (r *Resource) StatusString(ctx context.Context, name string, fields ...string) (string, error) {
	obj, err := r.Get(ctx, name)
	if err != nil {
		return "", err
	}
	path := append([]string{"status"}, fields...)
	value, found, err := unstructured.NestedString(obj.Object, path...)
	if err != nil {
		return "", fmt.Errorf("failed to read status of %s %s: %w", r.gvr.Resource, name, err)
	}
	if !found {
		return "", nil
	}
	return value, nil
}

// WaitForPhase polls until status.phase reaches the wanted value.
func (r *Resource) WaitForPhase(ctx context.Context, name, phase string, timeout time.Duration) error {
	what := fmt.Sprintf("%s %s phase %s", r.gvr.Resource, name, phase)
	return ocp.PollUntil(ctx, what, ocp.DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		obj, err := r.iface().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return false, "not found", nil
		}
		if err != nil {
			return false, "", err
		}
		current := Phase(obj)
		if current == phase {
			return true, "", nil
		}
		return false, fmt.Sprintf("phase %q", current), nil
	})
}

// WaitForCondition polls until the named condition reaches the wanted
// status value ("True", "False", "Unknown").
func (r *Resource) WaitForCondition(ctx context.Context, name, condType, condStatus string, timeout time.Duration) error {
	what := fmt.Sprintf("%s %s condition %s=%s", r.gvr.Resource, name, condType, condStatus)
	return ocp.PollUntil(ctx, what, ocp.DefaultPollInterval, timeout, func(ctx context.Context) (bool, string, error) {
		obj, err := r.iface().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return false, "not found", nil
		}
		if err != nil {
			return false, "", err
		}
		status, reason, found := NamedCondition(obj, condType)
		if !found {
			return false, fmt.Sprintf("condition %s not reported", condType), nil
		}
		if status == condStatus {
			return true, "", nil
		}
		return false, fmt.Sprintf("condition %s=%s (%s)", condType, status, reason), nil
	})
}

// Phase returns status.phase, empty when unset.
func Phase(obj *unstructured.Unstructured) string {
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	return phase
}

// NamedCondition looks up a condition by type in status.conditions and
// returns its status and reason.
func NamedCondition(obj *unstructured.Unstructured, condType string) (status, reason string, found bool) {
	conditions, ok, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if !ok {
		return "", "", false
	}
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] != condType {
			continue
		}
		status, _ = cond["status"].(string)
		reason, _ = cond["reason"].(string)
		return status, reason, true
	}
	return "", "", false
}

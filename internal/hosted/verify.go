package hosted

import (
	"context"
	"fmt"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/odfkit/odfkit/internal/deployment"
	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
	"github.com/odfkit/odfkit/internal/util/async"
)

// Verify runs the validation ladder on every cluster of the fleet, in
// parallel across clusters, and returns the collected results. Stage
// failures are recorded rather than short-circuiting the fleet; stages
// that depend on an earlier failed stage are skipped for that cluster.
// The caller turns the results into a verdict with Summarize.
func (o *Orchestrator) Verify(ctx context.Context, provider *ocp.Client, providerNamespace string) *Results {
	names := o.ClusterNames()
	results := NewResults(names)

	tasks := make([]async.Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, async.Task{
			Name: "verify " + name,
			Func: func(ctx context.Context) error {
				o.verifyCluster(ctx, name, provider, providerNamespace, results)
				return nil
			},
		})
	}
	// Failures land in results; the tasks themselves never error.
	async.RunAll(ctx, tasks)

	return results
}

func (o *Orchestrator) verifyCluster(ctx context.Context, name string, provider *ocp.Client, providerNamespace string, results *Results) {
	guest, err := o.GuestClient(ctx, name)
	if err != nil {
		// Without a guest client nothing else can run.
		results.Record(name, StageOCPReady, err)
		return
	}

	results.Record(name, StageOCPReady, o.checkOCPReady(ctx, guest))
	results.Record(name, StageClientOperator, o.checkClientOperator(ctx, guest))

	consumer, err := o.consumerName(ctx, guest)
	if err != nil {
		// The provider-side stages key on the consumer identity the
		// storage client was assigned; without it they cannot run.
		results.Record(name, StageStorageVerified, err)
		return
	}
	results.Record(name, StageStorageVerified, o.checkStorage(ctx, guest, provider, providerNamespace, consumer))
	results.Record(name, StageHeartbeat, o.checkHeartbeat(ctx, provider, providerNamespace, consumer))
}

// checkOCPReady confirms the guest's nodes joined at the configured
// count and its cluster operators settled.
func (o *Orchestrator) checkOCPReady(ctx context.Context, guest *ocp.Client) error {
	if err := guest.WaitForNReadyNodes(ctx, o.cfg.NodePoolReplicas, o.timeouts.NodesReady); err != nil {
		return err
	}
	return guest.WaitForClusterOperatorsReady(ctx, o.timeouts.ClusterOperators)
}

// checkClientOperator confirms the client operator CSV succeeded and
// the storage client reached Connected.
func (o *Orchestrator) checkClientOperator(ctx context.Context, guest *ocp.Client) error {
	operator := deployment.NewClientOperator(guest, o.timeouts, "", "")
	installed, err := operator.Installed(ctx)
	if err != nil {
		return err
	}
	if !installed {
		return fmt.Errorf("client operator is not installed")
	}

	clients := resources.StorageClients(guest.Dynamic)
	obj, err := clients.Get(ctx, StorageClientName)
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("storageclient %s does not exist", StorageClientName)
	}
	if err != nil {
		return err
	}
	if !resources.StorageClientConnected(obj) {
		return &odferrors.ResourceWrongStatus{
			Resource: "storageclient " + StorageClientName,
			Expected: "Connected",
			Actual:   resources.Phase(obj),
		}
	}
	return nil
}

// consumerName resolves the provider-side consumer the guest's storage
// client was assigned.
func (o *Orchestrator) consumerName(ctx context.Context, guest *ocp.Client) (string, error) {
	clients := resources.StorageClients(guest.Dynamic)
	obj, err := clients.Get(ctx, StorageClientName)
	if err != nil {
		return "", err
	}
	id, err := resources.StorageClientID(obj)
	if err != nil {
		return "", err
	}
	return resources.ConsumerName(id), nil
}

// checkStorage confirms the provider holds the consumer for this guest
// and the guest received the ceph storage classes.
func (o *Orchestrator) checkStorage(ctx context.Context, guest *ocp.Client, provider *ocp.Client, providerNamespace, consumer string) error {
	consumers := resources.StorageConsumers(provider.Dynamic, providerNamespace)
	exists, err := consumers.Exists(ctx, consumer)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("provider has no storageconsumer %s", consumer)
	}

	classes, err := guest.Clientset.StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list storage classes: %w", err)
	}
	ceph := 0
	for _, class := range classes.Items {
		if strings.Contains(class.Provisioner, "csi.ceph.com") {
			ceph++
		}
	}
	if ceph < 2 {
		return fmt.Errorf("expected cephfs and rbd storage classes, found %d ceph-provisioned", ceph)
	}
	return nil
}

// checkHeartbeat waits for the consumer's heartbeat to be younger than
// the configured threshold, proving the client side is alive right now
// rather than merely once connected.
func (o *Orchestrator) checkHeartbeat(ctx context.Context, provider *ocp.Client, providerNamespace, consumer string) error {
	consumers := resources.StorageConsumers(provider.Dynamic, providerNamespace)
	what := fmt.Sprintf("fresh heartbeat from %s", consumer)
	return ocp.PollUntil(ctx, what, o.timeouts.PollInterval, o.timeouts.ConsumerHeartbeat, func(ctx context.Context) (bool, string, error) {
		obj, err := consumers.Get(ctx, consumer)
		if apierrors.IsNotFound(err) {
			return false, "consumer not found", nil
		}
		if err != nil {
			return false, "", err
		}
		last, err := resources.LastHeartbeat(obj)
		if err != nil {
			return false, err.Error(), nil
		}
		age := time.Since(last)
		if age > o.timeouts.HeartbeatThreshold {
			return false, fmt.Sprintf("last heartbeat %s ago", age.Round(time.Second)), nil
		}
		return true, "", nil
	})
}

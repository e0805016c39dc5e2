//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/odfkit/odfkit/internal/ceph"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

// connect builds a client for one of the run's clusters or fails the
// test.
func connect(t *testing.T, cluster *framework.Cluster) *ocp.Client {
	t.Helper()
	client, err := ocp.NewClient(cluster.Kubeconfig)
	if err != nil {
		t.Fatalf("Failed to connect to cluster %q: %v", cluster.Name, err)
	}
	return client
}

// waitCephHealthy polls the provider's ceph health until HEALTH_OK.
func waitCephHealthy(ctx context.Context, t *testing.T, client *ocp.Client, namespace string, timeout time.Duration) *ceph.ClusterStatus {
	t.Helper()
	tools := ceph.NewTools(client, namespace)

	if err := tools.WaitForHealthOK(ctx, 15*time.Second, timeout); err != nil {
		t.Fatalf("Ceph did not reach HEALTH_OK: %v", err)
	}
	status, err := tools.Status(ctx)
	if err != nil {
		t.Fatalf("Failed to read ceph status: %v", err)
	}
	t.Logf("  ✓ ceph %s (%d mons, %d/%d osds up)",
		status.Health.Status, status.Mons, status.OSDs.Up, status.OSDs.Total)
	return status
}

// objectPhaseEnabled reports whether the object workload phase has an
// endpoint and credentials to run against.
func objectPhaseEnabled(fw *framework.Framework) bool {
	provider := fw.Provider()
	if provider.S3.Endpoint == "" {
		return false
	}
	return os.Getenv(provider.S3.AccessKeyEnv) != "" && os.Getenv(provider.S3.SecretKeyEnv) != ""
}

// keepArtifacts reports whether scale batches and buckets should
// survive the run for inspection.
func keepArtifacts() bool {
	return os.Getenv("ODFKIT_E2E_KEEP") != ""
}

// faultsEnabled reports whether the fault campaign phase is opted in.
// Fault injection needs privileged debug pods on the provider nodes.
func faultsEnabled() bool {
	return os.Getenv("ODFKIT_E2E_FAULTS") != ""
}

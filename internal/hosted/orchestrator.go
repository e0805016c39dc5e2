// Package hosted manages a fleet of hosted clusters on a hub: creation
// through the hcp CLI, storage client installation into each guest, and
// staged validation of the fleet against the provider. Every operation
// is re-entrant, so an interrupted run can be resumed without tearing
// anything down first.
package hosted

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/odfkit/odfkit/internal/crypto/onboarding"
	"github.com/odfkit/odfkit/internal/deployment"
	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
	"github.com/odfkit/odfkit/internal/util/keygen"
	"github.com/odfkit/odfkit/internal/util/retry"
)

const (
	// DefaultClustersNamespace is where hosted cluster resources live on
	// the hub.
	DefaultClustersNamespace = "clusters"

	// StorageClientName is the name of the StorageClient created in each
	// guest cluster.
	StorageClientName = "storage-client"

	// PlatformKubeVirt runs guest nodes as VMs on the hub.
	PlatformKubeVirt = "kubevirt"

	kubeconfigSecretKey = "kubeconfig"
)

// Orchestrator drives the hosted cluster fleet described by the
// configuration. The hub client talks to the management cluster; guest
// clients are built lazily from the kubeconfigs the control planes
// publish.
type Orchestrator struct {
	hub       *ocp.Client
	hcp       *HCP
	timeouts  *framework.Timeouts
	steps     *framework.Steps
	cfg       framework.HostedConfig
	namespace string

	mu     sync.Mutex
	guests map[string]*ocp.Client
}

// NewOrchestrator returns an orchestrator for the configured fleet.
func NewOrchestrator(hub *ocp.Client, hcp *HCP, timeouts *framework.Timeouts, steps *framework.Steps, cfg framework.HostedConfig) *Orchestrator {
	return &Orchestrator{
		hub:       hub,
		hcp:       hcp,
		timeouts:  timeouts,
		steps:     steps,
		cfg:       cfg,
		namespace: DefaultClustersNamespace,
		guests:    make(map[string]*ocp.Client),
	}
}

// ClusterNames returns the names of the clusters this run manages,
// derived from the configured prefix and count.
func (o *Orchestrator) ClusterNames() []string {
	return clusterNames(o.cfg.NamePrefix, o.cfg.Count)
}

// Create brings the fleet to the configured size. Clusters that already
// exist are reused, missing ones are created, and the call returns once
// every control plane is Available and every node pool is at its target
// replica count.
func (o *Orchestrator) Create(ctx context.Context) error {
	if o.cfg.Platform != PlatformKubeVirt {
		return &odferrors.UnsupportedPlatform{Platform: o.cfg.Platform, Operation: "hosted cluster creation"}
	}

	sshKeyPath := ""
	if o.cfg.KeyDir != "" {
		_, pubPath, err := keygen.EnsureKeyFiles(o.cfg.KeyDir, "odfkit-hosted")
		if err != nil {
			return fmt.Errorf("failed to prepare ssh key for hosted clusters: %w", err)
		}
		sshKeyPath = pubPath
	}

	hcs := resources.HostedClusters(o.hub.Dynamic, o.namespace)
	for _, name := range o.ClusterNames() {
		exists, err := hcs.Exists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			o.steps.Step("Hosted cluster %s already exists, reusing it", name)
			continue
		}

		o.steps.Step("Creating hosted cluster %s", name)
		spec := CreateSpec{
			Name:             name,
			Namespace:        o.namespace,
			ReleaseImage:     o.cfg.ReleaseImage,
			NodePoolReplicas: o.cfg.NodePoolReplicas,
			CPUCores:         o.cfg.CPUCores,
			Memory:           o.cfg.Memory,
			PullSecretPath:   o.cfg.PullSecretPath,
			SSHKeyPath:       sshKeyPath,
		}
		if err := o.hcp.CreateKubeVirt(ctx, spec); err != nil {
			return fmt.Errorf("failed to create hosted cluster %s: %w", name, err)
		}
	}

	return o.waitFleetReady(ctx)
}

// waitFleetReady waits for every cluster's control plane and node pool,
// in fleet order. Creation already happened, so waits are sequential;
// the control planes progress concurrently on their own.
func (o *Orchestrator) waitFleetReady(ctx context.Context) error {
	hcs := resources.HostedClusters(o.hub.Dynamic, o.namespace)
	pools := resources.NodePools(o.hub.Dynamic, o.namespace)

	for _, name := range o.ClusterNames() {
		o.steps.Step("Waiting for hosted cluster %s to become available", name)
		if err := hcs.WaitForCondition(ctx, name, "Available", "True", o.timeouts.HostedCluster); err != nil {
			return err
		}

		o.steps.Step("Waiting for node pool %s to reach %d replicas", name, o.cfg.NodePoolReplicas)
		what := fmt.Sprintf("node pool %s ready", name)
		err := ocp.PollUntil(ctx, what, o.timeouts.PollInterval, o.timeouts.NodesReady, func(ctx context.Context) (bool, string, error) {
			pool, err := pools.Get(ctx, name)
			if apierrors.IsNotFound(err) {
				return false, "node pool not created yet", nil
			}
			if err != nil {
				return false, "", err
			}
			if !resources.NodePoolReady(pool) {
				return false, "replicas not ready", nil
			}
			return true, "", nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GuestKubeconfig fetches the kubeconfig the control plane published
// for the named cluster, waiting for the secret if the control plane
// has not written it yet. When a kubeconfig directory is configured the
// bytes are also written there for use outside the framework.
func (o *Orchestrator) GuestKubeconfig(ctx context.Context, name string) ([]byte, error) {
	hcs := resources.HostedClusters(o.hub.Dynamic, o.namespace)

	var data []byte
	what := fmt.Sprintf("kubeconfig of hosted cluster %s", name)
	err := ocp.PollUntil(ctx, what, o.timeouts.PollInterval, o.timeouts.GuestKubeconfig, func(ctx context.Context) (bool, string, error) {
		hc, err := hcs.Get(ctx, name)
		if apierrors.IsNotFound(err) {
			return false, "hosted cluster not found", nil
		}
		if err != nil {
			return false, "", err
		}
		secretName, err := resources.KubeconfigSecretName(hc)
		if err != nil {
			return false, "kubeconfig secret not published yet", nil
		}
		data, err = o.hub.ReadSecretKey(ctx, o.namespace, secretName, kubeconfigSecretKey)
		if err != nil {
			return false, fmt.Sprintf("kubeconfig secret not readable: %v", err), nil
		}
		return true, "", nil
	})
	if err != nil {
		return nil, err
	}

	if o.cfg.KubeconfigDir != "" {
		if err := o.saveKubeconfig(name, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (o *Orchestrator) saveKubeconfig(name string, data []byte) error {
	if err := os.MkdirAll(o.cfg.KubeconfigDir, 0o755); err != nil {
		return fmt.Errorf("failed to create kubeconfig directory: %w", err)
	}
	path := filepath.Join(o.cfg.KubeconfigDir, name+".kubeconfig")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write kubeconfig for %s: %w", name, err)
	}
	return nil
}

// GuestClient returns a client for the named guest cluster, verified
// reachable. Clients are cached per cluster for the lifetime of the
// orchestrator.
func (o *Orchestrator) GuestClient(ctx context.Context, name string) (*ocp.Client, error) {
	o.mu.Lock()
	if guest, ok := o.guests[name]; ok {
		o.mu.Unlock()
		return guest, nil
	}
	o.mu.Unlock()

	data, err := o.GuestKubeconfig(ctx, name)
	if err != nil {
		return nil, err
	}

	var guest *ocp.Client
	err = retry.OnFlaky(ctx, fmt.Sprintf("connect to hosted cluster %s", name), func() error {
		c, err := ocp.NewClientFromBytes(data)
		if err != nil {
			// A kubeconfig that does not parse will not heal on retry.
			return retry.Fatal(err)
		}
		// A freshly published endpoint can refuse connections for a
		// while; probe before handing the client out.
		if _, err := c.Clientset.Discovery().ServerVersion(); err != nil {
			return err
		}
		guest = c
		return nil
	},
		retry.WithMaxRetries(o.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(o.timeouts.RetryInitialDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("hosted cluster %s is not reachable: %w", name, err)
	}

	o.mu.Lock()
	o.guests[name] = guest
	o.mu.Unlock()
	return guest, nil
}

// setGuestClient seeds the cache; used by tests and by callers that
// already hold a connected client.
func (o *Orchestrator) setGuestClient(name string, guest *ocp.Client) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.guests[name] = guest
}

// InstallClients installs the storage client operator into every guest
// and connects each one to the provider with a freshly minted
// onboarding ticket. Guests whose operator is already installed or
// whose client is already connected are left alone.
func (o *Orchestrator) InstallClients(ctx context.Context, provider *deployment.ODF, catalogImage, channel string) error {
	o.steps.Step("Resolving provider endpoint and onboarding key")
	var endpoint string
	err := retry.OnFlaky(ctx, "resolve provider endpoint", func() error {
		var err error
		endpoint, err = provider.ProviderEndpoint(ctx)
		return err
	},
		retry.WithMaxRetries(o.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(o.timeouts.RetryInitialDelay),
	)
	if err != nil {
		return err
	}

	keyPEM, err := provider.OnboardingKey(ctx)
	if err != nil {
		return err
	}
	key, err := onboarding.ParsePrivateKey(keyPEM)
	if err != nil {
		return err
	}

	for _, name := range o.ClusterNames() {
		guest, err := o.GuestClient(ctx, name)
		if err != nil {
			return err
		}

		operator := deployment.NewClientOperator(guest, o.timeouts, catalogImage, channel)
		installed, err := operator.Installed(ctx)
		if err != nil {
			return err
		}
		if installed {
			o.steps.Step("Client operator already installed on %s", name)
		} else {
			o.steps.Step("Installing client operator on %s", name)
			if err := operator.Deploy(ctx); err != nil {
				return fmt.Errorf("failed to install client operator on %s: %w", name, err)
			}
		}

		connected, err := operator.IsConnected(ctx, StorageClientName)
		if err != nil {
			return err
		}
		if connected {
			o.steps.Step("Storage client on %s already connected", name)
			continue
		}

		// Tickets are single-use on the provider side, so each cluster
		// gets its own.
		ticket, err := onboarding.GenerateTicket(key, onboarding.DefaultValidity)
		if err != nil {
			return err
		}
		o.steps.Step("Connecting storage client on %s to %s", name, endpoint)
		if err := operator.Connect(ctx, StorageClientName, endpoint, ticket); err != nil {
			return fmt.Errorf("failed to connect storage client on %s: %w", name, err)
		}
	}
	return nil
}

// Destroy tears down every cluster in the fleet and waits until the
// hub no longer knows them. Clusters that are already gone are skipped.
func (o *Orchestrator) Destroy(ctx context.Context) error {
	hcs := resources.HostedClusters(o.hub.Dynamic, o.namespace)

	for _, name := range o.ClusterNames() {
		exists, err := hcs.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			o.steps.Step("Hosted cluster %s already gone", name)
			continue
		}

		o.steps.Step("Destroying hosted cluster %s", name)
		if err := o.hcp.DestroyCluster(ctx, name, o.namespace); err != nil {
			return fmt.Errorf("failed to destroy hosted cluster %s: %w", name, err)
		}

		what := fmt.Sprintf("hosted cluster %s removed", name)
		err = ocp.PollUntil(ctx, what, o.timeouts.PollInterval, o.timeouts.HostedCluster, func(ctx context.Context) (bool, string, error) {
			exists, err := hcs.Exists(ctx, name)
			if err != nil {
				return false, "", err
			}
			if exists {
				return false, "still present", nil
			}
			return true, "", nil
		})
		if err != nil {
			return err
		}

		o.mu.Lock()
		delete(o.guests, name)
		o.mu.Unlock()
	}
	return nil
}

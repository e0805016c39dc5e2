package wizard

import (
	"context"
	"fmt"

	"github.com/odfkit/odfkit/internal/framework"
)

// WizardResult holds all the answers from the interactive wizard.
type WizardResult struct {
	Clusters []ClusterAnswers
}

// ClusterAnswers holds the answers describing one cluster.
type ClusterAnswers struct {
	// Identity
	Name     string
	Role     string // provider | hub | client
	Platform string // baremetal, vsphere, aws

	// Access
	Kubeconfig string

	// Storage cluster (provider role)
	Channel       string
	DeviceSets    int
	DeviceSetSize string
	CatalogImage  string
	StorageClass  string

	// Load balancer pool (bare-metal platform)
	MetalLBAddresses []string

	// Hosted clusters (hub role)
	HostedCount      int
	HostedPlatform   string
	NodePoolReplicas int
	ReleaseImage     string
	PullSecretPath   string

	// Object storage (advanced mode)
	S3Endpoint string
	S3Region   string
}

// RunWizard runs the interactive configuration wizard. Clusters are
// described one at a time until the user declines to add another. If
// advanced is true, additional configuration options are shown. The
// context is used for cancellation support (e.g., Ctrl+C).
func RunWizard(ctx context.Context, advanced bool) (*WizardResult, error) {
	result := &WizardResult{}

	for {
		answers := ClusterAnswers{}

		if err := runClusterIdentityGroup(ctx, &answers); err != nil {
			return nil, fmt.Errorf("cluster identity: %w", err)
		}

		if err := runKubeconfigGroup(ctx, &answers); err != nil {
			return nil, fmt.Errorf("cluster access: %w", err)
		}

		if answers.Role == framework.RoleProvider {
			if err := runStorageGroup(ctx, &answers); err != nil {
				return nil, fmt.Errorf("storage: %w", err)
			}
		}

		if answers.Platform == PlatformBareMetal {
			if err := runMetalLBGroup(ctx, &answers); err != nil {
				return nil, fmt.Errorf("load balancer: %w", err)
			}
		}

		if answers.Role == framework.RoleHub {
			if err := runHostedGroup(ctx, &answers); err != nil {
				return nil, fmt.Errorf("hosted clusters: %w", err)
			}
		}

		if advanced {
			if err := runObjectStorageGroup(ctx, &answers); err != nil {
				return nil, fmt.Errorf("object storage: %w", err)
			}
		}

		result.Clusters = append(result.Clusters, answers)

		var addMore bool
		if err := runAddClusterGroup(ctx, &addMore); err != nil {
			return nil, fmt.Errorf("clusters: %w", err)
		}
		if !addMore {
			break
		}
	}

	return result, nil
}

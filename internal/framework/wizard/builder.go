package wizard

import "github.com/odfkit/odfkit/internal/framework"

// BuildConfig creates a framework.Config from the wizard result.
func BuildConfig(result *WizardResult) *framework.Config {
	cfg := &framework.Config{}

	for _, answers := range result.Clusters {
		cluster := &framework.Cluster{
			Name:       answers.Name,
			Role:       answers.Role,
			Platform:   answers.Platform,
			Kubeconfig: answers.Kubeconfig,
		}

		if len(answers.MetalLBAddresses) > 0 {
			cluster.MetalLBAddresses = answers.MetalLBAddresses
		}

		// Storage settings only make sense on the provider.
		if answers.Role == framework.RoleProvider {
			cluster.Storage = framework.StorageConfig{
				Channel:          answers.Channel,
				DeviceSets:       answers.DeviceSets,
				DeviceSetSize:    answers.DeviceSetSize,
				CatalogImage:     answers.CatalogImage,
				StorageClassName: answers.StorageClass,
			}
		}

		if answers.Role == framework.RoleHub {
			cluster.Hosted = framework.HostedConfig{
				Count:            answers.HostedCount,
				Platform:         answers.HostedPlatform,
				NodePoolReplicas: answers.NodePoolReplicas,
				ReleaseImage:     answers.ReleaseImage,
				PullSecretPath:   answers.PullSecretPath,
			}
		}

		if answers.S3Endpoint != "" {
			cluster.S3 = framework.S3Config{
				Endpoint: answers.S3Endpoint,
				Region:   answers.S3Region,
			}
		}

		cfg.Clusters = append(cfg.Clusters, cluster)
	}

	return cfg
}

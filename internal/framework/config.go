// Package framework holds the process-wide test-run configuration: the
// set of clusters under management, the active cluster context, run
// identity, and the timeout budgets shared by all polling code.
package framework

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Cluster roles. A provider runs the storage cluster, clients consume it
// through the client operator, and the hub hosts the control planes of
// hosted clusters. One cluster may fill several roles.
const (
	RoleProvider = "provider"
	RoleClient   = "client"
	RoleHub      = "hub"
)

// Config holds the full multi-cluster run configuration.
type Config struct {
	// RunID tags every resource the run creates. Generated when empty.
	RunID string `yaml:"run_id"`

	Clusters []*Cluster `yaml:"clusters"`
}

// Cluster holds one cluster's settings.
type Cluster struct {
	Name       string `yaml:"name"`
	Role       string `yaml:"role"` // provider | client | hub
	Kubeconfig string `yaml:"kubeconfig"`
	Platform   string `yaml:"platform"` // e.g. baremetal, vsphere, aws

	// MetalLBAddresses feed the load balancer address pool on
	// bare-metal clusters, e.g. "10.0.40.10-10.0.40.30".
	MetalLBAddresses []string `yaml:"metallb_addresses"`

	Storage StorageConfig `yaml:"storage"`
	Hosted  HostedConfig  `yaml:"hosted"`
	S3      S3Config      `yaml:"s3"`
}

// StorageConfig describes the storage deployment on a provider cluster.
type StorageConfig struct {
	Namespace          string `yaml:"namespace"`            // Default: openshift-storage
	StorageClusterName string `yaml:"storage_cluster_name"` // Default: ocs-storagecluster
	CatalogImage       string `yaml:"catalog_image"`        // Operator catalog image
	Channel            string `yaml:"channel"`              // Subscription channel, e.g. stable-4.18
	DeviceSets         int    `yaml:"device_sets"`          // Default: 1
	DeviceSetSize      string `yaml:"device_set_size"`      // Default: 512Gi
	StorageClassName   string `yaml:"storage_class_name"`   // Backing SC for device sets
	ReplicaCount       int    `yaml:"replica_count"`        // Default: 3
}

// HostedConfig describes the hosted clusters created from a hub.
type HostedConfig struct {
	Count            int    `yaml:"count"`
	NamePrefix       string `yaml:"name_prefix"` // Default: hcp
	Platform         string `yaml:"platform"`    // kubevirt | agent
	ReleaseImage     string `yaml:"release_image"`
	NodePoolReplicas int    `yaml:"node_pool_replicas"` // Default: 2
	CPUCores         int    `yaml:"cpu_cores"`          // Default: 8
	Memory           string `yaml:"memory"`             // Default: 12Gi
	PullSecretPath   string `yaml:"pull_secret_path"`
	KeyDir           string `yaml:"key_dir"` // SSH key pair location, generated when absent
	KubeconfigDir    string `yaml:"kubeconfig_dir"`
}

// S3Config describes the object-storage endpoint used by workloads.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`         // Default: us-east-1
	AccessKeyEnv string `yaml:"access_key_env"` // Default: AWS_ACCESS_KEY_ID
	SecretKeyEnv string `yaml:"secret_key_env"` // Default: AWS_SECRET_ACCESS_KEY
}

// LoadConfig reads and parses the configuration from a YAML file, applies
// defaults, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RunID == "" {
		c.RunID = ShortID()
	}
	for _, cl := range c.Clusters {
		if cl.Storage.Namespace == "" {
			cl.Storage.Namespace = "openshift-storage"
		}
		if cl.Storage.StorageClusterName == "" {
			cl.Storage.StorageClusterName = "ocs-storagecluster"
		}
		if cl.Storage.DeviceSets == 0 {
			cl.Storage.DeviceSets = 1
		}
		if cl.Storage.DeviceSetSize == "" {
			cl.Storage.DeviceSetSize = "512Gi"
		}
		if cl.Storage.ReplicaCount == 0 {
			cl.Storage.ReplicaCount = 3
		}
		if cl.Hosted.NamePrefix == "" {
			cl.Hosted.NamePrefix = "hcp"
		}
		if cl.Hosted.Platform == "" {
			cl.Hosted.Platform = "kubevirt"
		}
		if cl.Hosted.NodePoolReplicas == 0 {
			cl.Hosted.NodePoolReplicas = 2
		}
		if cl.Hosted.CPUCores == 0 {
			cl.Hosted.CPUCores = 8
		}
		if cl.Hosted.Memory == "" {
			cl.Hosted.Memory = "12Gi"
		}
		if cl.S3.Region == "" {
			cl.S3.Region = "us-east-1"
		}
		if cl.S3.AccessKeyEnv == "" {
			cl.S3.AccessKeyEnv = "AWS_ACCESS_KEY_ID"
		}
		if cl.S3.SecretKeyEnv == "" {
			cl.S3.SecretKeyEnv = "AWS_SECRET_ACCESS_KEY"
		}
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("at least one cluster is required")
	}

	seen := make(map[string]bool, len(c.Clusters))
	for i, cl := range c.Clusters {
		if cl.Name == "" {
			return fmt.Errorf("cluster %d: name is required", i)
		}
		if seen[cl.Name] {
			return fmt.Errorf("duplicate cluster name %q", cl.Name)
		}
		seen[cl.Name] = true

		switch cl.Role {
		case RoleProvider, RoleClient, RoleHub:
		case "":
			return fmt.Errorf("cluster %q: role is required", cl.Name)
		default:
			return fmt.Errorf("cluster %q: unknown role %q", cl.Name, cl.Role)
		}

		if cl.Kubeconfig == "" {
			return fmt.Errorf("cluster %q: kubeconfig is required", cl.Name)
		}
	}

	return nil
}

// ByName returns the cluster with the given name, or nil.
func (c *Config) ByName(name string) *Cluster {
	for _, cl := range c.Clusters {
		if cl.Name == name {
			return cl
		}
	}
	return nil
}

// ShortID returns an 8-character lowercase identifier suitable for
// tagging run-scoped resources.
func ShortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

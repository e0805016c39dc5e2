package wizard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/odfkit/odfkit/internal/framework"
)

// Function variable for dependency injection in tests.
var confirmOverwrite = defaultConfirmOverwrite

// WriteConfig writes the config to a YAML file with a descriptive header.
// If fullOutput is false, only essential non-default values are written.
func WriteConfig(cfg *framework.Config, outputPath string, fullOutput bool) error {
	var yamlBytes []byte
	var err error

	if fullOutput {
		yamlBytes, err = yaml.Marshal(cfg)
	} else {
		minCfg := buildMinimalConfig(cfg)
		yamlBytes, err = yaml.Marshal(minCfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(generateHeader(outputPath, fullOutput))
	sb.WriteString("\n")
	sb.Write(yamlBytes)

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// MinimalConfig represents the minimal configuration for YAML output.
// Only contains fields that are essential or explicitly set by the user.
type MinimalConfig struct {
	Clusters []MinimalCluster `yaml:"clusters"`
}

// MinimalCluster contains essential per-cluster settings.
type MinimalCluster struct {
	Name             string          `yaml:"name"`
	Role             string          `yaml:"role"`
	Kubeconfig       string          `yaml:"kubeconfig"`
	Platform         string          `yaml:"platform,omitempty"`
	MetalLBAddresses []string        `yaml:"metallb_addresses,omitempty"`
	Storage          *MinimalStorage `yaml:"storage,omitempty"`
	Hosted           *MinimalHosted  `yaml:"hosted,omitempty"`
	S3               *MinimalS3      `yaml:"s3,omitempty"`
}

// MinimalStorage contains essential storage cluster settings.
type MinimalStorage struct {
	Channel          string `yaml:"channel,omitempty"`
	DeviceSets       int    `yaml:"device_sets,omitempty"`
	DeviceSetSize    string `yaml:"device_set_size,omitempty"`
	CatalogImage     string `yaml:"catalog_image,omitempty"`
	StorageClassName string `yaml:"storage_class_name,omitempty"`
}

// MinimalHosted contains essential hosted-cluster settings.
type MinimalHosted struct {
	Count            int    `yaml:"count,omitempty"`
	Platform         string `yaml:"platform,omitempty"`
	NodePoolReplicas int    `yaml:"node_pool_replicas,omitempty"`
	ReleaseImage     string `yaml:"release_image,omitempty"`
	PullSecretPath   string `yaml:"pull_secret_path,omitempty"`
}

// MinimalS3 contains the object storage endpoint if customized.
type MinimalS3 struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region,omitempty"`
}

// buildMinimalConfig creates a minimal config from the full config.
func buildMinimalConfig(cfg *framework.Config) *MinimalConfig {
	minCfg := &MinimalConfig{}

	for _, cluster := range cfg.Clusters {
		minCluster := MinimalCluster{
			Name:             cluster.Name,
			Role:             cluster.Role,
			Kubeconfig:       cluster.Kubeconfig,
			Platform:         cluster.Platform,
			MetalLBAddresses: cluster.MetalLBAddresses,
		}

		if cluster.Storage != (framework.StorageConfig{}) {
			minCluster.Storage = &MinimalStorage{
				Channel:          cluster.Storage.Channel,
				DeviceSets:       cluster.Storage.DeviceSets,
				DeviceSetSize:    cluster.Storage.DeviceSetSize,
				CatalogImage:     cluster.Storage.CatalogImage,
				StorageClassName: cluster.Storage.StorageClassName,
			}
		}

		if cluster.Hosted != (framework.HostedConfig{}) {
			minCluster.Hosted = &MinimalHosted{
				Count:            cluster.Hosted.Count,
				Platform:         cluster.Hosted.Platform,
				NodePoolReplicas: cluster.Hosted.NodePoolReplicas,
				ReleaseImage:     cluster.Hosted.ReleaseImage,
				PullSecretPath:   cluster.Hosted.PullSecretPath,
			}
		}

		if cluster.S3.Endpoint != "" {
			minCluster.S3 = &MinimalS3{
				Endpoint: cluster.S3.Endpoint,
				Region:   cluster.S3.Region,
			}
		}

		minCfg.Clusters = append(minCfg.Clusters, minCluster)
	}

	return minCfg
}

// generateHeader creates the YAML file header comment.
func generateHeader(outputPath string, fullOutput bool) string {
	mode := "minimal"
	note := "\n# Note: This is a minimal config. Use --full flag for all options."
	if fullOutput {
		mode = "full"
		note = ""
	}
	return fmt.Sprintf(`# odfkit run configuration
# Generated by: odfkit init
# Generated at: %s
# Output mode: %s
# Docs: https://github.com/odfkit/odfkit%s
#
# Kubeconfig paths must be readable from wherever odfkit runs.
#
# Usage:
#   odfkit deploy odf -c %s
`, time.Now().Format(time.RFC3339), mode, note, outputPath)
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ConfirmOverwrite prompts the user to confirm overwriting an existing file.
func ConfirmOverwrite(path string) (bool, error) {
	return confirmOverwrite(path)
}

// defaultConfirmOverwrite is the default implementation that prompts via stdin.
func defaultConfirmOverwrite(path string) (bool, error) {
	fmt.Printf("\nFile already exists: %s\n", path)
	fmt.Print("Overwrite? (y/n): ")

	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false, err
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

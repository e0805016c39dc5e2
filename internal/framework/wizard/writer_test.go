package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odfkit/odfkit/internal/framework"
)

func providerConfig() *framework.Config {
	return &framework.Config{
		Clusters: []*framework.Cluster{
			{
				Name:       "provider-1",
				Role:       framework.RoleProvider,
				Platform:   PlatformBareMetal,
				Kubeconfig: "/clusters/provider-1/kubeconfig",
				Storage: framework.StorageConfig{
					Channel:       "stable-4.18",
					DeviceSets:    1,
					DeviceSetSize: "512Gi",
				},
			},
		},
	}
}

func TestWriteConfig_MinimalOutput(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "run.yaml")

	err := WriteConfig(providerConfig(), outputPath, false)
	require.NoError(t, err)

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	assert.Contains(t, string(content), "# odfkit run configuration")
	assert.Contains(t, string(content), "Output mode: minimal")
	assert.Contains(t, string(content), "name: provider-1")
	assert.Contains(t, string(content), "role: provider")
	assert.Contains(t, string(content), "channel: stable-4.18")
	// A provider-only config carries no hosted or run_id noise.
	assert.NotContains(t, string(content), "hosted:")
	assert.NotContains(t, string(content), "run_id:")
	// Header names the actual output path.
	assert.Contains(t, string(content), outputPath)
}

func TestWriteConfig_FullOutput(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "run.yaml")

	err := WriteConfig(providerConfig(), outputPath, true)
	require.NoError(t, err)

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	assert.Contains(t, string(content), "Output mode: full")
	assert.NotContains(t, string(content), "Note: This is a minimal config")
	// Full mode writes every field, set or not.
	assert.Contains(t, string(content), "hosted:")
}

func TestWriteConfig_FilePermissions(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "run.yaml")

	err := WriteConfig(providerConfig(), outputPath, false)
	require.NoError(t, err)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWriteConfig_InvalidPath(t *testing.T) {
	err := WriteConfig(providerConfig(), "/nonexistent/dir/run.yaml", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write file")
}

func TestWriteConfig_RoundTripsThroughLoader(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "run.yaml")

	require.NoError(t, WriteConfig(providerConfig(), outputPath, false))

	cfg, err := framework.LoadConfig(outputPath)
	require.NoError(t, err)
	require.Len(t, cfg.Clusters, 1)
	assert.Equal(t, "provider-1", cfg.Clusters[0].Name)
	assert.Equal(t, "stable-4.18", cfg.Clusters[0].Storage.Channel)
	// Loader fills the defaults the minimal output omits.
	assert.Equal(t, "openshift-storage", cfg.Clusters[0].Storage.Namespace)
	assert.NotEmpty(t, cfg.RunID)
}

func TestBuildMinimalConfig(t *testing.T) {
	cfg := &framework.Config{
		Clusters: []*framework.Cluster{
			{
				Name:             "hub-1",
				Role:             framework.RoleHub,
				Platform:         PlatformBareMetal,
				Kubeconfig:       "/clusters/hub-1/kubeconfig",
				MetalLBAddresses: []string{"10.0.40.10-10.0.40.30"},
				Hosted: framework.HostedConfig{
					Count:    2,
					Platform: HostedKubeVirt,
				},
				S3: framework.S3Config{
					Endpoint: "https://s3.example.com",
					Region:   "us-east-1",
				},
			},
			{
				Name:       "client-1",
				Role:       framework.RoleClient,
				Kubeconfig: "/clusters/client-1/kubeconfig",
			},
		},
	}

	minCfg := buildMinimalConfig(cfg)
	require.Len(t, minCfg.Clusters, 2)

	hub := minCfg.Clusters[0]
	assert.Equal(t, "hub-1", hub.Name)
	assert.Equal(t, []string{"10.0.40.10-10.0.40.30"}, hub.MetalLBAddresses)
	require.NotNil(t, hub.Hosted)
	assert.Equal(t, 2, hub.Hosted.Count)
	assert.Equal(t, HostedKubeVirt, hub.Hosted.Platform)
	require.NotNil(t, hub.S3)
	assert.Equal(t, "https://s3.example.com", hub.S3.Endpoint)
	assert.Nil(t, hub.Storage)

	client := minCfg.Clusters[1]
	assert.Nil(t, client.Storage)
	assert.Nil(t, client.Hosted)
	assert.Nil(t, client.S3)
}

func TestGenerateHeader(t *testing.T) {
	header := generateHeader("run.yaml", false)

	assert.Contains(t, header, "# odfkit run configuration")
	assert.Contains(t, header, "Generated by: odfkit init")
	assert.Contains(t, header, "Output mode: minimal")
	assert.Contains(t, header, "Generated at:")
	assert.Contains(t, header, "odfkit deploy odf -c run.yaml")
}

func TestGenerateHeader_FullMode(t *testing.T) {
	header := generateHeader("run.yaml", true)

	assert.Contains(t, header, "Output mode: full")
	assert.NotContains(t, header, "Note: This is a minimal config")
}

func TestConfirmOverwrite_Stubbed(t *testing.T) {
	orig := confirmOverwrite
	defer func() { confirmOverwrite = orig }()

	confirmOverwrite = func(path string) (bool, error) { return true, nil }
	ok, err := ConfirmOverwrite("run.yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	confirmOverwrite = func(path string) (bool, error) { return false, nil }
	ok, err = ConfirmOverwrite("run.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploy(t *testing.T) {
	cmd := Deploy()

	require.NotNil(t, cmd)
	assert.Equal(t, "deploy", cmd.Use)
	assert.Equal(t, "Deploy operators onto configured clusters", cmd.Short)
}

func TestDeploy_HasSubcommands(t *testing.T) {
	cmd := Deploy()

	expectedSubcommands := []string{
		"odf",
		"cert-manager",
		"metallb",
		"mce",
		"cnv",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestDeployODF(t *testing.T) {
	cmd := DeployODF()

	require.NotNil(t, cmd)
	assert.Equal(t, "odf", cmd.Use)
	assert.Equal(t, "Deploy the storage operator and storage cluster", cmd.Short)
	assert.Contains(t, cmd.Long, "provider mode")
}

func TestDeployODF_ConfigFlag(t *testing.T) {
	cmd := DeployODF()

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag, "config flag should exist")
	assert.Equal(t, "c", flag.Shorthand)
	assert.Equal(t, "odfkit.yaml", flag.DefValue)
	assert.Equal(t, "Path to the run configuration", flag.Usage)
}

func TestDeployODF_RunE(t *testing.T) {
	cmd := DeployODF()
	assert.NotNil(t, cmd.RunE, "DeployODF command should have RunE function")
}

func TestDeployCertManager(t *testing.T) {
	cmd := DeployCertManager()

	require.NotNil(t, cmd)
	assert.Equal(t, "cert-manager", cmd.Use)
	assert.Equal(t, "Deploy cert-manager via its Helm chart", cmd.Short)
}

func TestDeployCertManager_ClusterFlag(t *testing.T) {
	cmd := DeployCertManager()

	flag := cmd.Flags().Lookup("cluster")
	require.NotNil(t, flag, "cluster flag should exist")
	assert.Equal(t, "", flag.Shorthand)
	assert.Equal(t, "", flag.DefValue)
	assert.Equal(t, "Target cluster (default: the hub)", flag.Usage)
}

func TestDeployMetalLB(t *testing.T) {
	cmd := DeployMetalLB()

	require.NotNil(t, cmd)
	assert.Equal(t, "metallb", cmd.Use)
	assert.Equal(t, "Deploy MetalLB with the configured address pool", cmd.Short)
}

func TestDeployMetalLB_ClusterFlag(t *testing.T) {
	cmd := DeployMetalLB()

	flag := cmd.Flags().Lookup("cluster")
	require.NotNil(t, flag, "cluster flag should exist")
	assert.Equal(t, "Target cluster (default: the provider)", flag.Usage)
}

func TestDeployMCE(t *testing.T) {
	cmd := DeployMCE()

	require.NotNil(t, cmd)
	assert.Equal(t, "mce", cmd.Use)
	assert.Equal(t, "Deploy the multicluster engine on the hub", cmd.Short)
	assert.NotNil(t, cmd.RunE, "DeployMCE command should have RunE function")
}

func TestDeployCNV(t *testing.T) {
	cmd := DeployCNV()

	require.NotNil(t, cmd)
	assert.Equal(t, "cnv", cmd.Use)
	assert.Equal(t, "Deploy OpenShift Virtualization on the hub", cmd.Short)
	assert.NotNil(t, cmd.RunE, "DeployCNV command should have RunE function")
}

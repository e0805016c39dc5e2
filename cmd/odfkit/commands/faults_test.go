package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaults(t *testing.T) {
	cmd := Faults()

	require.NotNil(t, cmd)
	assert.Equal(t, "faults", cmd.Use)
	assert.Equal(t, "Inject network faults into storage nodes", cmd.Short)
}

func TestFaultsRun(t *testing.T) {
	cmd := FaultsRun()

	require.NotNil(t, cmd)
	assert.Equal(t, "run", cmd.Use)
	assert.Equal(t, "Run a network fault campaign against the provider", cmd.Short)
	assert.Contains(t, cmd.Long, "delay+loss")
}

func TestFaultsRun_FaultFlag(t *testing.T) {
	cmd := FaultsRun()

	flag := cmd.Flags().Lookup("fault")
	require.NotNil(t, flag, "fault flag should exist")
	assert.Equal(t, "", flag.Shorthand)
	assert.Equal(t, "[]", flag.DefValue)
	assert.Equal(t, "Fault profile to inject, e.g. loss or delay+loss (repeatable)", flag.Usage)
}

func TestFaultsRun_IterationsFlag(t *testing.T) {
	cmd := FaultsRun()

	flag := cmd.Flags().Lookup("iterations")
	require.NotNil(t, flag, "iterations flag should exist")
	assert.Equal(t, "0", flag.DefValue)
	assert.Equal(t, "Number of iterations (0: one per fault)", flag.Usage)
}

func TestFaultsRun_InterfaceFlag(t *testing.T) {
	cmd := FaultsRun()

	flag := cmd.Flags().Lookup("interface")
	require.NotNil(t, flag, "interface flag should exist")
	assert.Equal(t, "", flag.DefValue)
	assert.Contains(t, flag.Usage, "Network interface")
}

func TestFaultsRun_SeedFlag(t *testing.T) {
	cmd := FaultsRun()

	flag := cmd.Flags().Lookup("seed")
	require.NotNil(t, flag, "seed flag should exist")
	assert.Equal(t, "0", flag.DefValue)
	assert.Equal(t, "Seed for target selection (0: random)", flag.Usage)
}

func TestFaultsRun_RunE(t *testing.T) {
	cmd := FaultsRun()
	assert.NotNil(t, cmd.RunE, "FaultsRun command should have RunE function")
}

package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odfkit/odfkit/internal/faults"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

type stubFaultRunner struct {
	ran bool
	err error
}

func (s *stubFaultRunner) Run(_ context.Context) error {
	s.ran = true
	return s.err
}

type stubConsole struct{}

func (stubConsole) DebugNode(_ context.Context, _ string, _ ...string) (string, error) {
	return "", nil
}

func (stubConsole) RestartNode(_ context.Context, _ string) error { return nil }

func TestFaultsRun(t *testing.T) {
	origLoad := loadFramework
	origClient := newClusterClient
	origConsole := newNodeConsole
	origRunner := newFaultRunner
	defer func() {
		loadFramework = origLoad
		newClusterClient = origClient
		newNodeConsole = origConsole
		newFaultRunner = origRunner
	}()

	fw := testFramework(t,
		&framework.Cluster{Name: "prov", Role: framework.RoleProvider, Kubeconfig: "prov.kubeconfig"},
	)
	loadFramework = func(_ string) (*framework.Framework, error) { return fw, nil }
	newClusterClient = func(_ string) (*ocp.Client, error) { return &ocp.Client{}, nil }
	newNodeConsole = func(_ string) faults.NodeConsole { return stubConsole{} }

	runner := &stubFaultRunner{}
	var gotSpec CampaignSpec
	newFaultRunner = func(_ *ocp.Client, _ faults.NodeConsole, _ faults.HealthCheck, _ *framework.Timeouts, _ *framework.Steps, spec CampaignSpec) FaultRunner {
		gotSpec = spec
		return runner
	}

	var err error
	captureOutput(func() {
		err = FaultsRun(context.Background(), "odfkit.yaml", []string{"loss", "delay+loss"}, 6, "ens3", 42)
	})

	require.NoError(t, err)
	assert.True(t, runner.ran)
	require.Len(t, gotSpec.Faults, 2)
	assert.Equal(t, "loss", gotSpec.Faults[0].Name())
	assert.Equal(t, "delay+loss", gotSpec.Faults[1].Name())
	assert.Equal(t, 6, gotSpec.Iterations)
	assert.Equal(t, "ens3", gotSpec.Interface)
	assert.Equal(t, int64(42), gotSpec.Seed)
}

func TestFaultsRun_DefaultProfiles(t *testing.T) {
	origLoad := loadFramework
	origClient := newClusterClient
	origConsole := newNodeConsole
	origRunner := newFaultRunner
	defer func() {
		loadFramework = origLoad
		newClusterClient = origClient
		newNodeConsole = origConsole
		newFaultRunner = origRunner
	}()

	fw := testFramework(t,
		&framework.Cluster{Name: "prov", Role: framework.RoleProvider, Kubeconfig: "prov.kubeconfig"},
	)
	loadFramework = func(_ string) (*framework.Framework, error) { return fw, nil }
	newClusterClient = func(_ string) (*ocp.Client, error) { return &ocp.Client{}, nil }
	newNodeConsole = func(_ string) faults.NodeConsole { return stubConsole{} }

	var gotSpec CampaignSpec
	newFaultRunner = func(_ *ocp.Client, _ faults.NodeConsole, _ faults.HealthCheck, _ *framework.Timeouts, _ *framework.Steps, spec CampaignSpec) FaultRunner {
		gotSpec = spec
		return &stubFaultRunner{}
	}

	var err error
	captureOutput(func() {
		err = FaultsRun(context.Background(), "odfkit.yaml", nil, 0, "", 0)
	})

	require.NoError(t, err)
	assert.Empty(t, gotSpec.Faults, "no --fault flags should leave the injector's built-in rotation in place")
}

func TestFaultsRun_BadSpec(t *testing.T) {
	err := FaultsRun(context.Background(), "odfkit.yaml", []string{"meteor"}, 0, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fault kind")
}

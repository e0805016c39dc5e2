//go:build e2e

package e2e

import (
	"sync"

	"github.com/odfkit/odfkit/internal/framework"
)

// E2EState carries the run state as it progresses through test phases.
// Each phase reads from and updates this state, building on previous
// phases.
type E2EState struct {
	// ConfigPath is the run configuration every phase operates on.
	ConfigPath string

	// FW is the framework loaded once by TestMain.
	FW *framework.Framework

	// Storage (phases 1-2)
	StorageDeployed bool
	ProviderHealthy bool

	// Scale (phase 3)
	BatchID string

	// Clients (phase 6)
	ClientsConnected []string
}

// sharedState is the run-wide state, initialized by TestMain.
var sharedState *E2EState

// Result tracking for skip logic between tests.
var (
	resultsLock      sync.Mutex
	deploymentPassed bool
)

// SetDeploymentPassed marks the storage run as passed. Called by
// TestE2EStorageRun after all subtests pass.
func SetDeploymentPassed() {
	resultsLock.Lock()
	defer resultsLock.Unlock()
	deploymentPassed = true
}

// IsDeploymentPassed reports whether TestE2EStorageRun passed. The
// hosted-cluster test never runs when the storage run failed.
func IsDeploymentPassed() bool {
	resultsLock.Lock()
	defer resultsLock.Unlock()
	return deploymentPassed
}

package framework

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable polling budgets.
// These values can be customized via environment variables.
type Timeouts struct {
	OperatorInstall    time.Duration // Budget for an operator install (OLM chain applied)
	CSVSucceeded       time.Duration // Budget for a CSV to reach Succeeded
	StorageCluster     time.Duration // Budget for StorageCluster to reach Ready
	CephHealth         time.Duration // Budget for Ceph to report healthy
	HostedCluster      time.Duration // Budget for a HostedCluster to become Available
	GuestKubeconfig    time.Duration // Budget for the guest kubeconfig secret to appear
	NodesReady         time.Duration // Budget for cluster nodes to reach Ready
	ClusterOperators   time.Duration // Budget for cluster operators to settle
	ClientConnected    time.Duration // Budget for a StorageClient to reach Connected
	ConsumerHeartbeat  time.Duration // Budget for a consumer heartbeat to refresh
	PVCBound           time.Duration // Budget for bulk PVCs to reach Bound
	PodRunning         time.Duration // Budget for bulk pods to reach Running
	ResourceDelete     time.Duration // Budget for delete operations to finalize
	DeploymentReady    time.Duration // Budget for a Deployment rollout
	PollInterval       time.Duration // Tick between poll attempts
	RetryMaxAttempts   int           // Maximum number of retry attempts
	RetryInitialDelay  time.Duration // Initial delay between retries
	FaultHold          time.Duration // How long an injected network fault is held
	FaultPause         time.Duration // Cool-down between fault iterations
	HeartbeatThreshold time.Duration // Max accepted age of a consumer heartbeat
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - ODFKIT_TIMEOUT_OPERATOR_INSTALL (default: 15m)
//   - ODFKIT_TIMEOUT_CSV_SUCCEEDED (default: 10m)
//   - ODFKIT_TIMEOUT_STORAGE_CLUSTER (default: 30m)
//   - ODFKIT_TIMEOUT_CEPH_HEALTH (default: 10m)
//   - ODFKIT_TIMEOUT_HOSTED_CLUSTER (default: 45m)
//   - ODFKIT_TIMEOUT_GUEST_KUBECONFIG (default: 10m)
//   - ODFKIT_TIMEOUT_NODES_READY (default: 15m)
//   - ODFKIT_TIMEOUT_CLUSTER_OPERATORS (default: 30m)
//   - ODFKIT_TIMEOUT_CLIENT_CONNECTED (default: 15m)
//   - ODFKIT_TIMEOUT_CONSUMER_HEARTBEAT (default: 5m)
//   - ODFKIT_TIMEOUT_PVC_BOUND (default: 10m)
//   - ODFKIT_TIMEOUT_POD_RUNNING (default: 10m)
//   - ODFKIT_TIMEOUT_RESOURCE_DELETE (default: 10m)
//   - ODFKIT_TIMEOUT_DEPLOYMENT_READY (default: 10m)
//   - ODFKIT_POLL_INTERVAL (default: 5s)
//   - ODFKIT_RETRY_MAX_ATTEMPTS (default: 5)
//   - ODFKIT_RETRY_INITIAL_DELAY (default: 5s)
//   - ODFKIT_FAULT_HOLD (default: 2m)
//   - ODFKIT_FAULT_PAUSE (default: 1m)
//   - ODFKIT_HEARTBEAT_THRESHOLD (default: 2m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		OperatorInstall:    parseDuration("ODFKIT_TIMEOUT_OPERATOR_INSTALL", 15*time.Minute),
		CSVSucceeded:       parseDuration("ODFKIT_TIMEOUT_CSV_SUCCEEDED", 10*time.Minute),
		StorageCluster:     parseDuration("ODFKIT_TIMEOUT_STORAGE_CLUSTER", 30*time.Minute),
		CephHealth:         parseDuration("ODFKIT_TIMEOUT_CEPH_HEALTH", 10*time.Minute),
		HostedCluster:      parseDuration("ODFKIT_TIMEOUT_HOSTED_CLUSTER", 45*time.Minute),
		GuestKubeconfig:    parseDuration("ODFKIT_TIMEOUT_GUEST_KUBECONFIG", 10*time.Minute),
		NodesReady:         parseDuration("ODFKIT_TIMEOUT_NODES_READY", 15*time.Minute),
		ClusterOperators:   parseDuration("ODFKIT_TIMEOUT_CLUSTER_OPERATORS", 30*time.Minute),
		ClientConnected:    parseDuration("ODFKIT_TIMEOUT_CLIENT_CONNECTED", 15*time.Minute),
		ConsumerHeartbeat:  parseDuration("ODFKIT_TIMEOUT_CONSUMER_HEARTBEAT", 5*time.Minute),
		PVCBound:           parseDuration("ODFKIT_TIMEOUT_PVC_BOUND", 10*time.Minute),
		PodRunning:         parseDuration("ODFKIT_TIMEOUT_POD_RUNNING", 10*time.Minute),
		ResourceDelete:     parseDuration("ODFKIT_TIMEOUT_RESOURCE_DELETE", 10*time.Minute),
		DeploymentReady:    parseDuration("ODFKIT_TIMEOUT_DEPLOYMENT_READY", 10*time.Minute),
		PollInterval:       parseDuration("ODFKIT_POLL_INTERVAL", 5*time.Second),
		RetryMaxAttempts:   parseInt("ODFKIT_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:  parseDuration("ODFKIT_RETRY_INITIAL_DELAY", 5*time.Second),
		FaultHold:          parseDuration("ODFKIT_FAULT_HOLD", 2*time.Minute),
		FaultPause:         parseDuration("ODFKIT_FAULT_PAUSE", 1*time.Minute),
		HeartbeatThreshold: parseDuration("ODFKIT_HEARTBEAT_THRESHOLD", 2*time.Minute),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

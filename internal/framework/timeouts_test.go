package framework

import (
	"testing"
	"time"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	timeouts := LoadTimeouts()

	if timeouts.StorageCluster != 30*time.Minute {
		t.Errorf("StorageCluster = %v, want 30m", timeouts.StorageCluster)
	}
	if timeouts.HostedCluster != 45*time.Minute {
		t.Errorf("HostedCluster = %v, want 45m", timeouts.HostedCluster)
	}
	if timeouts.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", timeouts.PollInterval)
	}
	if timeouts.RetryMaxAttempts != 5 {
		t.Errorf("RetryMaxAttempts = %d, want 5", timeouts.RetryMaxAttempts)
	}
}

func TestLoadTimeouts_EnvOverride(t *testing.T) {
	t.Setenv("ODFKIT_TIMEOUT_CEPH_HEALTH", "90s")
	t.Setenv("ODFKIT_RETRY_MAX_ATTEMPTS", "9")

	timeouts := LoadTimeouts()

	if timeouts.CephHealth != 90*time.Second {
		t.Errorf("CephHealth = %v, want 90s", timeouts.CephHealth)
	}
	if timeouts.RetryMaxAttempts != 9 {
		t.Errorf("RetryMaxAttempts = %d, want 9", timeouts.RetryMaxAttempts)
	}
}

func TestLoadTimeouts_InvalidFallsBack(t *testing.T) {
	t.Setenv("ODFKIT_TIMEOUT_PVC_BOUND", "not-a-duration")
	t.Setenv("ODFKIT_RETRY_MAX_ATTEMPTS", "many")

	timeouts := LoadTimeouts()

	if timeouts.PVCBound != 10*time.Minute {
		t.Errorf("PVCBound = %v, want default 10m", timeouts.PVCBound)
	}
	if timeouts.RetryMaxAttempts != 5 {
		t.Errorf("RetryMaxAttempts = %d, want default 5", timeouts.RetryMaxAttempts)
	}
}

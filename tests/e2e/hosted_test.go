//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// TestE2EHostedClusters creates the hosted-cluster fleet on the hub,
// verifies every guest came up with a connected storage client, pulls a
// guest kubeconfig, and tears the fleet down again.
//
// Runs only after TestE2EStorageRun passed: the guests consume storage
// from the provider deployed there.
func TestE2EHostedClusters(t *testing.T) {
	if !IsDeploymentPassed() {
		t.Skip("Skipping hosted cluster test: storage run did not pass")
	}

	state := sharedState
	hub := state.FW.Hub()
	if hub.Hosted.Count == 0 {
		t.Skipf("Hub %q has hosted.count 0, nothing to create", hub.Name)
	}

	t.Logf("=== Hosted fleet on hub %q: %d x %s guests ===", hub.Name, hub.Hosted.Count, hub.Hosted.Platform)

	destroyed := false
	destroy := func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if err := handlers.HostedDestroy(ctx, state.ConfigPath); err != nil {
			t.Errorf("Fleet teardown failed: %v", err)
			return
		}
		destroyed = true
		t.Log("  ✓ fleet destroyed")
	}
	defer func() {
		// Teardown must run even when a middle phase fails, unless the
		// operator asked to keep the guests for inspection.
		if destroyed || keepArtifacts() {
			if !destroyed {
				t.Log("Fleet kept (ODFKIT_E2E_KEEP set)")
			}
			return
		}
		destroy(t)
	}()

	allPassed := true
	runSubtest := func(name string, fn func(t *testing.T)) {
		if !allPassed {
			t.Skipf("Skipping %s: previous subtest failed", name)
			return
		}
		if !t.Run(name, fn) {
			allPassed = false
		}
	}

	runSubtest("01_CreateFleet", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Minute)
		defer cancel()

		if err := handlers.HostedCreate(ctx, state.ConfigPath, false); err != nil {
			t.Fatalf("Fleet creation failed: %v", err)
		}
		for i := 0; i < hub.Hosted.Count; i++ {
			state.ClientsConnected = append(state.ClientsConnected, fmt.Sprintf("%s-%d", hub.Hosted.NamePrefix, i))
		}
		t.Logf("  ✓ %d hosted clusters created and onboarded", hub.Hosted.Count)
	})

	runSubtest("02_VerifyFleet", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
		defer cancel()

		if err := handlers.HostedVerify(ctx, state.ConfigPath); err != nil {
			t.Fatalf("Fleet verification failed: %v", err)
		}
		t.Log("  ✓ every guest reports Completed with a fresh storage client heartbeat")
	})

	runSubtest("03_GuestKubeconfig", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		guest := state.ClientsConnected[0]
		out := filepath.Join(t.TempDir(), guest+".kubeconfig")
		if err := handlers.HostedKubeconfig(ctx, state.ConfigPath, guest, out); err != nil {
			t.Fatalf("Kubeconfig retrieval for %s failed: %v", guest, err)
		}
		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("Kubeconfig file missing: %v", err)
		}
		if info.Size() == 0 {
			t.Fatal("Kubeconfig file is empty")
		}
		t.Logf("  ✓ kubeconfig for %s written (%d bytes)", guest, info.Size())
	})

	if !keepArtifacts() {
		runSubtest("04_DestroyFleet", destroy)
	}

	if allPassed {
		t.Log("=== HOSTED CLUSTER RUN PASSED ===")
	}
}

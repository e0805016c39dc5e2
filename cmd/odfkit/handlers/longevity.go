package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/odfkit/odfkit/internal/ceph"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/scale"
	"github.com/odfkit/odfkit/internal/workloads"
)

// CycleRunner interface for testing - matches workloads.Longevity.
type CycleRunner interface {
	Run(ctx context.Context) (*workloads.LongevityReport, error)
}

// newLongevity assembles the longevity loop from its stages.
// Can be replaced in tests for dependency injection.
var newLongevity = func(runner *scale.Runner, health workloads.HealthWaiter, object *workloads.S3Workload, timeouts *framework.Timeouts, steps *framework.Steps, cfg workloads.LongevityConfig) CycleRunner {
	return workloads.NewLongevity(runner, health, object, timeouts, steps, cfg)
}

// LongevityOptions carries the tunables of a longevity run.
type LongevityOptions struct {
	Duration        time.Duration
	PVCs            int
	Pods            int
	OBCs            int
	Namespace       string
	StorageClass    string
	OBCStorageClass string
}

// LongevityRun cycles provision, attach, verify and teardown on the provider
// cluster until the duration budget elapses.
func LongevityRun(ctx context.Context, configPath string, opts LongevityOptions) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}
	provider := fw.Provider()
	client, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}
	if err := ensureNamespace(ctx, client, opts.Namespace); err != nil {
		return err
	}

	runner := scale.NewRunner(client, opts.Namespace, fw.Timeouts(), fw.Steps())
	health := ceph.NewTools(client, provider.Storage.Namespace)
	object := longevityObjectWorkload(fw, provider)

	if opts.Duration > 0 {
		log.Printf("Longevity run on cluster %q: %d PVCs, %d OBCs per cycle for %s",
			provider.Name, opts.PVCs, opts.OBCs, opts.Duration)
	} else {
		log.Printf("Longevity run on cluster %q: single cycle with %d PVCs, %d OBCs",
			provider.Name, opts.PVCs, opts.OBCs)
	}

	lon := newLongevity(runner, health, object, fw.Timeouts(), fw.Steps(), workloads.LongevityConfig{
		Duration:        opts.Duration,
		PVCsPerCycle:    opts.PVCs,
		PodsPerCycle:    opts.Pods,
		OBCsPerCycle:    opts.OBCs,
		StorageClass:    opts.StorageClass,
		OBCStorageClass: opts.OBCStorageClass,
	})
	report, err := lon.Run(ctx)
	if err != nil {
		return err
	}
	if err := report.Summarize(); err != nil {
		return err
	}
	fmt.Printf("\nLongevity run completed, all cycles passed\n")
	return nil
}

// longevityObjectWorkload builds the per-cycle object workload, or nil when
// the cluster has no usable S3 endpoint. A nil workload skips the stage.
func longevityObjectWorkload(fw *framework.Framework, cluster *framework.Cluster) *workloads.S3Workload {
	if cluster.S3.Endpoint == "" {
		log.Printf("No s3.endpoint on cluster %q, skipping the object stage", cluster.Name)
		return nil
	}
	accessKey := os.Getenv(cluster.S3.AccessKeyEnv)
	secretKey := os.Getenv(cluster.S3.SecretKeyEnv)
	if accessKey == "" || secretKey == "" {
		log.Printf("S3 credentials not set (%s, %s), skipping the object stage",
			cluster.S3.AccessKeyEnv, cluster.S3.SecretKeyEnv)
		return nil
	}
	workload, err := workloads.NewS3Workload(workloads.S3Config{
		Endpoint:         cluster.S3.Endpoint,
		AccessKey:        accessKey,
		SecretKey:        secretKey,
		Region:           cluster.S3.Region,
		InsecureTLS:      true,
		Buckets:          2,
		ObjectsPerBucket: 16,
		ObjectSize:       1 << 20,
		ReadRatio:        0.7,
		Workers:          4,
		Operations:       200,
		BucketPrefix:     "odfkit-longevity-" + fw.RunID(),
	})
	if err != nil {
		log.Printf("Object workload unavailable: %v", err)
		return nil
	}
	return workload
}

package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/workloads"
)

// ObjectWorkload interface for testing - matches workloads.S3Workload.
type ObjectWorkload interface {
	Prepare(ctx context.Context) error
	Run(ctx context.Context) (workloads.Report, error)
	Cleanup(ctx context.Context) error
}

// newS3Workload creates the object workload for a bench run.
// Can be replaced in tests for dependency injection.
var newS3Workload = func(cfg workloads.S3Config) (ObjectWorkload, error) {
	return workloads.NewS3Workload(cfg)
}

// BenchS3Options carries the tunables of a bench s3 run.
type BenchS3Options struct {
	Cluster    string
	Buckets    int
	Objects    int
	ObjectSize int
	ReadRatio  float64
	Workers    int
	Duration   time.Duration
	Operations int
	Keep       bool
}

// BenchS3 drives the object workload against a cluster's S3 endpoint and
// prints the throughput report.
func BenchS3(ctx context.Context, configPath string, opts BenchS3Options) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}
	cluster, err := targetCluster(fw, opts.Cluster, fw.Provider())
	if err != nil {
		return err
	}
	cfg, err := s3WorkloadConfig(fw, cluster, opts)
	if err != nil {
		return err
	}

	workload, err := newS3Workload(cfg)
	if err != nil {
		return fmt.Errorf("failed to build s3 workload: %w", err)
	}

	log.Printf("S3 workload against %s: %d buckets, %d objects each, %d workers",
		cfg.Endpoint, cfg.Buckets, cfg.ObjectsPerBucket, cfg.Workers)

	if err := workload.Prepare(ctx); err != nil {
		return fmt.Errorf("failed to prepare buckets: %w", err)
	}

	report, err := workload.Run(ctx)
	if err != nil {
		if !opts.Keep {
			if cleanupErr := workload.Cleanup(ctx); cleanupErr != nil {
				log.Printf("Bucket cleanup after failed run: %v", cleanupErr)
			}
		}
		return err
	}

	fmt.Printf("\n%s\n", report)

	if opts.Keep {
		fmt.Printf("Buckets with prefix %s kept for inspection\n", cfg.BucketPrefix)
		return nil
	}
	if err := workload.Cleanup(ctx); err != nil {
		return fmt.Errorf("failed to clean up buckets: %w", err)
	}
	return nil
}

// s3WorkloadConfig resolves endpoint and credentials for the target cluster.
// Credentials come from the environment so they never land in config files.
func s3WorkloadConfig(fw *framework.Framework, cluster *framework.Cluster, opts BenchS3Options) (workloads.S3Config, error) {
	if cluster.S3.Endpoint == "" {
		return workloads.S3Config{}, fmt.Errorf("cluster %q has no s3.endpoint configured", cluster.Name)
	}
	accessKey := os.Getenv(cluster.S3.AccessKeyEnv)
	secretKey := os.Getenv(cluster.S3.SecretKeyEnv)
	if accessKey == "" || secretKey == "" {
		return workloads.S3Config{}, fmt.Errorf("s3 credentials missing: set %s and %s",
			cluster.S3.AccessKeyEnv, cluster.S3.SecretKeyEnv)
	}
	return workloads.S3Config{
		Endpoint:         cluster.S3.Endpoint,
		AccessKey:        accessKey,
		SecretKey:        secretKey,
		Region:           cluster.S3.Region,
		InsecureTLS:      true,
		Buckets:          opts.Buckets,
		ObjectsPerBucket: opts.Objects,
		ObjectSize:       opts.ObjectSize,
		ReadRatio:        opts.ReadRatio,
		Workers:          opts.Workers,
		Duration:         opts.Duration,
		Operations:       opts.Operations,
		BucketPrefix:     "odfkit-" + fw.RunID(),
	}, nil
}

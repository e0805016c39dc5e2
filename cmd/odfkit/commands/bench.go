package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Bench returns the parent command for benchmark workloads.
func Bench() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run benchmark workloads against the storage",
	}

	cmd.AddCommand(BenchS3())

	return cmd
}

// BenchS3 returns the command for running the object storage workload.
//
// Flags:
//
//	--config, -c: Path to the run configuration (default "odfkit.yaml")
//	--cluster: Cluster whose S3 endpoint to target (default: the provider)
//	--buckets: Number of buckets (default 4)
//	--objects: Objects seeded per bucket (default 50)
//	--object-size: Object size in bytes (default 1 MiB)
//	--read-ratio: GET fraction of the mixed phase (default 0.7)
//	--workers: Concurrent workers (default 8)
//	--duration: Wall-clock bound for the mixed phase
//	--operations: Operation-count bound when no duration is set
//	--keep: Keep buckets and objects after the run
func BenchS3() *cobra.Command {
	var (
		configPath  string
		clusterName string
		buckets     int
		objects     int
		objectSize  int
		readRatio   float64
		workers     int
		duration    time.Duration
		operations  int
		keep        bool
	)

	cmd := &cobra.Command{
		Use:   "s3",
		Short: "Run a mixed PUT/GET object workload",
		Long: `Run a cosbench-style object workload against an S3 endpoint.

Seeds buckets with objects, drives a mixed PUT/GET load through a
worker pool, reports achieved throughput, and removes the buckets
afterwards unless --keep is set.

The endpoint comes from the cluster's s3 section in the configuration;
credentials are read from the environment variables it names
(AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY by default).

Examples:
  odfkit bench s3
  odfkit bench s3 --workers 16 --duration 5m
  odfkit bench s3 --buckets 8 --objects 200 --read-ratio 0.9`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.BenchS3(cmd.Context(), configPath, handlers.BenchS3Options{
				Cluster:    clusterName,
				Buckets:    buckets,
				Objects:    objects,
				ObjectSize: objectSize,
				ReadRatio:  readRatio,
				Workers:    workers,
				Duration:   duration,
				Operations: operations,
				Keep:       keep,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Cluster whose S3 endpoint to target (default: the provider)")
	cmd.Flags().IntVar(&buckets, "buckets", 4, "Number of buckets")
	cmd.Flags().IntVar(&objects, "objects", 50, "Objects seeded per bucket")
	cmd.Flags().IntVar(&objectSize, "object-size", 1<<20, "Object size in bytes")
	cmd.Flags().Float64Var(&readRatio, "read-ratio", 0.7, "GET fraction of the mixed phase, 0..1")
	cmd.Flags().IntVar(&workers, "workers", 8, "Concurrent workers")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Wall-clock bound for the mixed phase")
	cmd.Flags().IntVar(&operations, "operations", 1000, "Operation-count bound when no duration is set")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep buckets and objects after the run")

	return cmd
}

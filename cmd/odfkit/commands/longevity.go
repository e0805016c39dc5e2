package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Longevity returns the parent command for long-running churn.
func Longevity() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "longevity",
		Short: "Run long-running resource churn against the storage",
	}

	cmd.AddCommand(LongevityRun())

	return cmd
}

// LongevityRun returns the command for running the longevity workload.
//
// Flags:
//
//	--config, -c: Path to the run configuration (default "odfkit.yaml")
//	--duration: Total wall-clock budget (default: exactly one cycle)
//	--pvcs: PVCs created per cycle (default 4)
//	--pods: Load pods created per cycle (default: same as --pvcs)
//	--obcs: Object bucket claims created per cycle (default 2)
//	--namespace: Namespace the churn runs in (default "odfkit-longevity")
//	--storage-class: Storage class for the PVCs
//	--obc-storage-class: Storage class for the bucket claims
func LongevityRun() *cobra.Command {
	var (
		configPath      string
		duration        time.Duration
		pvcs            int
		pods            int
		obcs            int
		namespace       string
		storageClass    string
		obcStorageClass string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cycle resource churn until the duration elapses",
		Long: `Run staged resource churn cycles against the provider.

Each cycle bulk-creates PVCs, load pods, and object bucket claims,
drives object I/O when an S3 endpoint is configured, cleans everything
up, and then waits for ceph to report healthy. Cycles repeat until the
duration elapses; a failed stage is recorded and the cycle moves on, so
one bad cycle does not stop the run. The command fails at the end if
any stage of any cycle failed, listing all of them.

Without --duration exactly one cycle runs.

Examples:
  odfkit longevity run
  odfkit longevity run --duration 24h
  odfkit longevity run --duration 4h --pvcs 8 --obcs 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.LongevityRun(cmd.Context(), configPath, handlers.LongevityOptions{
				Duration:        duration,
				PVCs:            pvcs,
				Pods:            pods,
				OBCs:            obcs,
				Namespace:       namespace,
				StorageClass:    storageClass,
				OBCStorageClass: obcStorageClass,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Total wall-clock budget (0: exactly one cycle)")
	cmd.Flags().IntVar(&pvcs, "pvcs", 4, "PVCs created per cycle")
	cmd.Flags().IntVar(&pods, "pods", 0, "Load pods created per cycle (0: same as --pvcs)")
	cmd.Flags().IntVar(&obcs, "obcs", 2, "Object bucket claims created per cycle")
	cmd.Flags().StringVar(&namespace, "namespace", "odfkit-longevity", "Namespace the churn runs in")
	cmd.Flags().StringVar(&storageClass, "storage-class", "ocs-storagecluster-ceph-rbd", "Storage class for the PVCs")
	cmd.Flags().StringVar(&obcStorageClass, "obc-storage-class", "openshift-storage.noobaa.io", "Storage class for the bucket claims")

	return cmd
}

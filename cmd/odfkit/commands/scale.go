package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Scale returns the parent command for bulk storage object creation.
//
// This command provides subcommands that create storage objects in
// labeled batches and poll them to their target state, plus cleanup of
// whole batches by job id.
func Scale() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Bulk-create storage objects in labeled batches",
	}

	cmd.AddCommand(ScalePVC())
	cmd.AddCommand(ScalePods())
	cmd.AddCommand(ScaleOBC())
	cmd.AddCommand(ScaleCleanup())

	return cmd
}

// ScalePVC returns the command for bulk-creating PVCs.
func ScalePVC() *cobra.Command {
	var (
		configPath   string
		id           string
		namespace    string
		count        int
		storageClass string
		size         string
		accessMode   string
	)

	cmd := &cobra.Command{
		Use:   "pvc",
		Short: "Bulk-create PVCs and wait until all are Bound",
		Long: `Bulk-create PVCs as one labeled batch and wait for Bound.

All claims of a batch share a job id; counting and cleanup go by that
label, never by individual names. The id defaults to the run id from
the configuration.

Examples:
  odfkit scale pvc --count 100
  odfkit scale pvc --count 50 --size 10Gi --id burst-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ScalePVC(cmd.Context(), configPath, id, namespace, count, storageClass, size, accessMode)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&id, "id", "", "Job id labeling the batch (default: the run id)")
	cmd.Flags().StringVar(&namespace, "namespace", "odfkit-scale", "Namespace to create objects in")
	cmd.Flags().IntVar(&count, "count", 20, "Number of PVCs to create")
	cmd.Flags().StringVar(&storageClass, "storage-class", "ocs-storagecluster-ceph-rbd", "Storage class for the claims")
	cmd.Flags().StringVar(&size, "size", "1Gi", "Requested size per claim")
	cmd.Flags().StringVar(&accessMode, "access-mode", "ReadWriteOnce", "Access mode for the claims")

	return cmd
}

// ScalePods returns the command for bulk-creating load pods.
func ScalePods() *cobra.Command {
	var (
		configPath string
		id         string
		namespace  string
		count      int
		pvcJob     string
	)

	cmd := &cobra.Command{
		Use:   "pods",
		Short: "Bulk-create load pods mounting an earlier PVC batch",
		Long: `Bulk-create load pods as one labeled batch and wait for Running.

Each pod mounts one claim of an earlier PVC batch, round-robin, and
writes to it. --pvc-job names that earlier batch.

Examples:
  odfkit scale pods --count 20 --pvc-job burst-1 --id burst-1-pods`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ScalePods(cmd.Context(), configPath, id, namespace, count, pvcJob)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&id, "id", "", "Job id labeling the batch (default: the run id)")
	cmd.Flags().StringVar(&namespace, "namespace", "odfkit-scale", "Namespace to create objects in")
	cmd.Flags().IntVar(&count, "count", 20, "Number of pods to create")
	cmd.Flags().StringVar(&pvcJob, "pvc-job", "", "Job id of the PVC batch to mount (required)")
	_ = cmd.MarkFlagRequired("pvc-job")

	return cmd
}

// ScaleOBC returns the command for bulk-creating object bucket claims.
func ScaleOBC() *cobra.Command {
	var (
		configPath   string
		id           string
		namespace    string
		count        int
		storageClass string
	)

	cmd := &cobra.Command{
		Use:   "obc",
		Short: "Bulk-create object bucket claims and wait until all are Bound",
		Long: `Bulk-create object bucket claims as one labeled batch and wait
for Bound.

Examples:
  odfkit scale obc --count 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ScaleOBC(cmd.Context(), configPath, id, namespace, count, storageClass)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&id, "id", "", "Job id labeling the batch (default: the run id)")
	cmd.Flags().StringVar(&namespace, "namespace", "odfkit-scale", "Namespace to create objects in")
	cmd.Flags().IntVar(&count, "count", 10, "Number of claims to create")
	cmd.Flags().StringVar(&storageClass, "storage-class", "openshift-storage.noobaa.io", "Object bucket storage class")

	return cmd
}

// ScaleCleanup returns the command for deleting a whole batch.
func ScaleCleanup() *cobra.Command {
	var (
		configPath string
		id         string
		namespace  string
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every object of a batch and wait until all are gone",
		Long: `Delete every object labeled with a job id and wait for the
deletes to finalize. Pods go before their claims so the claims can
release.

Examples:
  odfkit scale cleanup --id burst-1
  odfkit scale cleanup`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ScaleCleanup(cmd.Context(), configPath, id, namespace)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringVar(&id, "id", "", "Job id of the batch to delete (default: the run id)")
	cmd.Flags().StringVar(&namespace, "namespace", "odfkit-scale", "Namespace the objects live in")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/odfkit/odfkit/cmd/odfkit/handlers"
)

// Faults returns the parent command for network fault injection.
func Faults() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faults",
		Short: "Inject network faults into storage nodes",
	}

	cmd.AddCommand(FaultsRun())

	return cmd
}

// FaultsRun returns the command for running a fault injection campaign.
//
// Flags:
//
//	--config, -c: Path to the run configuration (default "odfkit.yaml")
//	--fault: Fault profile to inject, repeatable (default: built-in rotation)
//	--iterations: Number of iterations (default: one per fault)
//	--interface: Network interface to impair (default: detect per node)
//	--seed: Seed for target selection (default: random)
func FaultsRun() *cobra.Command {
	var (
		configPath string
		faultSpecs []string
		iterations int
		iface      string
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a network fault campaign against the provider",
		Long: `Run a network fault injection campaign on the provider cluster.

Each iteration impairs the network of a random subset of worker nodes
with a tc netem fault (loss, delay, duplication, or corruption), holds
the fault, removes it, and cools down. Targets rotate so every node is
covered before any repeats. Afterwards the campaign verifies that ceph
returned to health, restarting still-affected nodes once if it did not.

Faults are given as a kind, or several kinds joined with +: loss,
delay, duplicate, corrupt, delay+loss. Without --fault a built-in
rotation covering every kind is used.

Examples:
  odfkit faults run
  odfkit faults run --fault loss --fault delay+loss --iterations 6
  odfkit faults run --interface ens3 --seed 42`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.FaultsRun(cmd.Context(), configPath, faultSpecs, iterations, iface, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "odfkit.yaml", "Path to the run configuration")
	cmd.Flags().StringSliceVar(&faultSpecs, "fault", nil, "Fault profile to inject, e.g. loss or delay+loss (repeatable)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Number of iterations (0: one per fault)")
	cmd.Flags().StringVar(&iface, "interface", "", "Network interface to impair (default: detect per node)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for target selection (0: random)")

	return cmd
}

// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the odfkit CLI.
//
// The root command serves as the entry point and parent for all subcommands.
// It provides basic CLI metadata and organizes the command hierarchy.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "odfkit",
		Short: "Deploy and exercise OpenShift Data Foundation across clusters",
	}

	// Deployment commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Storage())
	cmd.AddCommand(Hosted())

	// Workload commands
	cmd.AddCommand(Faults())
	cmd.AddCommand(Scale())
	cmd.AddCommand(Bench())
	cmd.AddCommand(Longevity())

	// Utility commands
	cmd.AddCommand(Health())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

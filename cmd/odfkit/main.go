// Package main is the entry point for the odfkit CLI.
//
// odfkit drives OpenShift Data Foundation test environments end to
// end: deploying the storage operator and its companion operators on a
// provider cluster, creating hosted clusters that consume the storage
// through the client operator, and exercising the result with scale,
// object, fault and longevity workloads.
//
// Commands: init, deploy, storage, hosted, faults, scale, bench,
// longevity, health.
//
// For detailed usage information, run:
//
//	odfkit --help
package main

import (
	"fmt"
	"os"

	"github.com/odfkit/odfkit/cmd/odfkit/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

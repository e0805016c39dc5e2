package handlers

import (
	"context"
	"fmt"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/framework/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = wizard.FileExists

	// runWizard runs the interactive configuration wizard.
	runWizard = wizard.RunWizard

	// writeConfig writes the config to a file.
	writeConfig = wizard.WriteConfig
)

// Init runs the configuration wizard and writes the result to a file.
func Init(ctx context.Context, outputPath string, advanced, fullOutput bool) error {
	if fileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx, advanced)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := wizard.BuildConfig(result)

	if err := writeConfig(cfg, outputPath, fullOutput); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)

	return nil
}

// printWelcome prints the welcome message.
func printWelcome() {
	fmt.Println()
	fmt.Println("odfkit - OpenShift Data Foundation test runs")
	fmt.Println("============================================")
	fmt.Println()
	fmt.Println("This wizard describes the clusters a run manages, one at a time.")
	fmt.Println("A provider runs the storage cluster, a hub hosts hosted control")
	fmt.Println("planes, and clients consume storage through the client operator.")
	fmt.Println()
}

// printInitSuccess prints the success message with summary and next steps.
func printInitSuccess(outputPath string, cfg *framework.Config) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	// Summary
	fmt.Println("Cluster Summary")
	fmt.Println("---------------")
	for _, cl := range cfg.Clusters {
		extra := ""
		switch {
		case cl.Role == framework.RoleProvider && cl.Storage.Channel != "":
			extra = fmt.Sprintf(", channel %s", cl.Storage.Channel)
		case cl.Role == framework.RoleHub && cl.Hosted.Count > 0:
			extra = fmt.Sprintf(", %d hosted clusters", cl.Hosted.Count)
		}
		fmt.Printf("  %s: %s on %s%s\n", cl.Name, cl.Role, cl.Platform, extra)
	}
	fmt.Println()

	// Next steps
	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Printf("  1. Review %s if needed\n", outputPath)
	fmt.Println()
	fmt.Println("  2. Deploy the storage stack:")
	fmt.Printf("     odfkit deploy odf -c %s\n", outputPath)
	fmt.Println()
	fmt.Println("  3. Check the result:")
	fmt.Printf("     odfkit health -c %s\n", outputPath)
	fmt.Println()
}

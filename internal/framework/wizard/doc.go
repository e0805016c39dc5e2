// Package wizard provides the interactive configuration generator
// behind odfkit init.
//
// This package implements a TUI-based wizard that guides users through
// describing each cluster in a run: role, kubeconfig, storage shape,
// hosted-cluster settings. It uses charmbracelet/huh for form-based
// input collection.
//
// The main entry point is RunWizard, which orchestrates question groups
// and returns a WizardResult. Use BuildConfig to convert results to a
// framework.Config, and WriteConfig to generate the YAML output file.
package wizard

package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odfkit/odfkit/internal/ceph"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

// CephReader interface for testing - matches ceph.Tools.
type CephReader interface {
	Status(ctx context.Context) (*ceph.ClusterStatus, error)
	DF(ctx context.Context) (*ceph.Capacity, error)
}

// newCephReader creates the toolbox-backed ceph reader.
var newCephReader = func(client *ocp.Client, namespace string) CephReader {
	return ceph.NewTools(client, namespace)
}

// CephStatus represents the storage cluster state for JSON output.
type CephStatus struct {
	Cluster  string         `json:"cluster"`
	Health   string         `json:"health"`
	Checks   []string       `json:"checks,omitempty"`
	Mons     int            `json:"mons"`
	PGs      int            `json:"pgs"`
	OSDs     OSDStatus      `json:"osds"`
	Capacity CapacityStatus `json:"capacity"`
}

// OSDStatus represents the OSD population.
type OSDStatus struct {
	Total int `json:"total"`
	Up    int `json:"up"`
	In    int `json:"in"`
}

// CapacityStatus represents raw capacity usage.
type CapacityStatus struct {
	TotalBytes int64   `json:"totalBytes"`
	UsedBytes  int64   `json:"usedBytes"`
	AvailBytes int64   `json:"availBytes"`
	UsedFrac   float64 `json:"usedFraction"`
}

// StorageStatus reads ceph health, capacity, and OSD population from
// the toolbox on the provider cluster and prints them.
func StorageStatus(ctx context.Context, configPath string, jsonOutput bool) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}

	provider := fw.Provider()
	client, err := newClusterClient(provider.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster %q: %w", provider.Name, err)
	}

	status, err := readCephStatus(ctx, newCephReader(client, provider.Storage.Namespace), provider)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printStorageJSON(status)
	}
	printStorageFormatted(status)
	return nil
}

// readCephStatus folds the toolbox queries into one status value.
func readCephStatus(ctx context.Context, tools CephReader, provider *framework.Cluster) (*CephStatus, error) {
	cs, err := tools.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ceph status: %w", err)
	}
	df, err := tools.DF(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ceph capacity: %w", err)
	}

	return &CephStatus{
		Cluster: provider.Name,
		Health:  cs.Health.Status,
		Checks:  cs.Health.Checks,
		Mons:    cs.Mons,
		PGs:     cs.PGs,
		OSDs:    OSDStatus{Total: cs.OSDs.Total, Up: cs.OSDs.Up, In: cs.OSDs.In},
		Capacity: CapacityStatus{
			TotalBytes: df.TotalBytes,
			UsedBytes:  df.UsedBytes,
			AvailBytes: df.AvailBytes,
			UsedFrac:   df.UsedFraction(),
		},
	}, nil
}

// printStorageJSON outputs the status as JSON.
func printStorageJSON(status *CephStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage status: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printStorageFormatted outputs the status in a formatted display.
func printStorageFormatted(status *CephStatus) {
	fmt.Printf("Storage cluster on %s\n", status.Cluster)
	fmt.Println("─────────────────────────────────────")
	fmt.Println()

	healthy := status.Health == "HEALTH_OK"
	printStatusLine("Health "+status.Health, healthy, "")
	for _, check := range status.Checks {
		fmt.Printf("      %s\n", check)
	}

	osdsOK := status.OSDs.Total > 0 && status.OSDs.Up == status.OSDs.Total && status.OSDs.In == status.OSDs.Total
	printStatusLine("OSDs", osdsOK, fmt.Sprintf("(%d up, %d in of %d)", status.OSDs.Up, status.OSDs.In, status.OSDs.Total))
	printStatusLine("Mons", status.Mons > 0, fmt.Sprintf("(%d)", status.Mons))

	fmt.Println()
	fmt.Printf("Capacity: %s used of %s (%.1f%%), %s available\n",
		formatBytes(status.Capacity.UsedBytes),
		formatBytes(status.Capacity.TotalBytes),
		status.Capacity.UsedFrac*100,
		formatBytes(status.Capacity.AvailBytes))
	fmt.Printf("Placement groups: %d\n", status.PGs)
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// printStatusLine prints a single status line with indicator.
func printStatusLine(name string, ready bool, extra string) {
	indicator := "○"
	if ready {
		indicator = "✓"
	}
	if extra != "" {
		fmt.Printf("  %s %s %s\n", indicator, name, extra)
		return
	}
	fmt.Printf("  %s %s\n", indicator, name)
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	configv1 "github.com/openshift/api/config/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/odfkit/odfkit/internal/deployment"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/monitoring"
	"github.com/odfkit/odfkit/internal/ocp"
)

// ClusterHealth represents one cluster's health for JSON output.
type ClusterHealth struct {
	Cluster           string       `json:"cluster"`
	Role              string       `json:"role"`
	Reachable         bool         `json:"reachable"`
	Error             string       `json:"error,omitempty"`
	Nodes             NodeHealth   `json:"nodes"`
	DegradedOperators []string     `json:"degradedOperators,omitempty"`
	Ceph              *CephSummary `json:"ceph,omitempty"`
	ClientOperator    *bool        `json:"clientOperator,omitempty"`
}

// NodeHealth counts Ready nodes.
type NodeHealth struct {
	Total int `json:"total"`
	Ready int `json:"ready"`
}

// CephSummary is the ceph portion of a provider cluster's report.
type CephSummary struct {
	Status string   `json:"status"`
	Checks []string `json:"checks,omitempty"`
	Source string   `json:"source,omitempty"`
}

// ClientProbe interface for testing - matches deployment.ClientOperator.
type ClientProbe interface {
	Installed(ctx context.Context) (bool, error)
}

// newClientProbe checks the storage client operator on a consumer cluster.
// Can be replaced in tests for dependency injection.
var newClientProbe = func(client *ocp.Client, timeouts *framework.Timeouts) ClientProbe {
	return deployment.NewClientOperator(client, timeouts, "", "")
}

// MetricsReader interface for testing - matches monitoring.Client.
type MetricsReader interface {
	CephHealthMetric(ctx context.Context) (float64, error)
}

// newMetricsReader builds the thanos-querier backed metrics client.
// Can be replaced in tests for dependency injection.
var newMetricsReader = func(ctx context.Context, client *ocp.Client) (MetricsReader, error) {
	return monitoring.NewClient(ctx, client)
}

// Health handles the health command.
//
// It reports per-cluster node readiness, degraded cluster operators and the
// storage surface matching the cluster's role: ceph health on providers, the
// client operator on consumers.
func Health(ctx context.Context, configPath, clusterName string, watch, jsonOutput bool) error {
	fw, err := loadFramework(configPath)
	if err != nil {
		return err
	}
	clusters, err := healthTargets(fw, clusterName)
	if err != nil {
		return err
	}

	if watch {
		return watchHealth(ctx, fw, clusters, jsonOutput)
	}
	return showHealth(ctx, fw, clusters, jsonOutput)
}

// healthTargets resolves the clusters to probe: one by name, or all.
func healthTargets(fw *framework.Framework, clusterName string) ([]*framework.Cluster, error) {
	if clusterName == "" {
		return fw.Config().Clusters, nil
	}
	cluster := fw.Config().ByName(clusterName)
	if cluster == nil {
		return nil, fmt.Errorf("unknown cluster %q", clusterName)
	}
	return []*framework.Cluster{cluster}, nil
}

// showHealth displays the current health of every target cluster once.
func showHealth(ctx context.Context, fw *framework.Framework, clusters []*framework.Cluster, jsonOutput bool) error {
	statuses := make([]ClusterHealth, 0, len(clusters))
	for _, cluster := range clusters {
		statuses = append(statuses, collectHealth(ctx, fw, cluster))
	}

	if jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal health status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	for i := range statuses {
		if i > 0 {
			fmt.Println()
		}
		printClusterHealth(&statuses[i])
	}
	return nil
}

// watchHealth redraws the health display every few seconds.
func watchHealth(ctx context.Context, fw *framework.Framework, clusters []*framework.Cluster, jsonOutput bool) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	// Show immediately first
	if err := showHealth(ctx, fw, clusters, jsonOutput); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Clear screen for non-JSON output
			if !jsonOutput {
				fmt.Print("\033[H\033[2J")
			}
			if err := showHealth(ctx, fw, clusters, jsonOutput); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// collectHealth gathers one cluster's health. Probe failures degrade the
// report instead of aborting it so one broken cluster does not hide the rest.
func collectHealth(ctx context.Context, fw *framework.Framework, cluster *framework.Cluster) ClusterHealth {
	health := ClusterHealth{Cluster: cluster.Name, Role: cluster.Role}

	client, err := newClusterClient(cluster.Kubeconfig)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	nodes, err := client.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.Reachable = true
	health.Nodes.Total = len(nodes.Items)
	for i := range nodes.Items {
		if ocp.IsNodeReady(&nodes.Items[i]) {
			health.Nodes.Ready++
		}
	}

	var operators configv1.ClusterOperatorList
	if err := client.Runtime.List(ctx, &operators); err == nil {
		for i := range operators.Items {
			if operatorDegraded(&operators.Items[i]) {
				health.DegradedOperators = append(health.DegradedOperators, operators.Items[i].Name)
			}
		}
	}

	switch cluster.Role {
	case framework.RoleProvider:
		if status, err := newCephReader(client, cluster.Storage.Namespace).Status(ctx); err == nil {
			health.Ceph = &CephSummary{Status: status.Health.Status, Checks: status.Health.Checks}
		} else if summary, merr := cephHealthFromMetrics(ctx, client); merr == nil {
			health.Ceph = summary
		}
	case framework.RoleClient:
		if installed, err := newClientProbe(client, fw.Timeouts()).Installed(ctx); err == nil {
			health.ClientOperator = &installed
		}
	}
	return health
}

// cephHealthFromMetrics reads ceph_health_status from the cluster
// monitoring stack. Covers providers whose toolbox pod is missing.
func cephHealthFromMetrics(ctx context.Context, client *ocp.Client) (*CephSummary, error) {
	reader, err := newMetricsReader(ctx, client)
	if err != nil {
		return nil, err
	}
	value, err := reader.CephHealthMetric(ctx)
	if err != nil {
		return nil, err
	}
	status := "HEALTH_ERR"
	switch value {
	case 0:
		status = "HEALTH_OK"
	case 1:
		status = "HEALTH_WARN"
	}
	return &CephSummary{Status: status, Source: "metrics"}, nil
}

// operatorDegraded reports whether a cluster operator is unavailable or
// flagged Degraded.
func operatorDegraded(co *configv1.ClusterOperator) bool {
	for _, cond := range co.Status.Conditions {
		switch cond.Type {
		case configv1.OperatorAvailable:
			if cond.Status != configv1.ConditionTrue {
				return true
			}
		case configv1.OperatorDegraded:
			if cond.Status == configv1.ConditionTrue {
				return true
			}
		}
	}
	return false
}

// printClusterHealth renders one cluster's section of the display.
func printClusterHealth(health *ClusterHealth) {
	fmt.Printf("Cluster %s (%s)\n", health.Cluster, health.Role)
	fmt.Println("─────────────────────────────────────")

	if !health.Reachable {
		printStatusLine("API unreachable", false, "")
		if health.Error != "" {
			fmt.Printf("    %s\n", health.Error)
		}
		return
	}

	nodesOK := health.Nodes.Total > 0 && health.Nodes.Ready == health.Nodes.Total
	printStatusLine("Nodes Ready", nodesOK, fmt.Sprintf("(%d/%d)", health.Nodes.Ready, health.Nodes.Total))

	printStatusLine("Cluster operators", len(health.DegradedOperators) == 0, "")
	for _, name := range health.DegradedOperators {
		fmt.Printf("    degraded: %s\n", name)
	}

	if health.Ceph != nil {
		extra := ""
		if health.Ceph.Source != "" {
			extra = "(from " + health.Ceph.Source + ")"
		}
		printStatusLine("Ceph "+health.Ceph.Status, health.Ceph.Status == "HEALTH_OK", extra)
		for _, check := range health.Ceph.Checks {
			fmt.Printf("    %s\n", check)
		}
	}
	if health.ClientOperator != nil {
		printStatusLine("Storage client operator", *health.ClientOperator, "")
	}
}

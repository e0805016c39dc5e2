package wizard

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/odfkit/odfkit/internal/framework"
)

// clusterNameRegex validates cluster name format: 1-32 lowercase alphanumeric with hyphens.
var clusterNameRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,30}[a-z0-9])?$`)

// runClusterIdentityGroup prompts for cluster name, role, and platform.
func runClusterIdentityGroup(ctx context.Context, answers *ClusterAnswers) error {
	answers.Role = framework.RoleProvider // default
	answers.Platform = PlatformBareMetal  // default

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster Name").
				Description("1-32 lowercase alphanumeric characters or hyphens").
				Placeholder("provider-1").
				Value(&answers.Name).
				Validate(validateClusterName),
			huh.NewSelect[string]().
				Title("Role").
				Description("What this cluster does in the run").
				Options(RolesToOptions()...).
				Value(&answers.Role),
			huh.NewSelect[string]().
				Title("Platform").
				Description("Infrastructure the cluster runs on").
				Options(PlatformsToOptions()...).
				Value(&answers.Platform),
		).Title("Cluster Identity"),
	).RunWithContext(ctx)
}

// runKubeconfigGroup prompts for the kubeconfig path.
func runKubeconfigGroup(ctx context.Context, answers *ClusterAnswers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Kubeconfig Path").
				Description("Admin kubeconfig for this cluster").
				Placeholder("/home/user/clusters/provider-1/kubeconfig").
				Value(&answers.Kubeconfig).
				Validate(validateKubeconfig),
		).Title("Cluster Access"),
	).RunWithContext(ctx)
}

// runStorageGroup prompts for the storage cluster shape (provider role).
func runStorageGroup(ctx context.Context, answers *ClusterAnswers) error {
	answers.Channel = Channels[0].Value
	answers.DeviceSets = 1
	answers.DeviceSetSize = "512Gi"

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Subscription Channel").
				Description("Operator channel for the storage subscription").
				Options(ChannelsToOptions()...).
				Value(&answers.Channel),
			huh.NewSelect[int]().
				Title("Device Sets").
				Description("Number of storage device sets").
				Options(DeviceSetCountOptions...).
				Value(&answers.DeviceSets),
			huh.NewSelect[string]().
				Title("Device Set Size").
				Description("Capacity per device set").
				Options(DeviceSetSizeOptions...).
				Value(&answers.DeviceSetSize),
			huh.NewInput().
				Title("Catalog Image (Optional)").
				Description("Custom operator catalog image. Leave empty for the default catalog.").
				Placeholder("quay.io/rhceph-dev/ocs-registry:latest-4.18").
				Value(&answers.CatalogImage),
			huh.NewInput().
				Title("Backing Storage Class (Optional)").
				Description("Storage class backing the device sets. Leave empty for the platform default.").
				Placeholder("localblock").
				Value(&answers.StorageClass),
		).Title("Storage Cluster"),
	).RunWithContext(ctx)
}

// runMetalLBGroup prompts for the load balancer address pool
// (bare-metal platform).
func runMetalLBGroup(ctx context.Context, answers *ClusterAnswers) error {
	var poolInput string

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Load Balancer Addresses (Optional)").
				Description("Comma-separated ranges or CIDRs for the MetalLB pool. Leave empty to skip MetalLB.").
				Placeholder("10.0.40.10-10.0.40.30").
				Value(&poolInput).
				Validate(validateAddressPool),
		).Title("Load Balancer"),
	).RunWithContext(ctx)

	if err != nil {
		return err
	}

	answers.MetalLBAddresses = parseAddressPool(poolInput)
	return nil
}

// runHostedGroup prompts for hosted cluster settings (hub role).
func runHostedGroup(ctx context.Context, answers *ClusterAnswers) error {
	answers.HostedCount = 1
	answers.HostedPlatform = HostedKubeVirt
	answers.NodePoolReplicas = 2

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Hosted Cluster Count").
				Description("Number of hosted clusters to create from this hub").
				Options(HostedCountOptions...).
				Value(&answers.HostedCount),
			huh.NewSelect[string]().
				Title("Hosted Platform").
				Description("Where hosted cluster workers run").
				Options(HostedPlatformOptions...).
				Value(&answers.HostedPlatform),
			huh.NewSelect[int]().
				Title("Node Pool Replicas").
				Description("Workers per hosted cluster").
				Options(NodePoolReplicaOptions...).
				Value(&answers.NodePoolReplicas),
			huh.NewInput().
				Title("Release Image (Optional)").
				Description("OCP release image for hosted clusters. Leave empty for the hub's release.").
				Placeholder("quay.io/openshift-release-dev/ocp-release:4.18.0-x86_64").
				Value(&answers.ReleaseImage),
			huh.NewInput().
				Title("Pull Secret Path (Optional)").
				Description("Pull secret file for hosted cluster nodes").
				Placeholder("/home/user/pull-secret.json").
				Value(&answers.PullSecretPath),
		).Title("Hosted Clusters"),
	).RunWithContext(ctx)
}

// runObjectStorageGroup prompts for the S3 endpoint (advanced mode).
func runObjectStorageGroup(ctx context.Context, answers *ClusterAnswers) error {
	answers.S3Region = "us-east-1"

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("S3 Endpoint (Optional)").
				Description("Object storage endpoint for workloads. Leave empty to use the in-cluster RGW route.").
				Placeholder("https://s3-openshift-storage.apps.provider-1.example.com").
				Value(&answers.S3Endpoint).
				Validate(validateEndpoint),
			huh.NewInput().
				Title("S3 Region").
				Description("Region name sent with requests").
				Value(&answers.S3Region),
		).Title("Object Storage"),
	).RunWithContext(ctx)
}

// runAddClusterGroup asks whether to configure another cluster.
func runAddClusterGroup(ctx context.Context, addMore *bool) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Add Another Cluster?").
				Description("Runs can manage several clusters (provider, hub, clients)").
				Value(addMore),
		).Title("Clusters"),
	).RunWithContext(ctx)
}

// validateClusterName validates the cluster name format.
func validateClusterName(s string) error {
	if s == "" {
		return errClusterNameRequired
	}
	if !clusterNameRegex.MatchString(s) {
		return errClusterNameInvalid
	}
	return nil
}

// validateKubeconfig requires a non-empty kubeconfig path.
func validateKubeconfig(s string) error {
	if strings.TrimSpace(s) == "" {
		return errKubeconfigRequired
	}
	return nil
}

// validateAddressPool accepts a comma-separated list of IP ranges
// (x.x.x.x-y.y.y.y) or CIDRs. Empty input is allowed.
func validateAddressPool(s string) error {
	for _, entry := range parseAddressPool(s) {
		if !validPoolEntry(entry) {
			return errAddressPoolInvalid
		}
	}
	return nil
}

func validPoolEntry(entry string) bool {
	if first, second, found := strings.Cut(entry, "-"); found {
		return net.ParseIP(strings.TrimSpace(first)) != nil && net.ParseIP(strings.TrimSpace(second)) != nil
	}
	_, _, err := net.ParseCIDR(entry)
	return err == nil
}

// validateEndpoint accepts an empty string or an http(s) URL.
func validateEndpoint(s string) error {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errEndpointInvalid
	}
	return nil
}

// parseAddressPool parses a comma-separated list of pool entries.
func parseAddressPool(input string) []string {
	parts := strings.Split(input, ",")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return entries
}

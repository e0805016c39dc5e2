package wizard

import (
	"github.com/charmbracelet/huh"

	"github.com/odfkit/odfkit/internal/framework"
)

// Cluster platforms offered by the wizard.
const (
	PlatformBareMetal = "baremetal"
	PlatformVSphere   = "vsphere"
	PlatformAWS       = "aws"
)

// Hosted-cluster platforms.
const (
	HostedKubeVirt = "kubevirt"
	HostedAgent    = "agent"
)

// RoleOption describes a cluster role.
type RoleOption struct {
	Value       string
	Label       string
	Description string
}

// PlatformOption describes an infrastructure platform.
type PlatformOption struct {
	Value       string
	Label       string
	Description string
}

// ChannelOption describes an operator subscription channel.
type ChannelOption struct {
	Value       string
	Label       string
	Description string
}

// Roles contains the cluster roles a run can assign.
var Roles = []RoleOption{
	{Value: framework.RoleProvider, Label: "provider", Description: "Runs the storage cluster"},
	{Value: framework.RoleHub, Label: "hub", Description: "Hosts hosted-cluster control planes"},
	{Value: framework.RoleClient, Label: "client", Description: "Consumes storage through the client operator"},
}

// Platforms contains the supported infrastructure platforms.
var Platforms = []PlatformOption{
	{Value: PlatformBareMetal, Label: "baremetal", Description: "Bare-metal hosts with local disks"},
	{Value: PlatformVSphere, Label: "vsphere", Description: "VMware vSphere virtual machines"},
	{Value: PlatformAWS, Label: "aws", Description: "Amazon Web Services instances"},
}

// Channels contains the operator subscription channels offered by the
// wizard.
var Channels = []ChannelOption{
	{Value: "stable-4.18", Label: "stable-4.18", Description: "Latest stable"},
	{Value: "stable-4.17", Label: "stable-4.17", Description: "Previous stable"},
}

// DeviceSetCountOptions contains valid storage device set counts.
var DeviceSetCountOptions = []huh.Option[int]{
	huh.NewOption("1 (Minimum)", 1),
	huh.NewOption("2", 2),
	huh.NewOption("3 (Large clusters)", 3),
}

// DeviceSetSizeOptions contains common device set capacities.
var DeviceSetSizeOptions = []huh.Option[string]{
	huh.NewOption("512Gi (Default)", "512Gi"),
	huh.NewOption("1Ti", "1Ti"),
	huh.NewOption("2Ti", "2Ti"),
	huh.NewOption("4Ti", "4Ti"),
}

// HostedCountOptions contains common hosted cluster counts.
var HostedCountOptions = []huh.Option[int]{
	huh.NewOption("1", 1),
	huh.NewOption("2", 2),
	huh.NewOption("3", 3),
	huh.NewOption("5", 5),
	huh.NewOption("10", 10),
}

// HostedPlatformOptions contains the supported hosted-cluster platforms.
var HostedPlatformOptions = []huh.Option[string]{
	huh.NewOption("KubeVirt - Nested VMs via OpenShift Virtualization", HostedKubeVirt),
	huh.NewOption("Agent - Bare-metal hosts via central infrastructure management", HostedAgent),
}

// NodePoolReplicaOptions contains valid node pool sizes for hosted
// clusters.
var NodePoolReplicaOptions = []huh.Option[int]{
	huh.NewOption("2 (Default)", 2),
	huh.NewOption("3", 3),
	huh.NewOption("5", 5),
}

// RolesToOptions converts RoleOption slice to huh.Option slice.
func RolesToOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(Roles))
	for i, role := range Roles {
		opts[i] = huh.NewOption(role.Label+" - "+role.Description, role.Value)
	}
	return opts
}

// PlatformsToOptions converts PlatformOption slice to huh.Option slice.
func PlatformsToOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(Platforms))
	for i, platform := range Platforms {
		opts[i] = huh.NewOption(platform.Label+" - "+platform.Description, platform.Value)
	}
	return opts
}

// ChannelsToOptions converts ChannelOption slice to huh.Option slice.
func ChannelsToOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(Channels))
	for i, channel := range Channels {
		opts[i] = huh.NewOption(channel.Label+" - "+channel.Description, channel.Value)
	}
	return opts
}

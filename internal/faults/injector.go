package faults

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/util/retry"
)

// NodeConsole runs host-level commands on nodes. *ocp.OC satisfies it.
type NodeConsole interface {
	DebugNode(ctx context.Context, node string, command ...string) (string, error)
	RestartNode(ctx context.Context, node string) error
}

// HealthCheck waits for the storage backend to return to health after
// an impairment. *ceph.Tools satisfies it.
type HealthCheck interface {
	WaitForHealthOK(ctx context.Context, interval, timeout time.Duration) error
}

// Injector runs the fault campaign: per iteration it impairs a random
// uncovered node subset, holds, cleans up, and cools down; afterwards
// it verifies the storage backend recovered.
type Injector struct {
	client   *ocp.Client
	console  NodeConsole
	health   HealthCheck
	timeouts *framework.Timeouts
	steps    *framework.Steps

	// Faults rotate across iterations. Defaults to DefaultFaults.
	Faults []Fault
	// Iterations to run. Defaults to one per configured fault.
	Iterations int
	// Interface receiving the netem qdisc. Empty means detect the
	// default-route device per node.
	Interface string
	// Seed makes target selection reproducible when non-zero.
	Seed int64

	ifaces   map[string]string
	affected map[string]bool
}

// NewInjector wires an injector against one cluster.
func NewInjector(client *ocp.Client, console NodeConsole, health HealthCheck, timeouts *framework.Timeouts, steps *framework.Steps) *Injector {
	return &Injector{
		client:   client,
		console:  console,
		health:   health,
		timeouts: timeouts,
		steps:    steps,
		ifaces:   make(map[string]string),
		affected: make(map[string]bool),
	}
}

type appliedFault struct {
	node  string
	iface string
}

// Run executes the campaign and the recovery verification.
func (in *Injector) Run(ctx context.Context) error {
	faults := in.Faults
	if len(faults) == 0 {
		faults = DefaultFaults()
	}
	iterations := in.Iterations
	if iterations == 0 {
		iterations = len(faults)
	}
	seed := in.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	nodes, err := in.client.ListWorkerNodes(ctx)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no worker nodes to inject faults on")
	}

	in.steps.Step("Starting fault injection: %d iterations over %d nodes (seed %d)", iterations, len(nodes), seed)
	picker := newTargetPicker(nodes, seed)

	for i := 0; i < iterations; i++ {
		fault := faults[i%len(faults)]
		targets := picker.pick()
		if err := in.runIteration(ctx, i+1, fault, targets); err != nil {
			return err
		}
		if i+1 < iterations {
			in.steps.Step("Cooling down for %s", in.timeouts.FaultPause)
			if err := sleep(ctx, in.timeouts.FaultPause); err != nil {
				return err
			}
		}
	}

	return in.verifyRecovery(ctx)
}

func (in *Injector) runIteration(ctx context.Context, iteration int, fault Fault, targets []string) error {
	args, err := fault.netemArgs()
	if err != nil {
		return err
	}
	in.steps.Step("Iteration %d: applying %s to %s", iteration, fault.Name(), strings.Join(targets, ", "))

	applied := make([]appliedFault, 0, len(targets))
	for _, node := range targets {
		iface, err := in.interfaceFor(ctx, node)
		if err != nil {
			in.removeBestEffort(ctx, applied)
			return err
		}
		command := append([]string{"tc", "qdisc", "add", "dev", iface, "root", "netem"}, args...)
		if _, err := in.console.DebugNode(ctx, node, command...); err != nil {
			in.removeBestEffort(ctx, applied)
			return fmt.Errorf("failed to apply %s on node %s: %w", fault.Name(), node, err)
		}
		log.Printf("Applied netem %s on %s dev %s", fault.Name(), node, iface)
		in.affected[node] = true
		applied = append(applied, appliedFault{node: node, iface: iface})
	}

	in.steps.Step("Holding %s for %s", fault.Name(), in.timeouts.FaultHold)
	if err := sleep(ctx, in.timeouts.FaultHold); err != nil {
		in.removeBestEffort(ctx, applied)
		return err
	}

	in.steps.Step("Removing %s from %s", fault.Name(), strings.Join(targets, ", "))
	for _, a := range applied {
		if err := in.removeAndVerify(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// interfaceFor resolves the device to impair on a node: the configured
// override, or the node's default-route device, detected once.
func (in *Injector) interfaceFor(ctx context.Context, node string) (string, error) {
	if in.Interface != "" {
		return in.Interface, nil
	}
	if iface, ok := in.ifaces[node]; ok {
		return iface, nil
	}

	out, err := in.console.DebugNode(ctx, node, "ip", "route", "show", "default")
	if err != nil {
		return "", fmt.Errorf("failed to detect default interface on %s: %w", node, err)
	}
	iface := parseDefaultDevice(out)
	if iface == "" {
		return "", fmt.Errorf("no default route device on node %s in %q", node, strings.TrimSpace(out))
	}
	in.ifaces[node] = iface
	return iface, nil
}

// parseDefaultDevice extracts the device from `ip route show default`
// output, e.g. "default via 10.0.0.1 dev br-ex proto dhcp" -> "br-ex".
func parseDefaultDevice(out string) string {
	line := out
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		line = out[:i]
	}
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "dev" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// removeAndVerify deletes the netem qdisc and confirms it is gone. The
// exec path to the node crosses the still-impaired interface, so each
// attempt is retried; a node that never comes back clean aborts the
// campaign.
func (in *Injector) removeAndVerify(ctx context.Context, a appliedFault) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		// del fails once the qdisc is already gone, so only the verify
		// below decides whether this attempt succeeded.
		_, delErr := in.console.DebugNode(ctx, a.node, "tc", "qdisc", "del", "dev", a.iface, "root")

		out, err := in.console.DebugNode(ctx, a.node, "tc", "qdisc", "show", "dev", a.iface)
		if err != nil {
			return fmt.Errorf("failed to verify qdisc removal on node %s: %w", a.node, err)
		}
		if strings.Contains(out, "netem") {
			if delErr != nil {
				return fmt.Errorf("failed to remove netem qdisc from node %s dev %s: %w", a.node, a.iface, delErr)
			}
			return fmt.Errorf("node %s still carries a netem qdisc on %s: %s", a.node, a.iface, strings.TrimSpace(out))
		}
		log.Printf("Removed netem from %s dev %s", a.node, a.iface)
		return nil
	},
		retry.WithName(fmt.Sprintf("remove netem from %s", a.node)),
		retry.WithMaxRetries(in.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(in.timeouts.RetryInitialDelay),
	)
}

// removeBestEffort cleans up after a partially applied iteration. The
// original error is what the caller reports; cleanup failures are only
// logged.
func (in *Injector) removeBestEffort(ctx context.Context, applied []appliedFault) {
	for _, a := range applied {
		if _, err := in.console.DebugNode(ctx, a.node, "tc", "qdisc", "del", "dev", a.iface, "root"); err != nil {
			log.Printf("Cleanup of netem on %s dev %s failed: %v", a.node, a.iface, err)
		}
	}
}

// verifyRecovery waits for the storage backend to settle. If it does
// not, the affected nodes are restarted once and the check repeats;
// a backend that stays unhealthy fails the campaign.
func (in *Injector) verifyRecovery(ctx context.Context) error {
	in.steps.Step("Verifying storage health after fault injection")
	err := in.health.WaitForHealthOK(ctx, in.timeouts.PollInterval, in.timeouts.CephHealth)
	if err == nil {
		return nil
	}
	log.Printf("Storage not healthy after faults (%v), restarting affected nodes", err)

	for _, node := range in.affectedNodes() {
		in.steps.Step("Restarting node %s to recover", node)
		if err := in.console.RestartNode(ctx, node); err != nil {
			return err
		}
		if err := in.client.WaitForNodeNotReady(ctx, node, in.timeouts.NodesReady); err != nil {
			if !odferrors.IsTimeoutExpired(err) {
				return err
			}
			log.Printf("Node %s never observed NotReady, assuming a fast reboot", node)
		}
		if err := in.client.WaitForNodeReady(ctx, node, in.timeouts.NodesReady); err != nil {
			return err
		}
	}

	in.steps.Step("Re-checking storage health after node restarts")
	err = in.health.WaitForHealthOK(ctx, in.timeouts.PollInterval, in.timeouts.CephHealth)
	if err == nil {
		return nil
	}
	var te *odferrors.TimeoutExpired
	if errors.As(err, &te) {
		return &odferrors.ResourceWrongStatus{
			Resource: "ceph cluster",
			Expected: "HEALTH_OK",
			Actual:   te.Reason,
		}
	}
	return err
}

func (in *Injector) affectedNodes() []string {
	nodes := make([]string, 0, len(in.affected))
	for node := range in.affected {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

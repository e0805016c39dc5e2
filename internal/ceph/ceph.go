// Package ceph inspects the backing ceph cluster through the rook
// toolbox pod. All queries shell into the toolbox and parse the ceph
// CLI's JSON output, so nothing here depends on rook's Go types.
package ceph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	odferrors "github.com/odfkit/odfkit/internal/errors"
	"github.com/odfkit/odfkit/internal/ocp"
)

const toolboxLabel = "app=rook-ceph-tools"

// Health statuses as ceph reports them.
const (
	HealthOKStatus   = "HEALTH_OK"
	HealthWarnStatus = "HEALTH_WARN"
)

type execFunc func(ctx context.Context, namespace, pod, container string, command []string) (string, string, error)

// Tools runs ceph CLI commands in the rook toolbox pod of a provider
// cluster.
type Tools struct {
	client    *ocp.Client
	namespace string
	exec      execFunc

	// AllowWarn treats HEALTH_WARN as acceptable. Long-running clusters
	// accumulate benign warnings that would otherwise fail every check.
	AllowWarn bool
}

// NewTools returns a runner bound to the toolbox in the given
// namespace.
func NewTools(client *ocp.Client, namespace string) *Tools {
	return &Tools{client: client, namespace: namespace, exec: client.ExecInPod}
}

// toolboxPod finds a ready toolbox pod to exec into.
func (t *Tools) toolboxPod(ctx context.Context) (string, error) {
	pods, err := t.client.Clientset.CoreV1().Pods(t.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: toolboxLabel,
	})
	if err != nil {
		return "", fmt.Errorf("failed to list toolbox pods: %w", err)
	}
	for i := range pods.Items {
		if ocp.IsPodReady(&pods.Items[i]) {
			return pods.Items[i].Name, nil
		}
	}
	return "", fmt.Errorf("no ready rook-ceph-tools pod in %s", t.namespace)
}

// Run executes a command in the toolbox and returns its stdout.
func (t *Tools) Run(ctx context.Context, command ...string) (string, error) {
	pod, err := t.toolboxPod(ctx)
	if err != nil {
		return "", err
	}
	stdout, stderr, err := t.exec(ctx, t.namespace, pod, "", command)
	if err != nil {
		return "", fmt.Errorf("ceph command %q failed: %w (stderr: %s)", strings.Join(command, " "), err, strings.TrimSpace(stderr))
	}
	return stdout, nil
}

// Health is the parsed health section of ceph status.
type Health struct {
	Status string
	Checks []string
}

func (h *Health) String() string {
	if len(h.Checks) == 0 {
		return h.Status
	}
	return h.Status + " (" + strings.Join(h.Checks, "; ") + ")"
}

// QueryHealth reads the cluster health and active health checks.
func (t *Tools) QueryHealth(ctx context.Context) (*Health, error) {
	out, err := t.Run(ctx, "ceph", "status", "--format", "json")
	if err != nil {
		return nil, err
	}
	status := gjson.Get(out, "health.status").String()
	if status == "" {
		return nil, fmt.Errorf("ceph status output carries no health.status: %.200s", out)
	}

	health := &Health{Status: status}
	gjson.Get(out, "health.checks").ForEach(func(key, value gjson.Result) bool {
		msg := value.Get("summary.message").String()
		health.Checks = append(health.Checks, key.String()+": "+msg)
		return true
	})
	return health, nil
}

func (t *Tools) acceptable(status string) bool {
	if status == HealthOKStatus {
		return true
	}
	return t.AllowWarn && status == HealthWarnStatus
}

// HealthOK returns nil when ceph reports an acceptable health status
// and a wrong-status error carrying the active checks otherwise.
func (t *Tools) HealthOK(ctx context.Context) error {
	health, err := t.QueryHealth(ctx)
	if err != nil {
		return err
	}
	if !t.acceptable(health.Status) {
		return &odferrors.ResourceWrongStatus{
			Resource: "ceph cluster",
			Expected: HealthOKStatus,
			Actual:   health.String(),
		}
	}
	return nil
}

// WaitForHealthOK polls until ceph reports an acceptable health status,
// riding out the recovery that follows faults or node restarts.
func (t *Tools) WaitForHealthOK(ctx context.Context, interval, timeout time.Duration) error {
	return ocp.PollUntil(ctx, "ceph health OK", interval, timeout, func(ctx context.Context) (bool, string, error) {
		health, err := t.QueryHealth(ctx)
		if err != nil {
			return false, fmt.Sprintf("health query failed: %v", err), nil
		}
		if !t.acceptable(health.Status) {
			return false, health.String(), nil
		}
		return true, "", nil
	})
}

// ClusterStatus is the one-call summary of ceph status.
type ClusterStatus struct {
	Health Health
	Mons   int
	OSDs   OSDStat
	PGs    int
}

// Status reads health, mon count, osd population and pg count from a
// single ceph status call.
func (t *Tools) Status(ctx context.Context) (*ClusterStatus, error) {
	out, err := t.Run(ctx, "ceph", "status", "--format", "json")
	if err != nil {
		return nil, err
	}
	root := gjson.Parse(out)
	status := root.Get("health.status").String()
	if status == "" {
		return nil, fmt.Errorf("ceph status output carries no health.status: %.200s", out)
	}

	cs := &ClusterStatus{
		Health: Health{Status: status},
		Mons:   int(root.Get("monmap.num_mons").Int()),
		OSDs:   *osdStatFrom(root.Get("osdmap")),
		PGs:    int(root.Get("pgmap.num_pgs").Int()),
	}
	if cs.Mons == 0 {
		cs.Mons = int(root.Get("monmap.mons.#").Int())
	}
	root.Get("health.checks").ForEach(func(key, value gjson.Result) bool {
		cs.Health.Checks = append(cs.Health.Checks, key.String()+": "+value.Get("summary.message").String())
		return true
	})
	return cs, nil
}

// Capacity is the raw cluster capacity from ceph df.
type Capacity struct {
	TotalBytes int64
	UsedBytes  int64
	AvailBytes int64
}

// UsedFraction is the used share of total capacity, 0 when unknown.
func (c *Capacity) UsedFraction() float64 {
	if c.TotalBytes == 0 {
		return 0
	}
	return float64(c.UsedBytes) / float64(c.TotalBytes)
}

// DF reads raw capacity usage.
func (t *Tools) DF(ctx context.Context) (*Capacity, error) {
	out, err := t.Run(ctx, "ceph", "df", "--format", "json")
	if err != nil {
		return nil, err
	}
	stats := gjson.Get(out, "stats")
	if !stats.Exists() {
		return nil, fmt.Errorf("ceph df output carries no stats: %.200s", out)
	}
	return &Capacity{
		TotalBytes: stats.Get("total_bytes").Int(),
		UsedBytes:  stats.Get("total_used_raw_bytes").Int(),
		AvailBytes: stats.Get("total_avail_bytes").Int(),
	}, nil
}

// OSDStat is the OSD population summary.
type OSDStat struct {
	Total int
	Up    int
	In    int
}

// AllUp reports whether every OSD is up and in.
func (s *OSDStat) AllUp() bool {
	return s.Total > 0 && s.Up == s.Total && s.In == s.Total
}

// OSDs reads the OSD population. Newer ceph reports the counts at the
// top level, older releases nest them under osdmap.
func (t *Tools) OSDs(ctx context.Context) (*OSDStat, error) {
	out, err := t.Run(ctx, "ceph", "osd", "stat", "--format", "json")
	if err != nil {
		return nil, err
	}
	root := gjson.Parse(out)
	if root.Get("num_osds").Exists() {
		return osdStatFrom(root), nil
	}
	if nested := root.Get("osdmap"); nested.Exists() {
		return osdStatFrom(nested), nil
	}
	return nil, fmt.Errorf("ceph osd stat output carries no osd counts: %.200s", out)
}

func osdStatFrom(r gjson.Result) *OSDStat {
	return &OSDStat{
		Total: int(r.Get("num_osds").Int()),
		Up:    int(r.Get("num_up_osds").Int()),
		In:    int(r.Get("num_in_osds").Int()),
	}
}

// OSDTreeNode is one entry of the CRUSH tree: a root, a host, or an
// OSD.
type OSDTreeNode struct {
	ID       int64
	Name     string
	Type     string
	Status   string
	Children []int64
}

// OSDTree reads the CRUSH tree.
func (t *Tools) OSDTree(ctx context.Context) ([]OSDTreeNode, error) {
	out, err := t.Run(ctx, "ceph", "osd", "tree", "--format", "json")
	if err != nil {
		return nil, err
	}
	raw := gjson.Get(out, "nodes")
	if !raw.Exists() {
		return nil, fmt.Errorf("ceph osd tree output carries no nodes: %.200s", out)
	}

	var nodes []OSDTreeNode
	raw.ForEach(func(_, n gjson.Result) bool {
		node := OSDTreeNode{
			ID:     n.Get("id").Int(),
			Name:   n.Get("name").String(),
			Type:   n.Get("type").String(),
			Status: n.Get("status").String(),
		}
		n.Get("children").ForEach(func(_, c gjson.Result) bool {
			node.Children = append(node.Children, c.Int())
			return true
		})
		nodes = append(nodes, node)
		return true
	})
	return nodes, nil
}

// DownOSDs returns the names of OSDs the tree reports as down.
func DownOSDs(nodes []OSDTreeNode) []string {
	var down []string
	for _, n := range nodes {
		if n.Type == "osd" && n.Status == "down" {
			down = append(down, n.Name)
		}
	}
	return down
}

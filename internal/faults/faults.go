// Package faults impairs the storage network with tc netem on worker
// nodes and verifies the cluster rides it out. Faults are applied over
// node debug pods, held, removed, and the removal is verified; a fault
// that cannot be removed aborts the run, because the cluster is left
// impaired.
package faults

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind names one netem impairment.
type Kind string

const (
	Loss      Kind = "loss"
	Delay     Kind = "delay"
	Duplicate Kind = "duplicate"
	Corrupt   Kind = "corrupt"
)

// Fault is one impairment profile, possibly combining several kinds on
// the same qdisc. Zero-valued knobs fall back to the per-kind defaults.
type Fault struct {
	Kinds []Kind

	LossPercent      int // default 20
	DelayMs          int // default 200
	JitterMs         int // default 50
	DuplicatePercent int // default 10
	CorruptPercent   int // default 5
}

// Name is the human-readable identity of the profile, e.g. "delay+loss".
func (f Fault) Name() string {
	parts := make([]string, 0, len(f.Kinds))
	for _, k := range f.Kinds {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, "+")
}

// netemArgs renders the profile into tc netem arguments.
func (f Fault) netemArgs() ([]string, error) {
	if len(f.Kinds) == 0 {
		return nil, fmt.Errorf("fault has no kinds")
	}

	var args []string
	for _, kind := range f.Kinds {
		switch kind {
		case Loss:
			args = append(args, "loss", percent(f.LossPercent, 20))
		case Delay:
			delay := f.DelayMs
			if delay == 0 {
				delay = 200
			}
			jitter := f.JitterMs
			if jitter == 0 {
				jitter = 50
			}
			args = append(args, "delay", strconv.Itoa(delay)+"ms", strconv.Itoa(jitter)+"ms")
		case Duplicate:
			args = append(args, "duplicate", percent(f.DuplicatePercent, 10))
		case Corrupt:
			args = append(args, "corrupt", percent(f.CorruptPercent, 5))
		default:
			return nil, fmt.Errorf("unknown fault kind %q", kind)
		}
	}
	return args, nil
}

func percent(value, fallback int) string {
	if value == 0 {
		value = fallback
	}
	return strconv.Itoa(value) + "%"
}

// ParseFault parses a profile spec such as "loss" or "delay+loss".
func ParseFault(spec string) (Fault, error) {
	var fault Fault
	for _, part := range strings.Split(spec, "+") {
		kind := Kind(strings.TrimSpace(part))
		switch kind {
		case Loss, Delay, Duplicate, Corrupt:
			fault.Kinds = append(fault.Kinds, kind)
		default:
			return Fault{}, fmt.Errorf("unknown fault kind %q (valid: loss, delay, duplicate, corrupt)", part)
		}
	}
	if len(fault.Kinds) == 0 {
		return Fault{}, fmt.Errorf("empty fault spec")
	}
	return fault, nil
}

// DefaultFaults is the profile rotation used when none is configured.
func DefaultFaults() []Fault {
	return []Fault{
		{Kinds: []Kind{Loss}},
		{Kinds: []Kind{Delay}},
		{Kinds: []Kind{Duplicate}},
		{Kinds: []Kind{Corrupt}},
		{Kinds: []Kind{Delay, Loss}},
	}
}

// targetPicker tracks which nodes have had a fault yet and hands out
// random subsets of the remainder until every node is covered, then
// starts over.
type targetPicker struct {
	rng     *rand.Rand
	nodes   []string
	covered map[string]bool
}

func newTargetPicker(nodes []string, seed int64) *targetPicker {
	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)
	return &targetPicker{
		rng:     rand.New(rand.NewSource(seed)),
		nodes:   sorted,
		covered: make(map[string]bool, len(sorted)),
	}
}

// pick returns a non-empty random subset of not-yet-covered nodes and
// marks them covered. When all nodes are covered, coverage resets first.
func (p *targetPicker) pick() []string {
	var remaining []string
	for _, n := range p.nodes {
		if !p.covered[n] {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == 0 {
		p.covered = make(map[string]bool, len(p.nodes))
		remaining = append([]string(nil), p.nodes...)
	}

	p.rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})
	count := 1 + p.rng.Intn(len(remaining))
	targets := append([]string(nil), remaining[:count]...)
	sort.Strings(targets)
	for _, n := range targets {
		p.covered[n] = true
	}
	return targets
}

// sleep blocks for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package workloads

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/scale"
)

// Stage identifies one phase of a longevity cycle.
type Stage string

const (
	// StagePVC bulk-creates PVCs and waits for all of them to bind.
	StagePVC Stage = "bulk-pvc"
	// StagePods runs load pods over the cycle's PVCs. Skipped when the
	// PVC stage failed, the pods would have nothing to mount.
	StagePods Stage = "bulk-pods"
	// StageOBC bulk-creates object bucket claims.
	StageOBC Stage = "bulk-obc"
	// StageObjectIO drives the S3 workload. Skipped when no endpoint is
	// configured.
	StageObjectIO Stage = "object-io"
	// StageCleanup tears down everything the cycle created.
	StageCleanup Stage = "cleanup"
	// StageHealth checks the Ceph backend settled after the churn.
	StageHealth Stage = "ceph-health"
)

// Stages lists the cycle stages in the order they run.
var Stages = []Stage{StagePVC, StagePods, StageOBC, StageObjectIO, StageCleanup, StageHealth}

// HealthWaiter polls the storage backend until it reports healthy.
// *ceph.Tools satisfies it.
type HealthWaiter interface {
	WaitForHealthOK(ctx context.Context, interval, timeout time.Duration) error
}

// LongevityReport collects per-cycle, per-stage outcomes. Cycles run
// sequentially, so recording needs no locking; a stage that never ran
// has no outcome.
type LongevityReport struct {
	Cycles   int
	outcomes []map[Stage]error
}

func (r *LongevityReport) startCycle() {
	r.outcomes = append(r.outcomes, make(map[Stage]error, len(Stages)))
	r.Cycles = len(r.outcomes)
}

func (r *LongevityReport) record(cycle int, stage Stage, err error) {
	r.outcomes[cycle-1][stage] = err
}

// Outcome returns the recorded error for a stage and whether the stage
// ran at all. Cycles count from 1.
func (r *LongevityReport) Outcome(cycle int, stage Stage) (error, bool) {
	if cycle < 1 || cycle > len(r.outcomes) {
		return nil, false
	}
	err, ok := r.outcomes[cycle-1][stage]
	return err, ok
}

// Passed reports whether at least one cycle ran and every recorded
// stage succeeded.
func (r *LongevityReport) Passed() bool {
	if r.Cycles == 0 {
		return false
	}
	for _, outcomes := range r.outcomes {
		for _, err := range outcomes {
			if err != nil {
				return false
			}
		}
	}
	return true
}

// Summarize folds every failed stage into a single error, one entry per
// cycle/stage pair, or nil when everything passed.
func (r *LongevityReport) Summarize() error {
	var errs *multierror.Error
	for i, outcomes := range r.outcomes {
		for _, stage := range Stages {
			err, ok := outcomes[stage]
			if !ok || err == nil {
				continue
			}
			errs = multierror.Append(errs, fmt.Errorf("cycle %d, stage %s: %w", i+1, stage, err))
		}
	}
	return errs.ErrorOrNil()
}

// Log prints one line per cycle with the outcome of each stage.
func (r *LongevityReport) Log() {
	for i, outcomes := range r.outcomes {
		parts := make([]string, 0, len(Stages))
		for _, stage := range Stages {
			err, ok := outcomes[stage]
			switch {
			case !ok:
				parts = append(parts, fmt.Sprintf("%s skipped", stage))
			case err != nil:
				parts = append(parts, fmt.Sprintf("%s FAILED (%v)", stage, err))
			default:
				parts = append(parts, fmt.Sprintf("%s ok", stage))
			}
		}
		log.Printf("Cycle %d: %s", i+1, strings.Join(parts, ", "))
	}
}

// LongevityConfig sizes the churn of one cycle.
type LongevityConfig struct {
	// Duration is the total wall-clock budget. A cycle that is already
	// running when it elapses finishes; no new cycle starts after it.
	// A non-positive duration runs exactly one cycle.
	Duration time.Duration

	PVCsPerCycle int
	PodsPerCycle int
	OBCsPerCycle int

	StorageClass    string
	OBCStorageClass string
	PVCSize         string
	AccessMode      string
}

func (c LongevityConfig) withDefaults() LongevityConfig {
	if c.PVCsPerCycle <= 0 {
		c.PVCsPerCycle = 4
	}
	if c.PodsPerCycle <= 0 {
		c.PodsPerCycle = c.PVCsPerCycle
	}
	if c.OBCsPerCycle <= 0 {
		c.OBCsPerCycle = 2
	}
	if c.PVCSize == "" {
		c.PVCSize = "1Gi"
	}
	if c.AccessMode == "" {
		c.AccessMode = "ReadWriteOnce"
	}
	return c
}

// Longevity repeats staged resource churn, bulk PVCs, load pods, OBCs,
// object I/O, cleanup, until its wall-clock budget elapses, checking
// storage health after every cycle.
type Longevity struct {
	runner   *scale.Runner
	health   HealthWaiter
	object   *S3Workload
	timeouts *framework.Timeouts
	steps    *framework.Steps
	cfg      LongevityConfig
}

// NewLongevity wires a longevity run. health and object may be nil to
// skip the corresponding stages.
func NewLongevity(runner *scale.Runner, health HealthWaiter, object *S3Workload, timeouts *framework.Timeouts, steps *framework.Steps, cfg LongevityConfig) *Longevity {
	return &Longevity{
		runner:   runner,
		health:   health,
		object:   object,
		timeouts: timeouts,
		steps:    steps,
		cfg:      cfg.withDefaults(),
	}
}

// Run executes cycles until the budget elapses and returns the report.
// The error reflects cancellation only; stage failures land in the
// report and its Summarize.
func (l *Longevity) Run(ctx context.Context) (*LongevityReport, error) {
	report := &LongevityReport{}
	deadline := time.Now().Add(l.cfg.Duration)

	for cycle := 1; ; cycle++ {
		report.startCycle()
		l.steps.Step("Longevity cycle %d", cycle)
		l.runCycle(ctx, cycle, report)

		if l.health != nil {
			report.record(cycle, StageHealth, l.health.WaitForHealthOK(ctx, l.timeouts.PollInterval, l.timeouts.CephHealth))
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if l.cfg.Duration <= 0 || !time.Now().Before(deadline) {
			break
		}
	}

	report.Log()
	return report, nil
}

func (l *Longevity) runCycle(ctx context.Context, cycle int, report *LongevityReport) {
	pvcJob := fmt.Sprintf("longevity-%d-pvc", cycle)
	podJob := fmt.Sprintf("longevity-%d-pod", cycle)
	obcJob := fmt.Sprintf("longevity-%d-obc", cycle)

	pvcErr := l.runPVCStage(ctx, pvcJob)
	report.record(cycle, StagePVC, pvcErr)

	if pvcErr == nil {
		report.record(cycle, StagePods, l.runPodStage(ctx, podJob, pvcJob))
	}

	report.record(cycle, StageOBC, l.runOBCStage(ctx, obcJob))

	if l.object != nil {
		report.record(cycle, StageObjectIO, l.runObjectStage(ctx))
	}

	var cleanupErrs *multierror.Error
	for _, job := range []string{podJob, pvcJob, obcJob} {
		if err := l.runner.Cleanup(ctx, job); err != nil {
			cleanupErrs = multierror.Append(cleanupErrs, err)
		}
	}
	report.record(cycle, StageCleanup, cleanupErrs.ErrorOrNil())
}

func (l *Longevity) runPVCStage(ctx context.Context, job string) error {
	if err := l.runner.BulkPVC(ctx, job, l.cfg.PVCsPerCycle, l.cfg.StorageClass, l.cfg.PVCSize, l.cfg.AccessMode); err != nil {
		return err
	}
	return l.runner.WaitForBound(ctx, job, l.cfg.PVCsPerCycle)
}

func (l *Longevity) runPodStage(ctx context.Context, job, pvcJob string) error {
	if err := l.runner.BulkPods(ctx, job, l.cfg.PodsPerCycle, pvcJob); err != nil {
		return err
	}
	return l.runner.WaitForRunning(ctx, job, l.cfg.PodsPerCycle)
}

func (l *Longevity) runOBCStage(ctx context.Context, job string) error {
	if err := l.runner.BulkOBC(ctx, job, l.cfg.OBCsPerCycle, l.cfg.OBCStorageClass); err != nil {
		return err
	}
	return l.runner.WaitForOBCBound(ctx, job, l.cfg.OBCsPerCycle)
}

func (l *Longevity) runObjectStage(ctx context.Context) error {
	if err := l.object.Prepare(ctx); err != nil {
		return err
	}
	report, err := l.object.Run(ctx)
	if err != nil {
		return err
	}
	if report.Errors > 0 {
		return fmt.Errorf("object workload: %d of %d operations failed", report.Errors, report.Ops)
	}
	return l.object.Cleanup(ctx)
}

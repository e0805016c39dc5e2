package hosted

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Stage identifies one step of the per-cluster validation ladder.
type Stage string

const (
	// StageOCPReady passes when the guest API answers, nodes joined and
	// the cluster operators settled.
	StageOCPReady Stage = "ocp-ready"
	// StageClientOperator passes when the client operator CSV succeeded
	// and the storage client reports Connected.
	StageClientOperator Stage = "client-operator"
	// StageStorageVerified passes when the provider holds a consumer for
	// the cluster and the guest carries the ceph storage classes.
	StageStorageVerified Stage = "storage-verified"
	// StageHeartbeat passes when the consumer's heartbeat is fresh.
	StageHeartbeat Stage = "heartbeat"
)

// Stages lists the validation stages in the order they run.
var Stages = []Stage{StageOCPReady, StageClientOperator, StageStorageVerified, StageHeartbeat}

// Results collects per-cluster, per-stage outcomes. Recording is safe
// from concurrent verifiers; a nil error marks the stage as passed.
type Results struct {
	mu       sync.Mutex
	order    []string
	outcomes map[string]map[Stage]error
}

// NewResults prepares a collector for the given clusters. Report order
// follows the order given here, not recording order.
func NewResults(clusters []string) *Results {
	r := &Results{
		order:    append([]string(nil), clusters...),
		outcomes: make(map[string]map[Stage]error, len(clusters)),
	}
	for _, name := range clusters {
		r.outcomes[name] = make(map[Stage]error, len(Stages))
	}
	return r
}

// Record stores the outcome of one stage on one cluster.
func (r *Results) Record(cluster string, stage Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes[cluster] == nil {
		r.order = append(r.order, cluster)
		r.outcomes[cluster] = make(map[Stage]error, len(Stages))
	}
	r.outcomes[cluster][stage] = err
}

// Outcome returns the recorded error for a stage and whether the stage
// ran at all.
func (r *Results) Outcome(cluster string, stage Stage) (error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcomes, ok := r.outcomes[cluster]
	if !ok {
		return nil, false
	}
	err, ok := outcomes[stage]
	return err, ok
}

// Passed reports whether every recorded stage of the cluster succeeded.
// A cluster with no recorded stages has not passed.
func (r *Results) Passed(cluster string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcomes := r.outcomes[cluster]
	if len(outcomes) == 0 {
		return false
	}
	for _, err := range outcomes {
		if err != nil {
			return false
		}
	}
	return true
}

// Summarize folds every failed stage into a single error, one entry per
// cluster/stage pair, or nil when everything passed.
func (r *Results) Summarize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs *multierror.Error
	for _, cluster := range r.order {
		for _, stage := range Stages {
			err, ok := r.outcomes[cluster][stage]
			if !ok || err == nil {
				continue
			}
			errs = multierror.Append(errs, fmt.Errorf("cluster %s, stage %s: %w", cluster, stage, err))
		}
	}
	return errs.ErrorOrNil()
}

// Log prints one line per cluster with the outcome of each stage.
func (r *Results) Log() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cluster := range r.order {
		parts := make([]string, 0, len(Stages))
		for _, stage := range Stages {
			err, ok := r.outcomes[cluster][stage]
			switch {
			case !ok:
				parts = append(parts, fmt.Sprintf("%s skipped", stage))
			case err != nil:
				parts = append(parts, fmt.Sprintf("%s FAILED (%v)", stage, err))
			default:
				parts = append(parts, fmt.Sprintf("%s ok", stage))
			}
		}
		log.Printf("Cluster %s: %s", cluster, strings.Join(parts, ", "))
	}
}

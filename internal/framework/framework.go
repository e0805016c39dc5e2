package framework

import (
	"fmt"
	"sync"
)

// Framework is the process-wide handle on the run configuration and the
// currently targeted cluster. All orchestration code resolves "which
// cluster am I talking to" through it.
type Framework struct {
	cfg      *Config
	timeouts *Timeouts
	steps    *Steps

	mu       sync.RWMutex // guards current
	switchMu sync.Mutex   // serializes WithCluster blocks
	current  int
}

// Load reads the configuration file and builds a Framework targeting the
// first configured cluster.
func Load(path string) (*Framework, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// New builds a Framework from an already validated configuration.
func New(cfg *Config) (*Framework, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Framework{
		cfg:      cfg,
		timeouts: LoadTimeouts(),
		steps:    &Steps{},
	}, nil
}

// Config returns the run configuration.
func (f *Framework) Config() *Config { return f.cfg }

// RunID returns the identifier tagging every resource this run creates.
func (f *Framework) RunID() string { return f.cfg.RunID }

// Timeouts returns the polling budgets for this run.
func (f *Framework) Timeouts() *Timeouts { return f.timeouts }

// Steps returns the shared step logger.
func (f *Framework) Steps() *Steps { return f.steps }

// Current returns the currently targeted cluster.
func (f *Framework) Current() *Cluster {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg.Clusters[f.current]
}

// Use switches the current cluster context to the named cluster.
func (f *Framework) Use(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cl := range f.cfg.Clusters {
		if cl.Name == name {
			f.current = i
			return nil
		}
	}
	return fmt.Errorf("unknown cluster %q", name)
}

// WithCluster switches to the named cluster, runs fn against it, and
// restores the previous context afterwards, also on panic. Concurrent
// WithCluster blocks are serialized; code inside fn that must address a
// specific cluster should use the *Cluster it is handed rather than
// switching again.
func (f *Framework) WithCluster(name string, fn func(*Cluster) error) error {
	f.switchMu.Lock()
	defer f.switchMu.Unlock()

	f.mu.RLock()
	prev := f.current
	f.mu.RUnlock()

	if err := f.Use(name); err != nil {
		return err
	}
	defer func() {
		f.mu.Lock()
		f.current = prev
		f.mu.Unlock()
	}()

	return fn(f.Current())
}

// Provider returns the first cluster with the provider role, falling
// back to the first cluster when no role matches.
func (f *Framework) Provider() *Cluster {
	return f.firstWithRole(RoleProvider)
}

// Hub returns the first cluster with the hub role. A run without a
// dedicated hub uses the provider as hub.
func (f *Framework) Hub() *Cluster {
	for _, cl := range f.cfg.Clusters {
		if cl.Role == RoleHub {
			return cl
		}
	}
	return f.Provider()
}

// Clients returns every cluster with the client role, in config order.
func (f *Framework) Clients() []*Cluster {
	var out []*Cluster
	for _, cl := range f.cfg.Clusters {
		if cl.Role == RoleClient {
			out = append(out, cl)
		}
	}
	return out
}

func (f *Framework) firstWithRole(role string) *Cluster {
	for _, cl := range f.cfg.Clusters {
		if cl.Role == role {
			return cl
		}
	}
	return f.cfg.Clusters[0]
}

package framework

import (
	"fmt"
	"log"
	"sync"
)

// Steps numbers and logs the high-level steps of a run. The counter is
// the only shared mutable state in the framework that needs a lock:
// parallel per-cluster work logs through the same instance.
type Steps struct {
	mu sync.Mutex
	n  int
}

// Step logs the message prefixed with the next step number.
func (s *Steps) Step(format string, args ...any) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()

	log.Printf("STEP %d: %s", n, fmt.Sprintf(format, args...))
}

// Count returns how many steps have been logged.
func (s *Steps) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset restarts the counter, for reuse across independent scenarios.
func (s *Steps) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}

package framework

import (
	"sync"
	"testing"
)

func TestSteps_Count(t *testing.T) {
	s := &Steps{}
	s.Step("deploy %s", "odf")
	s.Step("wait for storage cluster")

	if got := s.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}

	s.Reset()
	if got := s.Count(); got != 0 {
		t.Errorf("Count() after Reset = %d, want 0", got)
	}
}

func TestSteps_ConcurrentNumbering(t *testing.T) {
	s := &Steps{}

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Step("parallel step")
		}()
	}
	wg.Wait()

	if got := s.Count(); got != n {
		t.Errorf("Count() = %d, want %d", got, n)
	}
}

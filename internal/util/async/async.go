// Package async provides utilities for parallel task execution.
//
// This package contains generic helpers for running independent operations
// concurrently, used to fan verification and workload steps out across
// clusters. RunParallel surfaces the first failure; RunAll drives every
// task to completion and reports all failures, which multi-cluster
// verification needs for complete per-cluster diagnostics.
package async

import (
	"context"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes multiple tasks in parallel and returns the first error encountered.
// All tasks are started concurrently, and the function waits for all to complete.
// If any task returns an error, the first error is returned after all tasks finish.
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			resultChan <- result{name: task.Name, err: err}
		}()
	}

	var firstError error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil && firstError == nil {
			firstError = fmt.Errorf("%s: %w", res.name, res.err)
		}
	}

	return firstError
}

// RunAll executes all tasks in parallel and returns every failure, each
// wrapped with its task name, in task order. A nil slice means all tasks
// succeeded. Unlike RunParallel, no failure is dropped.
func RunAll(ctx context.Context, tasks []Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	errs := make([]error, len(tasks))
	done := make(chan int, len(tasks))

	for i, task := range tasks {
		go func() {
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
			done <- i
		}()
	}

	for range len(tasks) {
		<-done
	}

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}

// Package errors defines the error classes shared across the framework.
//
// Orchestration code distinguishes failures that are worth retrying
// (external command hiccups, elapsed poll budgets) from failures that
// indicate a wrong or contradictory cluster state. Callers match on the
// concrete types with errors.As, or use the classification helpers.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// CommandFailed reports a non-zero exit from an external CLI invocation.
type CommandFailed struct {
	Command  string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandFailed) Error() string {
	msg := fmt.Sprintf("command %q failed with exit code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandFailed) Unwrap() error { return e.Err }

// TimeoutExpired reports that a poll budget elapsed before the awaited
// condition held. Reason carries the last observed state, when known.
type TimeoutExpired struct {
	What    string
	Timeout time.Duration
	Reason  string
}

func (e *TimeoutExpired) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
	if e.Reason != "" {
		msg += " (last state: " + e.Reason + ")"
	}
	return msg
}

// ResourceWrongStatus reports a resource that settled in a state other
// than the expected one.
type ResourceWrongStatus struct {
	Resource string
	Expected string
	Actual   string
}

func (e *ResourceWrongStatus) Error() string {
	return fmt.Sprintf("%s is in status %q, expected %q", e.Resource, e.Actual, e.Expected)
}

// UnexpectedDeploymentConfiguration reports cluster state that
// contradicts the requested deployment, e.g. an existing resource whose
// spec conflicts with what the installer was asked to create.
type UnexpectedDeploymentConfiguration struct {
	Component string
	Detail    string
}

func (e *UnexpectedDeploymentConfiguration) Error() string {
	return fmt.Sprintf("unexpected deployment configuration for %s: %s", e.Component, e.Detail)
}

// UnsupportedPlatform reports an operation invoked for a platform the
// framework does not implement.
type UnsupportedPlatform struct {
	Platform  string
	Operation string
}

func (e *UnsupportedPlatform) Error() string {
	return fmt.Sprintf("platform %q is not supported for %s", e.Platform, e.Operation)
}

// NewCommandFailed builds a CommandFailed from an executed command line.
func NewCommandFailed(command string, exitCode int, stderr string, err error) *CommandFailed {
	return &CommandFailed{Command: command, ExitCode: exitCode, Stderr: stderr, Err: err}
}

// NewTimeoutExpired builds a TimeoutExpired for the awaited condition.
func NewTimeoutExpired(what string, timeout time.Duration, reason string) *TimeoutExpired {
	return &TimeoutExpired{What: what, Timeout: timeout, Reason: reason}
}

// IsCommandFailed reports whether err is (or wraps) a CommandFailed.
func IsCommandFailed(err error) bool {
	var cf *CommandFailed
	return errors.As(err, &cf)
}

// IsTimeoutExpired reports whether err is (or wraps) a TimeoutExpired.
func IsTimeoutExpired(err error) bool {
	var te *TimeoutExpired
	return errors.As(err, &te)
}

// IsRetryable reports whether err is worth retrying: command failures
// and elapsed poll budgets are (the external system may simply have been
// slow or mid-rollout), wrong-status and configuration contradictions
// are not. Transient network failures against a cluster API that is
// still coming up also classify as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsCommandFailed(err) || IsTimeoutExpired(err) {
		return true
	}
	return isTransientNetwork(err)
}

// isTransientNetwork matches connection-level failures seen while a
// cluster API server is starting or briefly unreachable.
func isTransientNetwork(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"no such host",
		"network is unreachable",
		"context deadline exceeded",
		"dial tcp",
		"broken pipe",
		"etcdserver: request timed out",
		"the server is currently unable to handle the request",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

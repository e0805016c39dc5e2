package ocp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"

	odferrors "github.com/odfkit/odfkit/internal/errors"
)

// commandContext builds the exec.Cmd for an oc invocation. Tests swap it
// out to avoid running the real binary.
var commandContext = exec.CommandContext

// OC shells out to the oc CLI against one cluster's kubeconfig. Every
// invocation is written to the audit logger, which records the exact
// commands a run issued against live clusters.
type OC struct {
	kubeconfig string
	binary     string
	audit      logr.Logger
}

// NewOC builds an oc wrapper bound to the given kubeconfig.
func NewOC(kubeconfig string) *OC {
	return &OC{
		kubeconfig: kubeconfig,
		binary:     "oc",
		audit:      logr.Discard(),
	}
}

// WithAudit returns a copy of the wrapper writing its command trail to l.
func (o *OC) WithAudit(l logr.Logger) *OC {
	out := *o
	out.audit = l
	return &out
}

// Kubeconfig returns the kubeconfig path this wrapper targets.
func (o *OC) Kubeconfig() string { return o.kubeconfig }

// Run executes oc with the given arguments and returns trimmed stdout.
// A non-zero exit becomes a CommandFailed carrying stderr.
func (o *OC) Run(ctx context.Context, args ...string) (string, error) {
	return o.run(ctx, "", args...)
}

// RunWithStdin executes oc feeding stdin, for `oc apply -f -` style
// invocations.
func (o *OC) RunWithStdin(ctx context.Context, stdin string, args ...string) (string, error) {
	return o.run(ctx, stdin, args...)
}

func (o *OC) run(ctx context.Context, stdin string, args ...string) (string, error) {
	full := append([]string{"--kubeconfig", o.kubeconfig}, args...)
	cmd := commandContext(ctx, o.binary, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	display := o.binary + " " + strings.Join(args, " ")
	o.audit.Info("executing command", "command", display)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		o.audit.Info("command failed", "command", display, "exitCode", exitCode)
		return "", odferrors.NewCommandFailed(display, exitCode, stderr.String(), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// JSONPath runs `oc get` with a jsonpath output template and returns the
// extracted value.
func (o *OC) JSONPath(ctx context.Context, path string, getArgs ...string) (string, error) {
	args := append([]string{"get"}, getArgs...)
	args = append(args, "-o", fmt.Sprintf("jsonpath={%s}", path))
	return o.Run(ctx, args...)
}

// ApplyYAML applies a manifest through `oc apply -f -`.
func (o *OC) ApplyYAML(ctx context.Context, manifest string) (string, error) {
	return o.RunWithStdin(ctx, manifest, "apply", "-f", "-")
}

// DebugNode runs a command on a node through a debug pod chrooted to the
// host, the supported path for host-level tooling such as tc.
func (o *OC) DebugNode(ctx context.Context, node string, command ...string) (string, error) {
	args := append([]string{"debug", "node/" + node, "--", "chroot", "/host"}, command...)
	return o.Run(ctx, args...)
}

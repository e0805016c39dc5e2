package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
)

type stubBulkRunner struct {
	pvcJob     string
	pvcCount   int
	podJob     string
	podsPVCJob string
	obcJob     string
	waited     []string
	cleaned    string
	err        error
}

func (s *stubBulkRunner) BulkPVC(_ context.Context, id string, count int, _, _, _ string) error {
	s.pvcJob = id
	s.pvcCount = count
	return s.err
}

func (s *stubBulkRunner) BulkPods(_ context.Context, id string, _ int, pvcJob string) error {
	s.podJob = id
	s.podsPVCJob = pvcJob
	return s.err
}

func (s *stubBulkRunner) BulkOBC(_ context.Context, id string, _ int, _ string) error {
	s.obcJob = id
	return s.err
}

func (s *stubBulkRunner) WaitForBound(_ context.Context, _ string, _ int) error {
	s.waited = append(s.waited, "bound")
	return s.err
}

func (s *stubBulkRunner) WaitForRunning(_ context.Context, _ string, _ int) error {
	s.waited = append(s.waited, "running")
	return s.err
}

func (s *stubBulkRunner) WaitForOBCBound(_ context.Context, _ string, _ int) error {
	s.waited = append(s.waited, "obc-bound")
	return s.err
}

func (s *stubBulkRunner) Cleanup(_ context.Context, id string) error {
	s.cleaned = id
	return s.err
}

// scaleTestSetup stubs the factories and returns the fake clientset so
// tests can inspect created namespaces.
func scaleTestSetup(t *testing.T, runner *stubBulkRunner) *fake.Clientset {
	t.Helper()

	origLoad := loadFramework
	origClient := newClusterClient
	origRunner := newBulkRunner
	t.Cleanup(func() {
		loadFramework = origLoad
		newClusterClient = origClient
		newBulkRunner = origRunner
	})

	fw := testFramework(t,
		&framework.Cluster{Name: "prov", Role: framework.RoleProvider, Kubeconfig: "prov.kubeconfig"},
	)
	clientset := fake.NewSimpleClientset()
	loadFramework = func(_ string) (*framework.Framework, error) { return fw, nil }
	newClusterClient = func(_ string) (*ocp.Client, error) {
		return &ocp.Client{Clientset: clientset}, nil
	}
	newBulkRunner = func(_ *ocp.Client, _ string, _ *framework.Timeouts, _ *framework.Steps) BulkRunner {
		return runner
	}
	return clientset
}

func TestScalePVC(t *testing.T) {
	runner := &stubBulkRunner{}
	clientset := scaleTestSetup(t, runner)

	var err error
	output := captureOutput(func() {
		err = ScalePVC(context.Background(), "odfkit.yaml", "", "odfkit-scale", 20, "ocs-storagecluster-ceph-rbd", "1Gi", "ReadWriteOnce")
	})

	require.NoError(t, err)
	assert.Equal(t, "testrun", runner.pvcJob, "batch id should default to the run id")
	assert.Equal(t, 20, runner.pvcCount)
	assert.Equal(t, []string{"bound"}, runner.waited)
	assert.Contains(t, output, "20 PVCs of job testrun are Bound in odfkit-scale")

	_, err = clientset.CoreV1().Namespaces().Get(context.Background(), "odfkit-scale", metav1.GetOptions{})
	require.NoError(t, err, "namespace should be created before the batch")
}

func TestScalePVC_ExplicitID(t *testing.T) {
	runner := &stubBulkRunner{}
	scaleTestSetup(t, runner)

	var err error
	captureOutput(func() {
		err = ScalePVC(context.Background(), "odfkit.yaml", "burst-1", "odfkit-scale", 5, "sc", "10Gi", "ReadWriteMany")
	})

	require.NoError(t, err)
	assert.Equal(t, "burst-1", runner.pvcJob)
}

func TestScalePods(t *testing.T) {
	runner := &stubBulkRunner{}
	scaleTestSetup(t, runner)

	var err error
	output := captureOutput(func() {
		err = ScalePods(context.Background(), "odfkit.yaml", "", "odfkit-scale", 10, "burst-1")
	})

	require.NoError(t, err)
	assert.Equal(t, "testrun", runner.podJob)
	assert.Equal(t, "burst-1", runner.podsPVCJob, "pods should mount the named PVC batch")
	assert.Equal(t, []string{"running"}, runner.waited)
	assert.Contains(t, output, "10 pods of job testrun are Running in odfkit-scale")
}

func TestScaleOBC(t *testing.T) {
	runner := &stubBulkRunner{}
	scaleTestSetup(t, runner)

	var err error
	output := captureOutput(func() {
		err = ScaleOBC(context.Background(), "odfkit.yaml", "", "odfkit-scale", 8, "openshift-storage.noobaa.io")
	})

	require.NoError(t, err)
	assert.Equal(t, "testrun", runner.obcJob)
	assert.Equal(t, []string{"obc-bound"}, runner.waited)
	assert.Contains(t, output, "8 object bucket claims of job testrun are Bound in odfkit-scale")
}

func TestScaleCleanup(t *testing.T) {
	runner := &stubBulkRunner{}
	clientset := scaleTestSetup(t, runner)

	var err error
	output := captureOutput(func() {
		err = ScaleCleanup(context.Background(), "odfkit.yaml", "burst-1", "odfkit-scale")
	})

	require.NoError(t, err)
	assert.Equal(t, "burst-1", runner.cleaned)
	assert.Contains(t, output, "Job burst-1 cleaned up in odfkit-scale")

	_, err = clientset.CoreV1().Namespaces().Get(context.Background(), "odfkit-scale", metav1.GetOptions{})
	require.Error(t, err, "cleanup should not create the namespace")
}

func TestBatchID(t *testing.T) {
	fw := testFramework(t,
		&framework.Cluster{Name: "prov", Role: framework.RoleProvider, Kubeconfig: "prov.kubeconfig"},
	)

	assert.Equal(t, "burst-1", batchID(fw, "burst-1"))
	assert.Equal(t, "testrun", batchID(fw, ""))
}

func TestEnsureNamespace_AlreadyExists(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	client := &ocp.Client{Clientset: clientset}

	require.NoError(t, ensureNamespace(context.Background(), client, "odfkit-scale"))
	require.NoError(t, ensureNamespace(context.Background(), client, "odfkit-scale"))
}

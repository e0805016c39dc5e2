//go:build integration

package deployment

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	opv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"
	crfake "sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/odfkit/odfkit/internal/framework"
	"github.com/odfkit/odfkit/internal/ocp"
	"github.com/odfkit/odfkit/internal/resources"
)

// flowTimeouts gives the simulated operator room to react while keeping
// the polls fast.
func flowTimeouts() *framework.Timeouts {
	return &framework.Timeouts{
		OperatorInstall: 5 * time.Second,
		CSVSucceeded:    5 * time.Second,
		StorageCluster:  5 * time.Second,
		CephHealth:      5 * time.Second,
		DeploymentReady: 5 * time.Second,
		ClientConnected: 5 * time.Second,
		ResourceDelete:  5 * time.Second,
		PollInterval:    10 * time.Millisecond,
	}
}

func flowClient() *ocp.Client {
	listKinds := map[schema.GroupVersionResource]string{
		resources.StorageClusterGVR:  "StorageClusterList",
		resources.CephClusterGVR:     "CephClusterList",
		resources.StorageClientGVR:   "StorageClientList",
		resources.StorageConsumerGVR: "StorageConsumerList",
	}
	return &ocp.Client{
		Clientset: k8sfake.NewSimpleClientset(),
		Dynamic:   dynfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds),
		Runtime:   crfake.NewClientBuilder().WithScheme(ocp.Scheme()).Build(),
	}
}

func succeededCSV(namespace, name string) *opv1alpha1.ClusterServiceVersion {
	return &opv1alpha1.ClusterServiceVersion{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Status:     opv1alpha1.ClusterServiceVersionStatus{Phase: opv1alpha1.CSVPhaseSucceeded},
	}
}

var _ = Describe("ODF install flow", func() {
	var (
		client *ocp.Client
		odf    *ODF
		ctx    context.Context
	)

	BeforeEach(func() {
		client = flowClient()
		odf = NewODF(client, flowTimeouts(), &framework.Steps{}, storageConfig())
		odf.Provider = true

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		DeferCleanup(cancel)
	})

	It("installs the operator, creates the storage cluster and waits for it", func() {
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- odf.Deploy(ctx)
		}()

		By("driving the csv to Succeeded once the subscription exists")
		Eventually(func() error {
			sub := &opv1alpha1.Subscription{}
			return client.Runtime.Get(ctx, crclient.ObjectKey{Namespace: "openshift-storage", Name: "odf-operator"}, sub)
		}).WithTimeout(3 * time.Second).WithPolling(10 * time.Millisecond).Should(Succeed())
		Expect(client.Runtime.Create(ctx, succeededCSV("openshift-storage", "odf-operator.v4.18.3"))).To(Succeed())

		By("marking the storage cluster Ready once the installer creates it")
		sc := resources.StorageClusters(client.Dynamic, "openshift-storage")
		var created *unstructured.Unstructured
		Eventually(func() error {
			obj, err := sc.Get(ctx, "ocs-storagecluster")
			created = obj
			return err
		}).WithTimeout(3 * time.Second).WithPolling(10 * time.Millisecond).Should(Succeed())
		Expect(unstructured.SetNestedField(created.Object, "Ready", "status", "phase")).To(Succeed())
		_, err := sc.Update(ctx, created)
		Expect(err).NotTo(HaveOccurred())

		By("bringing the ceph cluster to HEALTH_OK")
		_, err = resources.CephClusters(client.Dynamic, "openshift-storage").Create(ctx, cephCluster("HEALTH_OK"))
		Expect(err).NotTo(HaveOccurred())

		By("creating the derived storage classes")
		for _, name := range []string{"ocs-storagecluster-cephfs", "ocs-storagecluster-ceph-rbd"} {
			_, err := client.Clientset.StorageV1().StorageClasses().Create(ctx, &storagev1.StorageClass{
				ObjectMeta: metav1.ObjectMeta{Name: name},
			}, metav1.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())
		}

		var deployErr error
		Eventually(done).WithTimeout(10 * time.Second).Should(Receive(&deployErr))
		Expect(deployErr).NotTo(HaveOccurred())

		obj, err := sc.Get(ctx, "ocs-storagecluster")
		Expect(err).NotTo(HaveOccurred())
		allow, _, err := unstructured.NestedBool(obj.Object, "spec", "allowRemoteStorageConsumers")
		Expect(err).NotTo(HaveOccurred())
		Expect(allow).To(BeTrue(), "provider mode should open the cluster to remote consumers")
	})

	It("reports the csv phase when the install never succeeds", func() {
		failed := succeededCSV("openshift-storage", "odf-operator.v4.18.3")
		failed.Status.Phase = opv1alpha1.CSVPhaseFailed
		Expect(client.Runtime.Create(ctx, failed)).To(Succeed())

		short := flowTimeouts()
		short.CSVSucceeded = 200 * time.Millisecond
		odf = NewODF(client, short, &framework.Steps{}, storageConfig())

		err := odf.Deploy(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring(`phase "Failed"`))
	})
})

var _ = Describe("client operator flow", func() {
	var (
		client *ocp.Client
		op     *ClientOperator
		ctx    context.Context
	)

	BeforeEach(func() {
		client = flowClient()
		op = NewClientOperator(client, flowTimeouts(), "", "stable-4.18")

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		DeferCleanup(cancel)
	})

	It("installs, then connects a storage client to the provider", func() {
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- op.Deploy(ctx)
		}()

		Eventually(func() error {
			sub := &opv1alpha1.Subscription{}
			return client.Runtime.Get(ctx, crclient.ObjectKey{Namespace: "openshift-storage-client", Name: "ocs-client-operator"}, sub)
		}).WithTimeout(3 * time.Second).WithPolling(10 * time.Millisecond).Should(Succeed())
		Expect(client.Runtime.Create(ctx, succeededCSV("openshift-storage-client", "ocs-client-operator.v4.18.2"))).To(Succeed())

		var deployErr error
		Eventually(done).WithTimeout(10 * time.Second).Should(Receive(&deployErr))
		Expect(deployErr).NotTo(HaveOccurred())

		installed, err := op.Installed(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed).To(BeTrue())

		By("connecting once the operator reconciles the StorageClient")
		connectDone := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			connectDone <- op.Connect(ctx, "storage-client-prov", "10.0.240.10:50051", "ticket")
		}()

		clients := resources.StorageClients(client.Dynamic)
		var sc *unstructured.Unstructured
		Eventually(func() error {
			obj, err := clients.Get(ctx, "storage-client-prov")
			sc = obj
			return err
		}).WithTimeout(3 * time.Second).WithPolling(10 * time.Millisecond).Should(Succeed())

		endpoint, _, err := unstructured.NestedString(sc.Object, "spec", "storageProviderEndpoint")
		Expect(err).NotTo(HaveOccurred())
		Expect(endpoint).To(Equal("10.0.240.10:50051"))

		Expect(unstructured.SetNestedField(sc.Object, "Connected", "status", "phase")).To(Succeed())
		_, err = clients.Update(ctx, sc)
		Expect(err).NotTo(HaveOccurred())

		var connectErr error
		Eventually(connectDone).WithTimeout(10 * time.Second).Should(Receive(&connectErr))
		Expect(connectErr).NotTo(HaveOccurred())

		connected, err := op.IsConnected(ctx, "storage-client-prov")
		Expect(err).NotTo(HaveOccurred())
		Expect(connected).To(BeTrue())
	})
})

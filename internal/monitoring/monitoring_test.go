package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	crfake "sigs.k8s.io/controller-runtime/pkg/client/fake"

	routev1 "github.com/openshift/api/route/v1"

	"github.com/odfkit/odfkit/internal/ocp"
)

// fakePrometheus answers /api/v1/query with canned responses keyed by
// the query string.
type fakePrometheus struct {
	mu      sync.Mutex
	queries []string
	tokens  []string
	paths   []string
	results map[string]string
}

func newFakePrometheus() *fakePrometheus {
	return &fakePrometheus{results: map[string]string{}}
}

func (f *fakePrometheus) vector(query string, values ...float64) {
	samples := make([]string, 0, len(values))
	for i, v := range values {
		samples = append(samples, fmt.Sprintf(`{"metric":{"series":"%d"},"value":[1700000000.000,"%g"]}`, i, v))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = fmt.Sprintf(`{"status":"success","data":{"resultType":"vector","result":[%s]}}`, strings.Join(samples, ","))
}

func (f *fakePrometheus) scalar(query string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = fmt.Sprintf(`{"status":"success","data":{"resultType":"scalar","result":[1700000000.000,"%g"]}}`, value)
}

func (f *fakePrometheus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := r.FormValue("query")
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.tokens = append(f.tokens, r.Header.Get("Authorization"))
	f.paths = append(f.paths, r.URL.Path)
	body, ok := f.results[query]
	f.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","errorType":"bad_data","error":"unknown query"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

// testClient serves TLS with a self-signed certificate so the
// insecure round tripper is exercised on every query.
func testClient(t *testing.T) (*Client, *fakePrometheus) {
	t.Helper()
	fake := newFakePrometheus()
	server := httptest.NewTLSServer(fake)
	t.Cleanup(server.Close)
	client, err := NewClientForEndpoint(server.URL, "test-token")
	require.NoError(t, err)
	return client, fake
}

func TestQueryReturnsVector(t *testing.T) {
	client, fake := testClient(t)
	fake.vector("up", 1, 0)

	vector, err := client.Query(context.Background(), "up")
	require.NoError(t, err)
	require.Len(t, vector, 2)
	assert.Equal(t, 1.0, float64(vector[0].Value))
	assert.Equal(t, 0.0, float64(vector[1].Value))

	require.NotEmpty(t, fake.queries)
	assert.Equal(t, "up", fake.queries[0])
	assert.Equal(t, "/api/v1/query", fake.paths[0])
	assert.Equal(t, "Bearer test-token", fake.tokens[0])
}

func TestQueryRejectsNonVectorResult(t *testing.T) {
	client, fake := testClient(t)
	fake.scalar("scalar(up)", 42)

	_, err := client.Query(context.Background(), "scalar(up)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a vector")
}

func TestQueryPropagatesServerError(t *testing.T) {
	client, _ := testClient(t)

	_, err := client.Query(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `query "missing" failed`)
}

func TestQueryScalar(t *testing.T) {
	client, fake := testClient(t)
	fake.vector("count(up)", 3)

	value, err := client.QueryScalar(context.Background(), "count(up)")
	require.NoError(t, err)
	assert.Equal(t, 3.0, value)
}

func TestQueryScalarNoSeries(t *testing.T) {
	client, fake := testClient(t)
	fake.vector("absent_metric")

	_, err := client.QueryScalar(context.Background(), "absent_metric")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched no series")
}

func TestQueryScalarMultipleSeries(t *testing.T) {
	client, fake := testClient(t)
	fake.vector("up", 1, 1, 0)

	_, err := client.QueryScalar(context.Background(), "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched 3 series, expected one")
}

func TestCephHealthMetric(t *testing.T) {
	client, fake := testClient(t)
	fake.vector(CephHealthQuery, 2)

	value, err := client.CephHealthMetric(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, value)
}

func TestConsumerHeartbeat(t *testing.T) {
	client, fake := testClient(t)
	query := fmt.Sprintf(consumerHeartbeatQuery, "storageconsumer-abc")
	fake.vector(query, 42.5)

	age, err := client.ConsumerHeartbeat(context.Background(), "storageconsumer-abc")
	require.NoError(t, err)
	assert.Equal(t, 42500*time.Millisecond, age)
	require.NotEmpty(t, fake.queries)
	assert.Contains(t, fake.queries[0], `storage_consumer_name="storageconsumer-abc"`)
}

func querierRoute(host string) *routev1.Route {
	route := &routev1.Route{
		ObjectMeta: metav1.ObjectMeta{Namespace: monitoringNamespace, Name: querierRouteName},
	}
	if host != "" {
		route.Status.Ingress = []routev1.RouteIngress{{Host: host}}
	}
	return route
}

func TestNewClientResolvesRouteAndToken(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	var requested string
	clientset.PrependReactor("create", "serviceaccounts/token", func(action k8stesting.Action) (bool, runtime.Object, error) {
		requested = action.(k8stesting.CreateActionImpl).Name
		return true, &authenticationv1.TokenRequest{
			Status: authenticationv1.TokenRequestStatus{Token: "sa-token"},
		}, nil
	})
	cluster := &ocp.Client{
		Clientset: clientset,
		Runtime: crfake.NewClientBuilder().WithScheme(ocp.Scheme()).
			WithObjects(querierRoute("thanos-querier-openshift-monitoring.apps.example.com")).Build(),
	}

	client, err := NewClient(context.Background(), cluster)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "prometheus-k8s", requested)
}

func TestNewClientFailsWithoutIngress(t *testing.T) {
	cluster := &ocp.Client{
		Clientset: k8sfake.NewSimpleClientset(),
		Runtime:   crfake.NewClientBuilder().WithScheme(ocp.Scheme()).WithObjects(querierRoute("")).Build(),
	}

	_, err := NewClient(context.Background(), cluster)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admitted ingress")
}

func TestNewClientFailsWithoutRoute(t *testing.T) {
	cluster := &ocp.Client{
		Clientset: k8sfake.NewSimpleClientset(),
		Runtime:   crfake.NewClientBuilder().WithScheme(ocp.Scheme()).Build(),
	}

	_, err := NewClient(context.Background(), cluster)
	require.Error(t, err)
	assert.Contains(t, err.Error(), querierRouteName)
}

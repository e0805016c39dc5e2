// Package monitoring queries cluster metrics through the OpenShift
// monitoring stack. Queries go to the thanos-querier route with a
// short-lived bearer token for the prometheus-k8s service account, so
// no extra RBAC or port-forwarding is needed.
package monitoring

import (
	"context"
	"fmt"
	"log"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	promconfig "github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"

	routev1 "github.com/openshift/api/route/v1"

	"github.com/odfkit/odfkit/internal/ocp"
)

const (
	monitoringNamespace   = "openshift-monitoring"
	querierRouteName      = "thanos-querier"
	querierServiceAccount = "prometheus-k8s"

	// CephHealthQuery reports cluster health as exported by the rook
	// metrics exporter: 0 is HEALTH_OK, 1 is HEALTH_WARN, 2 is HEALTH_ERR.
	CephHealthQuery = "ceph_health_status"

	// consumerHeartbeatQuery reports seconds since the named
	// StorageConsumer last phoned home to the provider.
	consumerHeartbeatQuery = `time() - ocs_storage_client_last_heartbeat{storage_consumer_name=%q}`
)

// Client runs PromQL queries against a cluster's Prometheus.
type Client struct {
	api promv1.API
}

// NewClient builds a query client for the given cluster. It resolves
// the thanos-querier route, requests a token for the prometheus-k8s
// service account, and wires both into an HTTPS round tripper. The
// router serves the cluster's self-signed certificate, so verification
// is skipped.
func NewClient(ctx context.Context, cluster *ocp.Client) (*Client, error) {
	route := &routev1.Route{}
	key := crclient.ObjectKey{Namespace: monitoringNamespace, Name: querierRouteName}
	if err := cluster.Runtime.Get(ctx, key, route); err != nil {
		return nil, fmt.Errorf("failed to get the %s route: %w", querierRouteName, err)
	}
	if len(route.Status.Ingress) == 0 {
		return nil, fmt.Errorf("route %s/%s has no admitted ingress", monitoringNamespace, querierRouteName)
	}
	address := "https://" + route.Status.Ingress[0].Host

	tokenReq, err := cluster.Clientset.CoreV1().ServiceAccounts(monitoringNamespace).CreateToken(
		ctx, querierServiceAccount,
		&authenticationv1.TokenRequest{Spec: authenticationv1.TokenRequestSpec{}},
		metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to request a token for %s: %w", querierServiceAccount, err)
	}

	return NewClientForEndpoint(address, tokenReq.Status.Token)
}

// NewClientForEndpoint builds a query client for an already known
// Prometheus address and bearer token.
func NewClientForEndpoint(address, token string) (*Client, error) {
	cfg := promconfig.HTTPClientConfig{
		Authorization: &promconfig.Authorization{
			Type:        "Bearer",
			Credentials: promconfig.Secret(token),
		},
		TLSConfig: promconfig.TLSConfig{InsecureSkipVerify: true},
	}
	rt, err := promconfig.NewRoundTripperFromConfig(cfg, "monitoring")
	if err != nil {
		return nil, fmt.Errorf("failed to build the prometheus round tripper: %w", err)
	}
	promClient, err := promapi.NewClient(promapi.Config{Address: address, RoundTripper: rt})
	if err != nil {
		return nil, fmt.Errorf("failed to build the prometheus client: %w", err)
	}
	return &Client{api: promv1.NewAPI(promClient)}, nil
}

// Query runs an instant query and returns the resulting vector.
func (c *Client) Query(ctx context.Context, promql string) (model.Vector, error) {
	result, warnings, err := c.api.Query(ctx, promql, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", promql, err)
	}
	for _, warning := range warnings {
		log.Printf("Prometheus warning for %q: %s", promql, warning)
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("query %q returned %s, expected a vector", promql, result.Type())
	}
	return vector, nil
}

// QueryScalar runs an instant query expected to match exactly one
// series and returns its value.
func (c *Client) QueryScalar(ctx context.Context, promql string) (float64, error) {
	vector, err := c.Query(ctx, promql)
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, fmt.Errorf("query %q matched no series", promql)
	}
	if len(vector) > 1 {
		return 0, fmt.Errorf("query %q matched %d series, expected one", promql, len(vector))
	}
	return float64(vector[0].Value), nil
}

// CephHealthMetric returns the current ceph_health_status value.
func (c *Client) CephHealthMetric(ctx context.Context) (float64, error) {
	return c.QueryScalar(ctx, CephHealthQuery)
}

// ConsumerHeartbeat returns how long ago the named StorageConsumer
// last reported a heartbeat to the provider.
func (c *Client) ConsumerHeartbeat(ctx context.Context, consumer string) (time.Duration, error) {
	seconds, err := c.QueryScalar(ctx, fmt.Sprintf(consumerHeartbeatQuery, consumer))
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

package deployment

import (
	"context"
	"fmt"

	"github.com/odfkit/odfkit/internal/deployment/helm"
	"github.com/odfkit/odfkit/internal/framework"
)

const (
	certManagerNamespace = "cert-manager"
	certManagerRepo      = "https://charts.jetstack.io"
	certManagerChart     = "cert-manager"
	certManagerRelease   = "cert-manager"
)

// CertManager installs cert-manager from its Helm chart. The hosted
// control plane stack needs it for webhook and serving certificates.
type CertManager struct {
	kubeconfig []byte
	steps      *framework.Steps

	// Version pins the chart; empty installs the latest.
	Version string
}

// NewCertManager returns an installer for one cluster, identified by
// its kubeconfig bytes.
func NewCertManager(kubeconfig []byte, steps *framework.Steps) *CertManager {
	return &CertManager{kubeconfig: kubeconfig, steps: steps}
}

// Deploy installs or upgrades the chart and waits for its workloads.
func (c *CertManager) Deploy(ctx context.Context) error {
	c.steps.Step("Installing cert-manager via helm")

	hc, err := helm.NewClient(c.kubeconfig, certManagerNamespace)
	if err != nil {
		return err
	}

	values := map[string]interface{}{
		"crds":            map[string]interface{}{"enabled": true},
		"startupapicheck": map[string]interface{}{"enabled": false},
	}

	if _, err := hc.InstallOrUpgrade(ctx, certManagerRelease, certManagerRepo, certManagerChart, c.Version, values); err != nil {
		return fmt.Errorf("failed to install cert-manager: %w", err)
	}
	return nil
}

// Undeploy removes the release.
func (c *CertManager) Undeploy() error {
	hc, err := helm.NewClient(c.kubeconfig, certManagerNamespace)
	if err != nil {
		return err
	}
	return hc.Uninstall(certManagerRelease)
}

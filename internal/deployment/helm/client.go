// Package helm installs charts programmatically for the dependencies
// that ship as Helm charts rather than OLM operators.
package helm

import (
	"context"
	"fmt"
	"os"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
)

// Client provides Helm operations against one cluster and namespace.
type Client struct {
	namespace    string
	actionConfig *action.Configuration
}

// NewClient creates a Helm client from kubeconfig bytes.
func NewClient(kubeconfig []byte, namespace string) (*Client, error) {
	actionConfig := new(action.Configuration)
	restGetter := NewInMemoryRESTClientGetter(kubeconfig, namespace)

	// Quiet logger; helm's debug output drowns the step log.
	if err := actionConfig.Init(restGetter, namespace, "secret", func(format string, v ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	return &Client{namespace: namespace, actionConfig: actionConfig}, nil
}

// InstallOrUpgrade installs a chart or upgrades it if the release
// already exists.
func (c *Client) InstallOrUpgrade(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}) (*release.Release, error) {
	exists, err := c.ReleaseExists(releaseName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return c.install(ctx, releaseName, repoURL, chartName, version, values)
	}
	return c.upgrade(ctx, releaseName, repoURL, chartName, version, values)
}

func (c *Client) install(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}) (*release.Release, error) {
	installClient := action.NewInstall(c.actionConfig)
	installClient.ReleaseName = releaseName
	installClient.Namespace = c.namespace
	installClient.CreateNamespace = true
	installClient.Version = version
	installClient.Wait = true
	installClient.Timeout = 10 * time.Minute

	ch, err := c.loadChart(repoURL, chartName, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}

	return installClient.RunWithContext(ctx, ch, values)
}

func (c *Client) upgrade(ctx context.Context, releaseName, repoURL, chartName, version string, values map[string]interface{}) (*release.Release, error) {
	upgradeClient := action.NewUpgrade(c.actionConfig)
	upgradeClient.Namespace = c.namespace
	upgradeClient.Version = version
	upgradeClient.Wait = true
	upgradeClient.Timeout = 10 * time.Minute
	upgradeClient.ReuseValues = false

	ch, err := c.loadChart(repoURL, chartName, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}

	return upgradeClient.RunWithContext(ctx, releaseName, ch, values)
}

func (c *Client) loadChart(repoURL, chartName, version string) (*chart.Chart, error) {
	settings := cli.New()

	chartPath, err := repo.FindChartInRepoURL(
		repoURL,
		chartName,
		version,
		"", "", "",
		getter.All(settings),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", chartName, repoURL, err)
	}

	defer func() {
		_ = os.Remove(chartPath)
	}()

	return loader.Load(chartPath)
}

// Uninstall removes a Helm release.
func (c *Client) Uninstall(releaseName string) error {
	uninstallClient := action.NewUninstall(c.actionConfig)
	uninstallClient.Wait = true
	uninstallClient.Timeout = 5 * time.Minute

	_, err := uninstallClient.Run(releaseName)
	return err
}

// ReleaseExists checks if a release exists.
func (c *Client) ReleaseExists(releaseName string) (bool, error) {
	histClient := action.NewHistory(c.actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(releaseName); err != nil {
		return false, nil
	}
	return true, nil
}

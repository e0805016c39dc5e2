// Package ocp provides the Kubernetes/OpenShift client bundle and the
// polling primitives orchestration code is built on. Resources owned by
// the storage product are handled as unstructured objects; OLM and
// OpenShift platform resources go through typed clients.
package ocp

import (
	"context"
	"fmt"
	"os"
	"strings"

	configv1 "github.com/openshift/api/config/v1"
	routev1 "github.com/openshift/api/route/v1"
	opv1 "github.com/operator-framework/api/pkg/operators/v1"
	opv1alpha1 "github.com/operator-framework/api/pkg/operators/v1alpha1"
	corev1 "k8s.io/api/core/v1"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	k8syaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Client bundles the API clients used against one cluster.
type Client struct {
	Clientset kubernetes.Interface
	Dynamic   dynamic.Interface
	Runtime   crclient.Client
	Config    *rest.Config
}

// Scheme returns the runtime scheme shared by every controller-runtime
// client the framework builds: core types plus OLM, OpenShift config and
// route, and CRD groups.
func Scheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(s))
	utilruntime.Must(opv1.AddToScheme(s))
	utilruntime.Must(opv1alpha1.AddToScheme(s))
	utilruntime.Must(configv1.AddToScheme(s))
	utilruntime.Must(routev1.AddToScheme(s))
	utilruntime.Must(apiextv1.AddToScheme(s))
	return s
}

// NewClient creates a client bundle from a kubeconfig file.
func NewClient(kubeconfigPath string) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}
	return newClient(config)
}

// NewClientFromBytes creates a client bundle from raw kubeconfig bytes,
// as handed out by a hosted cluster's kubeconfig secret.
func NewClientFromBytes(kubeconfigData []byte) (*Client, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfigData)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from bytes: %w", err)
	}
	return newClient(config)
}

// NewClientFromEnv creates a client bundle from $KUBECONFIG.
func NewClientFromEnv() (*Client, error) {
	path := os.Getenv("KUBECONFIG")
	if path == "" {
		return nil, fmt.Errorf("KUBECONFIG is not set")
	}
	return NewClient(path)
}

func newClient(config *rest.Config) (*Client, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	runtimeClient, err := crclient.New(config, crclient.Options{Scheme: Scheme()})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller-runtime client: %w", err)
	}

	return &Client{
		Clientset: clientset,
		Dynamic:   dynamicClient,
		Runtime:   runtimeClient,
		Config:    config,
	}, nil
}

// Apply decodes a (possibly multi-document) YAML manifest and creates
// each object, updating it when it already exists. Returns the applied
// objects in manifest order.
func (c *Client) Apply(ctx context.Context, manifest string) ([]*unstructured.Unstructured, error) {
	decoder := k8syaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)

	var applied []*unstructured.Unstructured
	for {
		var obj unstructured.Unstructured
		if err := decoder.Decode(&obj); err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}

		if len(obj.Object) == 0 {
			continue
		}

		out, err := c.ApplyUnstructured(ctx, &obj)
		if err != nil {
			return nil, err
		}
		applied = append(applied, out)
	}

	return applied, nil
}

// ApplyUnstructured creates the object, falling back to an update (with
// the live resourceVersion) when it already exists.
func (c *Client) ApplyUnstructured(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	ri := c.resourceInterface(obj)

	out, err := ri.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return out, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}

	live, err := ri.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	obj.SetResourceVersion(live.GetResourceVersion())

	out, err = ri.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return out, nil
}

func (c *Client) resourceInterface(obj *unstructured.Unstructured) dynamic.ResourceInterface {
	gvk := obj.GroupVersionKind()
	gvr := schema.GroupVersionResource{
		Group:    gvk.Group,
		Version:  gvk.Version,
		Resource: ResourceForKind(gvk.Kind),
	}
	if ns := obj.GetNamespace(); ns != "" {
		return c.Dynamic.Resource(gvr).Namespace(ns)
	}
	return c.Dynamic.Resource(gvr)
}

// CreateSecret creates or updates a Kubernetes secret.
func (c *Client) CreateSecret(ctx context.Context, namespace, name string, data map[string][]byte) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Data: data,
		Type: corev1.SecretTypeOpaque,
	}

	_, err := c.Clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		_, err = c.Clientset.CoreV1().Secrets(namespace).Update(ctx, secret, metav1.UpdateOptions{})
	}
	if err != nil {
		return fmt.Errorf("failed to create or update secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// ReadSecretKey fetches one key of a secret.
func (c *Client) ReadSecretKey(ctx context.Context, namespace, name, key string) ([]byte, error) {
	secret, err := c.Clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}
	data, ok := secret.Data[key]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s has no key %q", namespace, name, key)
	}
	return data, nil
}

// ResourceForKind maps a Kubernetes kind to its resource name. Irregular
// plurals of the kinds this framework touches are listed explicitly; the
// default is lowercase kind + "s".
func ResourceForKind(kind string) string {
	switch kind {
	case "NetworkPolicy":
		return "networkpolicies"
	case "SecurityContextConstraints":
		return "securitycontextconstraints"
	case "Proxy":
		return "proxies"
	case "Endpoints":
		return "endpoints"
	case "HyperConverged":
		return "hyperconvergeds"
	case "StorageClass":
		return "storageclasses"
	case "IngressClass":
		return "ingressclasses"
	case "PriorityClass":
		return "priorityclasses"
	case "VolumeSnapshotClass":
		return "volumesnapshotclasses"
	default:
		return strings.ToLower(kind) + "s"
	}
}

package wizard

import "errors"

// Validation errors for the interactive wizard.
var (
	errClusterNameRequired = errors.New("cluster name is required")
	errClusterNameInvalid  = errors.New("cluster name must be 1-32 lowercase alphanumeric characters or hyphens, starting and ending with alphanumeric")
	errKubeconfigRequired  = errors.New("kubeconfig path is required")
	errAddressPoolInvalid  = errors.New("invalid address pool entry (expected x.x.x.x-y.y.y.y or CIDR)")
	errEndpointInvalid     = errors.New("invalid endpoint (expected http(s)://host[:port])")
)

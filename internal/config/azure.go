package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDeploymentURL marks a malformed Azure deployment target URL.
var ErrInvalidDeploymentURL = errors.New("invalid Azure deployment target URL")

// DeploymentTarget is the decomposed form of an Azure OpenAI deployment
// target URL.
type DeploymentTarget struct {
	Endpoint   string
	Deployment string
	APIVersion string
}

const deploymentsMarker = "/openai/deployments/"

// ParseDeploymentURL splits a single opaque Azure target URL such as
//
//	https://x.openai.azure.com/openai/deployments/gpt-4o/chat/completions?api-version=2024-12-01-preview
//
// into endpoint, deployment name, and API version. Only the two marker
// substrings are validated; the URL scheme is not.
func ParseDeploymentURL(targetURL string) (DeploymentTarget, error) {
	base, rest, found := strings.Cut(targetURL, deploymentsMarker)
	if !found {
		return DeploymentTarget{}, fmt.Errorf("%w: missing %q path segment", ErrInvalidDeploymentURL, deploymentsMarker)
	}
	deployment, _, _ := strings.Cut(rest, "/")

	_, versionPart, found := strings.Cut(targetURL, "api-version=")
	if !found {
		return DeploymentTarget{}, fmt.Errorf("%w: missing api-version parameter", ErrInvalidDeploymentURL)
	}
	version, _, _ := strings.Cut(versionPart, "&")

	return DeploymentTarget{
		Endpoint:   base + "/",
		Deployment: deployment,
		APIVersion: version,
	}, nil
}

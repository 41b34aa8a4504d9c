// Package runner provides typed wrappers around the external tools the
// orchestrator drives: kubectl for all cluster interaction, helm for
// package-manager-style installs, and dig/nslookup for DNS resolution.
// Every wrapper goes through a connector.Connector so failures carry exit
// code, stdout and stderr uniformly.
package runner

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/cyberedu/rangectl/pkg/connector"
)

type Runner interface {
	// Generic command execution.
	Run(ctx context.Context, conn connector.Connector, cmd string) (string, error)
	Check(ctx context.Context, conn connector.Connector, cmd string) (bool, error)

	// kubectl.
	KubectlApply(ctx context.Context, conn connector.Connector, opts KubectlApplyOptions) (string, error)
	KubectlGet(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlGetOptions) (string, error)
	KubectlDelete(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlDeleteOptions) error
	KubectlDescribe(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlDescribeOptions) (string, error)
	KubectlLogs(ctx context.Context, conn connector.Connector, podName string, opts KubectlLogOptions) (string, error)
	KubectlPatch(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlPatchOptions) error
	KubectlVersion(ctx context.Context, conn connector.Connector) (*semver.Version, error)

	// helm.
	HelmInstall(ctx context.Context, conn connector.Connector, releaseName, chart string, opts HelmInstallOptions) error
	HelmUninstall(ctx context.Context, conn connector.Connector, releaseName string, opts HelmUninstallOptions) error
	HelmRepoAdd(ctx context.Context, conn connector.Connector, name, url string) error
	HelmRepoUpdate(ctx context.Context, conn connector.Connector) error
	HelmStatus(ctx context.Context, conn connector.Connector, releaseName string, opts HelmStatusOptions) (string, error)

	// DNS resolution tools.
	DigResolve(ctx context.Context, conn connector.Connector, host string, opts DNSLookupOptions) ([]string, error)
	NslookupResolve(ctx context.Context, conn connector.Connector, host string, opts DNSLookupOptions) ([]string, error)
}

type defaultRunner struct{}

// NewDefaultRunner returns the standard Runner implementation.
func NewDefaultRunner() Runner {
	return &defaultRunner{}
}

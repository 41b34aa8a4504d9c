package runner

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/connector"
)

const (
	DefaultHelmTimeout = 5 * time.Minute
)

// HelmInstall installs or upgrades a release. `helm upgrade --install` is
// used so re-running an install converges instead of failing on an existing
// release.
func (r *defaultRunner) HelmInstall(ctx context.Context, conn connector.Connector, releaseName, chart string, opts HelmInstallOptions) error {
	if conn == nil {
		return errors.New("connector cannot be nil")
	}
	if releaseName == "" || chart == "" {
		return errors.New("releaseName and chart are required")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "helm", "upgrade", "--install", shellEscape(releaseName), shellEscape(chart))
	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	if opts.CreateNamespace {
		cmdArgs = append(cmdArgs, "--create-namespace")
	}
	if opts.Version != "" {
		cmdArgs = append(cmdArgs, "--version", shellEscape(opts.Version))
	}
	for _, sv := range opts.SetValues {
		cmdArgs = append(cmdArgs, "--set", shellEscape(sv))
	}
	if opts.Wait {
		cmdArgs = append(cmdArgs, "--wait")
	}
	if opts.Timeout > 0 {
		cmdArgs = append(cmdArgs, "--timeout", opts.Timeout.String())
	}

	cmd := strings.Join(cmdArgs, " ")
	execTimeout := DefaultHelmTimeout
	if opts.Timeout > 0 {
		execTimeout = opts.Timeout + (1 * time.Minute)
	}
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: execTimeout})
	if err != nil {
		return errors.Wrapf(err, "helm install for '%s' ('%s') failed. Stdout: %s, Stderr: %s", releaseName, chart, string(stdout), string(stderr))
	}
	return nil
}

// HelmUninstall uninstalls a Helm release.
func (r *defaultRunner) HelmUninstall(ctx context.Context, conn connector.Connector, releaseName string, opts HelmUninstallOptions) error {
	if conn == nil {
		return errors.New("connector cannot be nil")
	}
	if releaseName == "" {
		return errors.New("releaseName is required")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "helm", "uninstall", shellEscape(releaseName))
	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	if opts.Wait {
		cmdArgs = append(cmdArgs, "--wait")
	}

	cmd := strings.Join(cmdArgs, " ")
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: DefaultHelmTimeout})
	if err != nil {
		if opts.IgnoreNotFound && strings.Contains(string(stderr), "not found") {
			return nil
		}
		return errors.Wrapf(err, "helm uninstall for '%s' failed. Stdout: %s, Stderr: %s", releaseName, string(stdout), string(stderr))
	}
	return nil
}

// HelmRepoAdd adds a chart repository. Re-adding an existing repo with the
// same URL succeeds thanks to --force-update.
func (r *defaultRunner) HelmRepoAdd(ctx context.Context, conn connector.Connector, name, url string) error {
	if conn == nil {
		return errors.New("connector cannot be nil")
	}
	if name == "" || url == "" {
		return errors.New("name and url are required for HelmRepoAdd")
	}

	cmd := strings.Join([]string{"helm", "repo", "add", shellEscape(name), shellEscape(url), "--force-update"}, " ")
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: DefaultHelmTimeout})
	if err != nil {
		return errors.Wrapf(err, "helm repo add '%s' failed. Stdout: %s, Stderr: %s", name, string(stdout), string(stderr))
	}
	return nil
}

// HelmRepoUpdate refreshes all chart repositories.
func (r *defaultRunner) HelmRepoUpdate(ctx context.Context, conn connector.Connector) error {
	if conn == nil {
		return errors.New("connector cannot be nil")
	}
	stdout, stderr, err := conn.Exec(ctx, "helm repo update", &connector.ExecOptions{Timeout: DefaultHelmTimeout})
	if err != nil {
		return errors.Wrapf(err, "helm repo update failed. Stdout: %s, Stderr: %s", string(stdout), string(stderr))
	}
	return nil
}

// HelmStatus returns the status string of a release ("deployed", "failed",
// ...), or an empty string when the release does not exist.
func (r *defaultRunner) HelmStatus(ctx context.Context, conn connector.Connector, releaseName string, opts HelmStatusOptions) (string, error) {
	if conn == nil {
		return "", errors.New("connector cannot be nil")
	}
	if releaseName == "" {
		return "", errors.New("releaseName is required")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "helm", "status", shellEscape(releaseName), "-o", "json")
	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}

	cmd := strings.Join(cmdArgs, " ")
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: DefaultHelmTimeout})
	if err != nil {
		if strings.Contains(string(stderr), "not found") {
			return "", nil
		}
		return "", errors.Wrapf(err, "helm status for '%s' failed. Stderr: %s", releaseName, string(stderr))
	}
	return gjson.GetBytes(stdout, "info.status").String(), nil
}

package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/connector"
)

const (
	DefaultKubectlTimeout = 2 * time.Minute
)

// KubectlApply applies a manifest streamed over stdin.
// Corresponds to `kubectl apply -f - [options]`.
func (r *defaultRunner) KubectlApply(ctx context.Context, conn connector.Connector, opts KubectlApplyOptions) (string, error) {
	if conn == nil {
		return "", errors.New("connector cannot be nil")
	}
	if opts.FileContent == "" {
		return "", errors.New("FileContent must be provided for KubectlApply")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "kubectl", "apply", "-f", "-")

	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	if !opts.Validate {
		cmdArgs = append(cmdArgs, "--validate=false")
	}

	cmd := strings.Join(cmdArgs, " ")

	execTimeout := DefaultKubectlTimeout
	if opts.Timeout > 0 {
		execTimeout = opts.Timeout
	}
	execOptions := &connector.ExecOptions{
		Timeout: execTimeout,
		Stdin:   []byte(opts.FileContent),
	}

	stdout, stderr, err := conn.Exec(ctx, cmd, execOptions)
	if err != nil {
		return string(stdout), errors.Wrapf(err, "kubectl apply failed. Stdout: %s, Stderr: %s", string(stdout), string(stderr))
	}
	// On success kubectl prints one line per resource, e.g.
	// "deployment.apps/cyberange-postgres configured" or "... unchanged".
	return strings.TrimSpace(string(stdout)), nil
}

// KubectlGet retrieves one or more resources.
// Corresponds to `kubectl get TYPE [NAME] [options]`.
func (r *defaultRunner) KubectlGet(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlGetOptions) (string, error) {
	if conn == nil {
		return "", errors.New("connector cannot be nil")
	}
	if resourceType == "" {
		return "", errors.New("resourceType is required for KubectlGet")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "kubectl", "get", shellEscape(resourceType))
	if resourceName != "" {
		cmdArgs = append(cmdArgs, shellEscape(resourceName))
	}

	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	if opts.AllNamespaces {
		cmdArgs = append(cmdArgs, "--all-namespaces")
	}
	if opts.OutputFormat != "" {
		cmdArgs = append(cmdArgs, "-o", shellEscape(opts.OutputFormat))
	}
	if opts.Selector != "" {
		cmdArgs = append(cmdArgs, "-l", shellEscape(opts.Selector))
	}
	if opts.FieldSelector != "" {
		cmdArgs = append(cmdArgs, "--field-selector", shellEscape(opts.FieldSelector))
	}
	if opts.IgnoreNotFound {
		cmdArgs = append(cmdArgs, "--ignore-not-found")
	}

	cmd := strings.Join(cmdArgs, " ")
	execOptions := &connector.ExecOptions{Timeout: DefaultKubectlTimeout}

	stdout, stderr, err := conn.Exec(ctx, cmd, execOptions)
	if err != nil {
		return "", errors.Wrapf(err, "kubectl get %s %s failed. Stderr: %s", resourceType, resourceName, string(stderr))
	}
	return string(stdout), nil
}

// KubectlDelete deletes a resource. Not-found is tolerated when
// IgnoreNotFound is set, both via the kubectl flag and by inspecting stderr,
// since older kubectl versions still exit non-zero in some paths.
func (r *defaultRunner) KubectlDelete(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlDeleteOptions) error {
	if conn == nil {
		return errors.New("connector cannot be nil")
	}
	if resourceType == "" || (resourceName == "" && opts.Selector == "") {
		return errors.New("resources to delete must be specified by type/name or selector for KubectlDelete")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "kubectl", "delete", shellEscape(resourceType))
	if resourceName != "" {
		cmdArgs = append(cmdArgs, shellEscape(resourceName))
	}

	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	if opts.Selector != "" && resourceName == "" {
		cmdArgs = append(cmdArgs, "-l", shellEscape(opts.Selector))
	}
	if opts.Force {
		cmdArgs = append(cmdArgs, "--force")
	}
	if opts.GracePeriod != nil {
		cmdArgs = append(cmdArgs, fmt.Sprintf("--grace-period=%d", *opts.GracePeriod))
	}
	if opts.Timeout > 0 {
		cmdArgs = append(cmdArgs, "--timeout", opts.Timeout.String())
	}
	if !opts.Wait {
		cmdArgs = append(cmdArgs, "--wait=false")
	}
	if opts.IgnoreNotFound {
		cmdArgs = append(cmdArgs, "--ignore-not-found")
	}

	cmd := strings.Join(cmdArgs, " ")
	execOptions := &connector.ExecOptions{Timeout: DefaultKubectlTimeout}
	if opts.Timeout > 0 && opts.Wait {
		execOptions.Timeout = opts.Timeout + (1 * time.Minute)
	}

	stdout, stderr, err := conn.Exec(ctx, cmd, execOptions)
	if err != nil {
		if opts.IgnoreNotFound && (strings.Contains(string(stderr), "NotFound") || strings.Contains(string(stderr), "not found")) {
			return nil
		}
		return errors.Wrapf(err, "kubectl delete failed. Stdout: %s, Stderr: %s", string(stdout), string(stderr))
	}
	return nil
}

// KubectlDescribe returns the human-readable description of a resource,
// including its recent events.
func (r *defaultRunner) KubectlDescribe(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlDescribeOptions) (string, error) {
	if conn == nil {
		return "", errors.New("connector cannot be nil")
	}
	if resourceType == "" || resourceName == "" {
		return "", errors.New("resourceType and resourceName are required for KubectlDescribe")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "kubectl", "describe", shellEscape(resourceType), shellEscape(resourceName))
	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}

	cmd := strings.Join(cmdArgs, " ")
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: DefaultKubectlTimeout})
	if err != nil {
		return "", errors.Wrapf(err, "kubectl describe %s %s failed. Stderr: %s", resourceType, resourceName, string(stderr))
	}
	return string(stdout), nil
}

// KubectlLogs returns the logs of a pod.
func (r *defaultRunner) KubectlLogs(ctx context.Context, conn connector.Connector, podName string, opts KubectlLogOptions) (string, error) {
	if conn == nil {
		return "", errors.New("connector cannot be nil")
	}
	if podName == "" {
		return "", errors.New("podName is required for KubectlLogs")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "kubectl", "logs", shellEscape(podName))
	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	if opts.Container != "" {
		cmdArgs = append(cmdArgs, "-c", shellEscape(opts.Container))
	}
	if opts.TailLines != nil {
		cmdArgs = append(cmdArgs, fmt.Sprintf("--tail=%d", *opts.TailLines))
	}

	cmd := strings.Join(cmdArgs, " ")
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: DefaultKubectlTimeout})
	if err != nil {
		return string(stdout), errors.Wrapf(err, "kubectl logs for pod %s failed. Stderr: %s", podName, string(stderr))
	}
	return string(stdout), nil
}

// KubectlPatch patches a resource in place. The default strategy is a merge
// patch; the storage reconciler uses it for the finalizer-nulling escalation
// and the secret checker for single-field corrections.
func (r *defaultRunner) KubectlPatch(ctx context.Context, conn connector.Connector, resourceType, resourceName string, opts KubectlPatchOptions) error {
	if conn == nil {
		return errors.New("connector cannot be nil")
	}
	if resourceType == "" || resourceName == "" || opts.Patch == "" {
		return errors.New("resourceType, resourceName and Patch are required for KubectlPatch")
	}

	patchType := opts.Type
	if patchType == "" {
		patchType = "merge"
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "kubectl", "patch", shellEscape(resourceType), shellEscape(resourceName))
	if opts.Namespace != "" {
		cmdArgs = append(cmdArgs, "--namespace", shellEscape(opts.Namespace))
	}
	cmdArgs = append(cmdArgs, "--type", shellEscape(patchType), "-p", shellEscape(opts.Patch))

	cmd := strings.Join(cmdArgs, " ")
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: DefaultKubectlTimeout})
	if err != nil {
		return errors.Wrapf(err, "kubectl patch %s %s failed. Stdout: %s, Stderr: %s", resourceType, resourceName, string(stdout), string(stderr))
	}
	return nil
}

// KubectlVersion returns the kubectl client version parsed as semver.
// Corresponds to `kubectl version --client -o json`.
func (r *defaultRunner) KubectlVersion(ctx context.Context, conn connector.Connector) (*semver.Version, error) {
	if conn == nil {
		return nil, errors.New("connector cannot be nil")
	}

	cmd := "kubectl version --client -o json"
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: 30 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "kubectl version failed. Stderr: %s", string(stderr))
	}

	gitVersion := gjson.GetBytes(stdout, "clientVersion.gitVersion").String()
	if gitVersion == "" {
		return nil, errors.Errorf("could not find clientVersion.gitVersion in kubectl version output: %s", string(stdout))
	}

	v, err := semver.NewVersion(strings.TrimPrefix(gitVersion, "v"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse kubectl version '%s'", gitVersion)
	}
	return v, nil
}

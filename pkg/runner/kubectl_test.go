package runner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyberedu/rangectl/pkg/connector"
)

func TestDefaultRunner_KubectlApply(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()
	ctx := context.Background()

	content := "apiVersion: v1\nkind: Secret\nmetadata:\n  name: db-credentials"

	// Apply streams the manifest over stdin.
	mockConn.StubCommand("kubectl apply -f -", "secret/db-credentials created")
	out, err := rnr.KubectlApply(ctx, mockConn, KubectlApplyOptions{FileContent: content, Namespace: "cyberange"})
	assert.NoError(t, err)
	assert.Equal(t, "secret/db-credentials created", out)
	assert.Equal(t, []byte(content), mockConn.LastExecOptions.Stdin)
	expectedCmd := fmt.Sprintf("kubectl apply -f - --namespace %s --validate=false", shellEscape("cyberange"))
	assert.Equal(t, expectedCmd, mockConn.LastExecCmd)

	// Missing content is rejected before any execution.
	_, err = rnr.KubectlApply(ctx, mockConn, KubectlApplyOptions{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "FileContent must be provided")
}

func TestDefaultRunner_KubectlApplyFailure(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.FailCommand("kubectl apply", "error validating data", 1)
	_, err := rnr.KubectlApply(context.Background(), mockConn, KubectlApplyOptions{FileContent: "kind: Pod"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "kubectl apply failed")
	assert.Contains(t, err.Error(), "error validating data")
}

func TestDefaultRunner_KubectlGet(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()
	ctx := context.Background()

	mockConn.StubCommand("kubectl get", `{"kind":"Pod","status":{"phase":"Running"}}`)
	out, err := rnr.KubectlGet(ctx, mockConn, "pods", "my-pod", KubectlGetOptions{Namespace: "cyberange", OutputFormat: "json"})
	assert.NoError(t, err)
	assert.Contains(t, out, "Running")
	expectedCmd := fmt.Sprintf("kubectl get %s %s --namespace %s -o %s",
		shellEscape("pods"), shellEscape("my-pod"), shellEscape("cyberange"), shellEscape("json"))
	assert.Equal(t, expectedCmd, mockConn.LastExecCmd)

	// Selector-based get.
	_, err = rnr.KubectlGet(ctx, mockConn, "pods", "", KubectlGetOptions{Selector: "app=postgres", IgnoreNotFound: true})
	assert.NoError(t, err)
	assert.Contains(t, mockConn.LastExecCmd, "-l 'app=postgres'")
	assert.Contains(t, mockConn.LastExecCmd, "--ignore-not-found")

	_, err = rnr.KubectlGet(ctx, mockConn, "", "", KubectlGetOptions{})
	assert.Error(t, err)
}

func TestDefaultRunner_KubectlDelete(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()
	ctx := context.Background()

	grace := 0
	err := rnr.KubectlDelete(ctx, mockConn, "pvc", "stuck-claim", KubectlDeleteOptions{
		Namespace: "cyberange", Force: true, GracePeriod: &grace, IgnoreNotFound: true})
	assert.NoError(t, err)
	assert.Contains(t, mockConn.LastExecCmd, "--force")
	assert.Contains(t, mockConn.LastExecCmd, "--grace-period=0")
	assert.Contains(t, mockConn.LastExecCmd, "--ignore-not-found")

	// A "not found" failure is swallowed when IgnoreNotFound is set.
	mockConn.FailCommand("kubectl delete 'secret'", `Error from server (NotFound): secrets "gone" not found`, 1)
	err = rnr.KubectlDelete(ctx, mockConn, "secret", "gone", KubectlDeleteOptions{IgnoreNotFound: true})
	assert.NoError(t, err)

	// The same failure surfaces without IgnoreNotFound.
	err = rnr.KubectlDelete(ctx, mockConn, "secret", "gone", KubectlDeleteOptions{})
	assert.Error(t, err)

	err = rnr.KubectlDelete(ctx, mockConn, "", "", KubectlDeleteOptions{})
	assert.Error(t, err)
}

func TestDefaultRunner_KubectlLogs(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	tail := 20
	mockConn.StubCommand("kubectl logs", "applying schema\nMIGRATION_COMPLETE\n")
	out, err := rnr.KubectlLogs(context.Background(), mockConn, "job-pod", KubectlLogOptions{Namespace: "cyberange", TailLines: &tail})
	assert.NoError(t, err)
	assert.Contains(t, out, "MIGRATION_COMPLETE")
	assert.Contains(t, mockConn.LastExecCmd, "--tail=20")
}

func TestDefaultRunner_KubectlPatch(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	patch := `{"metadata":{"finalizers":null}}`
	err := rnr.KubectlPatch(context.Background(), mockConn, "pvc", "stuck-claim", KubectlPatchOptions{Namespace: "cyberange", Patch: patch})
	assert.NoError(t, err)
	assert.Contains(t, mockConn.LastExecCmd, "kubectl patch 'pvc' 'stuck-claim'")
	assert.Contains(t, mockConn.LastExecCmd, "--type 'merge'")
	assert.Contains(t, mockConn.LastExecCmd, patch)

	err = rnr.KubectlPatch(context.Background(), mockConn, "pvc", "x", KubectlPatchOptions{})
	assert.Error(t, err)
}

func TestDefaultRunner_KubectlVersion(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.StubCommand("kubectl version", `{"clientVersion":{"gitVersion":"v1.28.3"}}`)
	v, err := rnr.KubectlVersion(context.Background(), mockConn)
	assert.NoError(t, err)
	assert.Equal(t, "1.28.3", v.String())
}

func TestDefaultRunner_KubectlVersionUnparsable(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.StubCommand("kubectl version", `{}`)
	_, err := rnr.KubectlVersion(context.Background(), mockConn)
	assert.Error(t, err)
}

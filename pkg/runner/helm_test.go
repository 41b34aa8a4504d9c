package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyberedu/rangectl/pkg/connector"
)

func TestDefaultRunner_HelmInstall(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()
	ctx := context.Background()

	err := rnr.HelmInstall(ctx, mockConn, "ingress-nginx", "ingress-nginx/ingress-nginx", HelmInstallOptions{
		Namespace:       "ingress-nginx",
		CreateNamespace: true,
		SetValues:       []string{"controller.service.type=LoadBalancer"},
		Wait:            true,
	})
	assert.NoError(t, err)
	assert.Contains(t, mockConn.LastExecCmd, "helm upgrade --install")
	assert.Contains(t, mockConn.LastExecCmd, "--create-namespace")
	assert.Contains(t, mockConn.LastExecCmd, "--set 'controller.service.type=LoadBalancer'")
	assert.Contains(t, mockConn.LastExecCmd, "--wait")

	err = rnr.HelmInstall(ctx, mockConn, "", "", HelmInstallOptions{})
	assert.Error(t, err)
}

func TestDefaultRunner_HelmUninstall_IgnoreNotFound(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.FailCommand("helm uninstall", "Error: uninstall: Release not loaded: cert-manager: release: not found", 1)
	err := rnr.HelmUninstall(context.Background(), mockConn, "cert-manager", HelmUninstallOptions{IgnoreNotFound: true})
	assert.NoError(t, err)

	err = rnr.HelmUninstall(context.Background(), mockConn, "cert-manager", HelmUninstallOptions{})
	assert.Error(t, err)
}

func TestDefaultRunner_HelmRepoAdd(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	err := rnr.HelmRepoAdd(context.Background(), mockConn, "jetstack", "https://charts.jetstack.io")
	assert.NoError(t, err)
	assert.Contains(t, mockConn.LastExecCmd, "--force-update")

	err = rnr.HelmRepoAdd(context.Background(), mockConn, "", "")
	assert.Error(t, err)
}

func TestDefaultRunner_HelmStatus(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.StubCommand("helm status", `{"info":{"status":"deployed"}}`)
	status, err := rnr.HelmStatus(context.Background(), mockConn, "ingress-nginx", HelmStatusOptions{Namespace: "ingress-nginx"})
	assert.NoError(t, err)
	assert.Equal(t, "deployed", status)
}

func TestDefaultRunner_HelmStatus_MissingRelease(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.FailCommand("helm status", "Error: release: not found", 1)
	status, err := rnr.HelmStatus(context.Background(), mockConn, "missing", HelmStatusOptions{})
	assert.NoError(t, err)
	assert.Empty(t, status)
}

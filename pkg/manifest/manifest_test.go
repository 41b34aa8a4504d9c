package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestSecret(t *testing.T) {
	desc, err := Secret("cyberange-db-credentials", "cyberange", map[string][]byte{
		"postgres-password": []byte("s3cret"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Secret", desc.Kind)
	assert.Equal(t, "cyberange", desc.Namespace)
	// []byte data is base64 encoded by serialization.
	assert.Contains(t, desc.RenderedManifest, "postgres-password: czNjcmV0")
	assert.Contains(t, desc.RenderedManifest, "app.kubernetes.io/managed-by: rangectl")
}

func TestPersistentVolumeClaim_ClassNameSemantics(t *testing.T) {
	// nil className: field omitted, cluster default applies.
	desc, err := PersistentVolumeClaim("data", "cyberange", nil, "2Gi")
	require.NoError(t, err)
	assert.NotContains(t, desc.RenderedManifest, "storageClassName")

	// empty className: dynamic provisioning disabled for static binding.
	empty := ""
	desc, err = PersistentVolumeClaim("data", "cyberange", &empty, "2Gi")
	require.NoError(t, err)
	assert.Contains(t, desc.RenderedManifest, `storageClassName: ""`)
}

func TestHostPathVolume_PreBound(t *testing.T) {
	desc, err := HostPathVolume("pg-pv", "/var/lib/cyberange/pg", "2Gi", "pg-data", "cyberange")
	require.NoError(t, err)
	assert.Contains(t, desc.RenderedManifest, "claimRef:")
	assert.Contains(t, desc.RenderedManifest, "path: /var/lib/cyberange/pg")

	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(desc.RenderedManifest), &parsed))
}

func TestJobPod_Deadline(t *testing.T) {
	desc, err := JobPod(JobPodOptions{
		Name:          "rangectl-job-abc",
		Namespace:     "cyberange",
		Image:         "postgres:15-alpine",
		ConfigMapName: "rangectl-job-abc-files",
		ScriptKey:     "migrate.sh",
		EnvFromSecret: "cyberange-db-credentials",
	})
	require.NoError(t, err)
	assert.Contains(t, desc.RenderedManifest, "activeDeadlineSeconds: 300")
	assert.Contains(t, desc.RenderedManifest, "restartPolicy: Never")
	assert.Contains(t, desc.RenderedManifest, "/scripts/migrate.sh")
}

func TestPostgresDeployment(t *testing.T) {
	desc, err := PostgresDeployment(PostgresOptions{
		Name:       "cyberange-postgres",
		Namespace:  "cyberange",
		Image:      "postgres:15-alpine",
		SecretName: "cyberange-db-credentials",
		ClaimName:  "cyberange-postgres-data",
		Database:   "edu",
		User:       "admin",
	})
	require.NoError(t, err)
	assert.Contains(t, desc.RenderedManifest, "secretKeyRef")
	assert.Contains(t, desc.RenderedManifest, "pg_isready")
	// The password never appears inline.
	assert.NotContains(t, strings.ToLower(desc.RenderedManifest), "password:")
}

func TestClusterIssuer_StagingServer(t *testing.T) {
	desc, err := ClusterIssuer("cyberange-acme", "ops@example.edu", true)
	require.NoError(t, err)
	assert.Contains(t, desc.RenderedManifest, "acme-staging-v02")

	desc, err = ClusterIssuer("cyberange-acme", "ops@example.edu", false)
	require.NoError(t, err)
	assert.Contains(t, desc.RenderedManifest, "acme-v02.api.letsencrypt.org")
}

func TestCertificate_DNSNames(t *testing.T) {
	desc, err := Certificate("cyberange-wildcard", "cyberange", "cyberange-acme",
		[]string{"labs.example.edu", "*.labs.example.edu"})
	require.NoError(t, err)
	// Wildcard names must be quoted or the YAML parser reads them as aliases.
	assert.Contains(t, desc.RenderedManifest, `- "labs.example.edu"`)
	assert.Contains(t, desc.RenderedManifest, `- "*.labs.example.edu"`)
}

func TestRender_MissingKeyFails(t *testing.T) {
	_, err := Render("{{ .Missing }}", map[string]interface{}{})
	assert.Error(t, err)
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberedu/rangectl/pkg/applier"
	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
)

func newTestReconciler(conn *connector.MockConnector) *Reconciler {
	log, _ := logger.NewLogger(logger.Options{ConsoleLevel: logger.ErrorLevel})
	rnr := runner.NewDefaultRunner()
	r := NewReconciler(rnr, conn, applier.New(rnr, conn, log), log, "node-1", "/var/lib/cyberange")
	r.ProbeTimeout = 1 * time.Second
	r.HelperTimeout = 1 * time.Second
	r.PollInterval = 1 * time.Second
	return r
}

func TestDiscoverStorageClasses_DefaultFirst(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'storageclasses'", `{
		"kind": "List",
		"items": [
			{"metadata": {"name": "slow-hdd"}, "provisioner": "example.com/hdd"},
			{"metadata": {"name": "local-path", "annotations": {"storageclass.kubernetes.io/is-default-class": "true"}}, "provisioner": "rancher.io/local-path"}
		]
	}`)

	classes, err := r.DiscoverStorageClasses(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "local-path", classes[0].Name)
	assert.True(t, classes[0].IsDefault)
	assert.Equal(t, "slow-hdd", classes[1].Name)
}

func TestDiscoverStorageClasses_NoneInstalled(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'storageclasses'", `{"kind": "List", "items": []}`)

	classes, err := r.DiscoverStorageClasses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestProvisionTest_Bound(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'pvc'", `{"kind": "PersistentVolumeClaim", "status": {"phase": "Bound"}}`)

	outcome, err := r.ProvisionTest(context.Background(), "cyberange", "local-path")
	require.NoError(t, err)
	assert.Equal(t, ProbeBound, outcome)
	// The scratch claim is removed again regardless of outcome.
	assert.Equal(t, 1, conn.CommandCount("delete 'pvc'"))
}

func TestProvisionTest_ProvisioningFailedEvent(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'pvc'", `{"kind": "PersistentVolumeClaim", "status": {"phase": "Pending"}}`)
	conn.StubCommand("get 'events'", `{
		"kind": "List",
		"items": [{"reason": "ProvisioningFailed", "message": "storage class lost its provisioner"}]
	}`)

	outcome, err := r.ProvisionTest(context.Background(), "cyberange", "dead-class")
	require.NoError(t, err)
	assert.Equal(t, ProbeFailed, outcome)
	assert.Equal(t, 1, conn.CommandCount("delete 'pvc'"))
}

// The only available class fails its probe, so the decision falls back to a
// bootstrapped host-local directory pinned to the node.
func TestDecide_FallbackToHostPath(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'pvc'", `{"kind": "PersistentVolumeClaim", "status": {"phase": "Pending"}}`)
	conn.StubCommand("get 'events'", `{
		"kind": "List",
		"items": [{"reason": "ProvisioningFailed", "message": "no volume plugin matched"}]
	}`)
	conn.StubCommand("get 'pods'", `{"kind": "Pod", "status": {"phase": "Succeeded"}}`)

	decision, err := r.Decide(context.Background(), "cyberange", []StorageClass{{Name: "dead-class"}})
	require.NoError(t, err)
	assert.True(t, decision.FallbackToHostPath)
	assert.Equal(t, "/var/lib/cyberange/postgres", decision.HostPath)
	assert.Empty(t, decision.StorageClassName)

	// Helper pod ran against the fallback directory and was cleaned up.
	assert.GreaterOrEqual(t, conn.CommandCount("kubectl apply"), 2)
	assert.Equal(t, 1, conn.CommandCount("delete 'pod'"))
}

func TestDecide_FirstWorkingClassWins(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'pvc'", `{"kind": "PersistentVolumeClaim", "status": {"phase": "Bound"}}`)

	decision, err := r.Decide(context.Background(), "cyberange", []StorageClass{
		{Name: "local-path", IsDefault: true},
		{Name: "slow-hdd"},
	})
	require.NoError(t, err)
	assert.Equal(t, "local-path", decision.StorageClassName)
	assert.False(t, decision.FallbackToHostPath)
}

func TestCleanupStuck_EscalatesToFinalizerPatch(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'pods'", `{
		"kind": "List",
		"items": [{
			"metadata": {"name": "postgres-0"},
			"spec": {"volumes": [{"persistentVolumeClaim": {"claimName": "cyberange-postgres-data"}}]}
		}]
	}`)
	// First claim delete hangs on a finalizer, the retry after patching goes
	// through.
	conn.FailCommandOnce("delete 'pvc'", "timed out waiting for the condition", 1)
	conn.StubCommand("get 'pv'", `{
		"kind": "List",
		"items": [{
			"metadata": {"name": "pv-abc"},
			"spec": {"claimRef": {"name": "cyberange-postgres-data", "namespace": "cyberange"}},
			"status": {"phase": "Released"}
		}]
	}`)

	err := r.CleanupStuck(context.Background(), "cyberange", "cyberange-postgres-data")
	require.NoError(t, err)

	assert.Equal(t, 1, conn.CommandCount("delete 'pod'"))
	assert.Equal(t, 2, conn.CommandCount("delete 'pvc'"))
	assert.Equal(t, 1, conn.CommandCount(`"finalizers":null`))
	assert.Equal(t, 1, conn.CommandCount("delete 'pv'"))
}

func TestCleanupStuck_NothingPinned(t *testing.T) {
	conn := connector.NewMockConnector()
	r := newTestReconciler(conn)

	conn.StubCommand("get 'pods'", `{"kind": "List", "items": []}`)
	conn.StubCommand("get 'pv'", `{"kind": "List", "items": []}`)

	err := r.CleanupStuck(context.Background(), "cyberange", "cyberange-postgres-data")
	require.NoError(t, err)
	assert.Equal(t, 1, conn.CommandCount("delete 'pvc'"))
	assert.Equal(t, 0, conn.CommandCount(`"finalizers"`))
}

package applier

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/manifest"
	"github.com/cyberedu/rangectl/pkg/runner"
)

func newTestApplier(conn *connector.MockConnector) *Applier {
	log, _ := logger.NewLogger(logger.Options{ConsoleLevel: logger.ErrorLevel})
	return New(runner.NewDefaultRunner(), conn, log)
}

func TestApplier_Apply(t *testing.T) {
	conn := connector.NewMockConnector()
	a := newTestApplier(conn)

	conn.StubCommand("kubectl apply", "secret/db created")
	ref, err := a.Apply(context.Background(), manifest.ResourceDescriptor{
		Kind: "Secret", Name: "db", Namespace: "cyberange", RenderedManifest: "kind: Secret",
	})
	require.NoError(t, err)
	assert.Equal(t, ResourceRef{Kind: "Secret", Name: "db", Namespace: "cyberange"}, ref)
}

func TestApplier_ApplyIsIdempotent(t *testing.T) {
	conn := connector.NewMockConnector()
	a := newTestApplier(conn)

	desc := manifest.ResourceDescriptor{Kind: "Secret", Name: "db", Namespace: "cyberange", RenderedManifest: "kind: Secret"}

	conn.StubCommandOnce("kubectl apply", "secret/db created")
	conn.StubCommand("kubectl apply", "secret/db unchanged")

	_, err := a.Apply(context.Background(), desc)
	require.NoError(t, err)
	// Reapplying the unchanged manifest is a no-op, not an error.
	_, err = a.Apply(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.CommandCount("kubectl apply"))
}

func TestApplier_RemoveToleratesNotFound(t *testing.T) {
	conn := connector.NewMockConnector()
	a := newTestApplier(conn)

	conn.FailCommand("kubectl delete", `Error from server (NotFound): secrets "db" not found`, 1)
	err := a.Remove(context.Background(), "secret", "db", "cyberange")
	assert.NoError(t, err)
}

func TestApplier_WaitForPodReady(t *testing.T) {
	conn := connector.NewMockConnector()
	a := newTestApplier(conn)

	pending := `{"kind":"List","items":[{"status":{"phase":"Pending"}}]}`
	ready := `{"kind":"List","items":[{"status":{"phase":"Running","conditions":[{"type":"Ready","status":"True"}]}}]}`
	conn.StubCommandOnce("kubectl get", pending)
	conn.StubCommand("kubectl get", ready)

	err := a.WaitFor(context.Background(), WaitOptions{
		Kind:            "pods",
		Selector:        "app=cyberange-postgres",
		Namespace:       "cyberange",
		Predicate:       PodReady,
		TimeoutSeconds:  10,
		IntervalSeconds: 1,
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, conn.CommandCount("kubectl get"), 2)
}

func TestApplier_WaitForTimeout(t *testing.T) {
	conn := connector.NewMockConnector()
	a := newTestApplier(conn)

	conn.StubCommand("kubectl get", `{"kind":"List","items":[{"status":{"phase":"Pending"}}]}`)
	err := a.WaitFor(context.Background(), WaitOptions{
		Kind:            "pvc",
		Name:            "cyberange-postgres-data",
		Namespace:       "cyberange",
		Predicate:       PVCBound,
		TimeoutSeconds:  1,
		IntervalSeconds: 1,
	})
	assert.True(t, errors.Is(err, ErrWaitTimeout))
}

func TestApplier_WaitForEmptyListNotMet(t *testing.T) {
	conn := connector.NewMockConnector()
	a := newTestApplier(conn)

	conn.StubCommand("kubectl get", `{"kind":"List","items":[]}`)
	err := a.WaitFor(context.Background(), WaitOptions{
		Kind:            "pods",
		Selector:        "app=x",
		Predicate:       PodReady,
		TimeoutSeconds:  1,
		IntervalSeconds: 1,
	})
	assert.True(t, errors.Is(err, ErrWaitTimeout))
}

func TestPredicates(t *testing.T) {
	assert.True(t, PVCBound(gjson.Parse(`{"status":{"phase":"Bound"}}`)))
	assert.False(t, PVCBound(gjson.Parse(`{"status":{"phase":"Pending"}}`)))
	assert.True(t, PodSucceeded(gjson.Parse(`{"status":{"phase":"Succeeded"}}`)))
	assert.False(t, PodReady(gjson.Parse(`{"status":{"phase":"Running"}}`)))
}

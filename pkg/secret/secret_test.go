package secret

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
)

func newTestChecker(conn *connector.MockConnector) *ConsistencyChecker {
	log, _ := logger.NewLogger(logger.Options{ConsoleLevel: logger.ErrorLevel})
	return NewConsistencyChecker(runner.NewDefaultRunner(), conn, log)
}

func secretJSON(password, databaseURL string) string {
	return fmt.Sprintf(`{
		"kind": "Secret",
		"data": {
			"postgres-password": %q,
			"database-url": %q
		}
	}`,
		base64.StdEncoding.EncodeToString([]byte(password)),
		base64.StdEncoding.EncodeToString([]byte(databaseURL)))
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(16)
	require.NoError(t, err)
	assert.Len(t, pw, 16)
	for _, c := range pw {
		assert.Contains(t, passwordAlphabet, string(c))
	}

	other, err := GeneratePassword(16)
	require.NoError(t, err)
	assert.NotEqual(t, pw, other)
}

func TestGeneratePassword_DefaultLength(t *testing.T) {
	pw, err := GeneratePassword(0)
	require.NoError(t, err)
	assert.Len(t, pw, 16)
}

func TestVerify_Consistent(t *testing.T) {
	conn := connector.NewMockConnector()
	c := newTestChecker(conn)

	url := DatabaseURL("admin", "s3cret", "cyberange-postgres", 5432, "edu")
	conn.StubCommand("get 'secret'", secretJSON("s3cret", url))

	report, err := c.Verify(context.Background(), "cyberange", "cyberange-db-credentials")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.False(t, report.Repaired)
	assert.Equal(t, 0, conn.CommandCount("kubectl patch"))
}

func TestVerify_DriftedURLIsRepaired(t *testing.T) {
	conn := connector.NewMockConnector()
	c := newTestChecker(conn)

	stale := DatabaseURL("admin", "old-password", "cyberange-postgres", 5432, "edu")
	conn.StubCommand("get 'secret'", secretJSON("s3cret", stale))

	report, err := c.Verify(context.Background(), "cyberange", "cyberange-db-credentials")
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.True(t, report.Repaired)

	// The merge patch carries only the rebuilt URL, re-encoded; the raw
	// password key is authoritative and untouched.
	repaired := DatabaseURL("admin", "s3cret", "cyberange-postgres", 5432, "edu")
	encoded := base64.StdEncoding.EncodeToString([]byte(repaired))
	assert.Equal(t, 1, conn.CommandCount("kubectl patch"))
	assert.Contains(t, conn.LastExecCmd, encoded)
	assert.NotContains(t, conn.LastExecCmd, "postgres-password")
}

func TestVerify_MissingKey(t *testing.T) {
	conn := connector.NewMockConnector()
	c := newTestChecker(conn)

	conn.StubCommand("get 'secret'", `{"kind": "Secret", "data": {}}`)

	_, err := c.Verify(context.Background(), "cyberange", "cyberange-db-credentials")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres-password")
}

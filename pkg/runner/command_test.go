package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyberedu/rangectl/pkg/connector"
)

func TestDefaultRunner_Run(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	mockConn.StubCommand("uname", "Linux")
	out, err := rnr.Run(context.Background(), mockConn, "uname")
	assert.NoError(t, err)
	assert.Equal(t, "Linux", out)

	_, err = rnr.Run(context.Background(), nil, "uname")
	assert.Error(t, err)
}

func TestDefaultRunner_Check(t *testing.T) {
	mockConn := connector.NewMockConnector()
	rnr := NewDefaultRunner()

	ok, err := rnr.Check(context.Background(), mockConn, "true")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Non-zero exit is a failed check, not an operational error.
	mockConn.FailCommand("test -d", "", 1)
	ok, err = rnr.Check(context.Background(), mockConn, "test -d /missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

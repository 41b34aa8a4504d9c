package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalConnector_ExecSuccess(t *testing.T) {
	l := NewLocalConnector()
	stdout, stderr, err := l.Exec(context.Background(), "echo hello", nil)
	assert.NoError(t, err)
	assert.Equal(t, "hello\n", string(stdout))
	assert.Empty(t, string(stderr))
}

func TestLocalConnector_ExecNonZeroExit(t *testing.T) {
	l := NewLocalConnector()
	_, _, err := l.Exec(context.Background(), "exit 3", nil)
	assert.Error(t, err)

	var cmdErr *CommandError
	assert.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "exit 3", cmdErr.Cmd)
}

func TestLocalConnector_ExecStderrCaptured(t *testing.T) {
	l := NewLocalConnector()
	_, stderr, err := l.Exec(context.Background(), "echo oops >&2; exit 1", nil)
	assert.Error(t, err)
	assert.Contains(t, string(stderr), "oops")

	var cmdErr *CommandError
	assert.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, cmdErr.Stderr, "oops")
}

func TestLocalConnector_ExecStdin(t *testing.T) {
	l := NewLocalConnector()
	stdout, _, err := l.Exec(context.Background(), "cat", &ExecOptions{Stdin: []byte("piped data")})
	assert.NoError(t, err)
	assert.Equal(t, "piped data", string(stdout))
}

func TestLocalConnector_ExecTimeout(t *testing.T) {
	l := NewLocalConnector()
	start := time.Now()
	_, _, err := l.Exec(context.Background(), "sleep 10", &ExecOptions{Timeout: 100 * time.Millisecond})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLocalConnector_ExecTimeoutKillsDescendants(t *testing.T) {
	l := NewLocalConnector()
	start := time.Now()
	// The background child inherits the output pipes; the timeout must still
	// unblock Exec instead of waiting for the grandchild's full runtime.
	_, _, err := l.Exec(context.Background(), "sleep 10 & sleep 10", &ExecOptions{Timeout: 100 * time.Millisecond})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLocalConnector_ExecRetries(t *testing.T) {
	l := NewLocalConnector()
	// Every attempt fails the same way; verify the retry loop terminates.
	_, _, err := l.Exec(context.Background(), "false", &ExecOptions{Retries: 2, RetryDelay: 10 * time.Millisecond})
	assert.Error(t, err)
}

func TestLocalConnector_LookPath(t *testing.T) {
	l := NewLocalConnector()
	path, err := l.LookPath(context.Background(), "sh")
	assert.NoError(t, err)
	assert.NotEmpty(t, path)

	_, err = l.LookPath(context.Background(), "definitely-not-a-real-tool-xyz")
	assert.Error(t, err)
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cyberedu/rangectl/pkg/connector"
)

func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// Run executes a command and returns combined stdout/stderr and error.
func (r *defaultRunner) Run(ctx context.Context, conn connector.Connector, cmd string) (string, error) {
	if conn == nil {
		return "", fmt.Errorf("connector cannot be nil")
	}
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{})
	output := string(stdout)
	if len(stderr) > 0 {
		if len(output) > 0 {
			output += "\n"
		}
		output += string(stderr)
	}

	if err != nil {
		return output, err
	}
	return output, nil
}

// Check executes a command and returns true if it exits with 0, false otherwise.
func (r *defaultRunner) Check(ctx context.Context, conn connector.Connector, cmd string) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("connector cannot be nil")
	}
	_, _, err := conn.Exec(ctx, cmd, &connector.ExecOptions{})
	if err == nil {
		return true, nil
	}
	var cmdError *connector.CommandError
	if errors.As(err, &cmdError) {
		// Non-zero exit means the command ran but the check failed; that is
		// not an operational error of Check itself.
		return false, nil
	}
	return false, err
}

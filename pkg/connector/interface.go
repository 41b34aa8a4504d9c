package connector

import (
	"context"
)

// Connector abstracts execution of external tools. Every interaction with
// the cluster control plane (kubectl, helm) and with DNS resolution tools
// (dig, nslookup) is funneled through this single collaborator so that
// failures are uniformly represented as exit code + stdout + stderr.
type Connector interface {
	// Exec runs a shell command and returns its stdout and stderr.
	// A non-zero exit status is reported as a *CommandError.
	Exec(ctx context.Context, cmd string, opts *ExecOptions) (stdout, stderr []byte, err error)
	// LookPath resolves a tool name to an absolute path, used to detect
	// missing prerequisites before any cluster mutation happens.
	LookPath(ctx context.Context, file string) (string, error)
	Close() error
}

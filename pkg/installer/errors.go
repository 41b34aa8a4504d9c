package installer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/connector"
)

// ToolNotFoundError indicates a required external binary is missing from
// PATH. Raised before any status transition, so the component stays in its
// previous state.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// VersionTooOldError indicates a tool is installed but below the supported
// floor.
type VersionTooOldError struct {
	Tool    string
	Found   string
	MinWant string
}

func (e *VersionTooOldError) Error() string {
	return fmt.Sprintf("%s %s is older than the supported minimum %s", e.Tool, e.Found, e.MinWant)
}

// ErrTransientCluster marks failures that look like temporary apiserver or
// network trouble. A retry of the whole component is the expected remedy.
var ErrTransientCluster = errors.New("transient cluster error")

var transientMarkers = []string{
	"connection refused",
	"i/o timeout",
	"TLS handshake timeout",
	"Unable to connect to the server",
	"etcdserver: request timed out",
	"the server is currently unable to handle the request",
}

// classify wraps command failures that carry a transient signature so
// callers can distinguish "try again" from genuine failures.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *connector.CommandError
	if errors.As(err, &cmdErr) {
		combined := cmdErr.Stderr + " " + cmdErr.Stdout
		for _, marker := range transientMarkers {
			if strings.Contains(combined, marker) {
				return errors.Wrapf(ErrTransientCluster, "%v", err)
			}
		}
	}
	return err
}

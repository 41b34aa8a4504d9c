// Package state owns the per-component installation status record and the
// completed-steps set. Status values change only through validated
// transitions; the store is process-wide and is never written to the
// cluster.
package state

import (
	"time"

	"github.com/pkg/errors"
)

// StepStatus is the install status of one component.
type StepStatus string

const (
	StatusNotStarted StepStatus = "NotStarted"
	StatusInstalling StepStatus = "Installing"
	StatusInstalled  StepStatus = "Installed"
	StatusError      StepStatus = "Error"
	StatusDeleting   StepStatus = "Deleting"
)

// InstallationStep records the durable install state of one component.
type InstallationStep struct {
	Key         string
	Status      StepStatus
	LastError   string
	CompletedAt *time.Time
}

// ErrInvalidTransition is returned when a status change violates the state
// machine.
var ErrInvalidTransition = errors.New("invalid installation step transition")

// validTransitions is the full edge set of the state machine:
//
//	NotStarted -> Installing -> {Installed, Error}
//	Installed  -> Deleting   -> NotStarted
//	Error      -> Installing        (explicit retry)
var validTransitions = map[StepStatus][]StepStatus{
	StatusNotStarted: {StatusInstalling},
	StatusInstalling: {StatusInstalled, StatusError},
	StatusInstalled:  {StatusDeleting},
	StatusDeleting:   {StatusNotStarted},
	StatusError:      {StatusInstalling},
}

// ValidTransition reports whether from -> to is a legal edge.
func ValidTransition(from, to StepStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

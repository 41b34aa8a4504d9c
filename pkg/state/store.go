package state

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/cache"
)

const (
	stepKeyPrefix      = "step:"
	completedKeyPrefix = "completed:"
)

// Store is the process-wide record of installation steps. Entries survive
// dashboard navigation within a session but are deliberately not persisted
// beyond the process; a fresh process re-derives cluster truth by retrying,
// which converges because every step is idempotent.
type Store struct {
	mu      sync.Mutex
	backing cache.Cache
}

// NewStore builds a Store over the given backing cache. Entries never expire.
func NewStore() *Store {
	return &Store{backing: cache.New(cache.NoExpiration)}
}

// Get returns the step record for key, defaulting to NotStarted.
func (s *Store) Get(key string) InstallationStep {
	if v, ok := s.backing.Get(stepKeyPrefix + key); ok {
		return v.(InstallationStep)
	}
	return InstallationStep{Key: key, Status: StatusNotStarted}
}

// Transition moves the step to the target status, rejecting illegal edges.
func (s *Store) Transition(key string, to StepStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.Get(key)
	if !ValidTransition(step.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s: %s -> %s", key, step.Status, to)
	}

	step.Status = to
	switch to {
	case StatusInstalled:
		now := time.Now()
		step.CompletedAt = &now
		step.LastError = ""
	case StatusInstalling:
		step.LastError = ""
	case StatusNotStarted:
		step.CompletedAt = nil
		step.LastError = ""
	}
	s.backing.Set(stepKeyPrefix+key, step)
	return nil
}

// Fail moves the step to Error recording the cause.
func (s *Store) Fail(key string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.Get(key)
	if !ValidTransition(step.Status, StatusError) {
		return errors.Wrapf(ErrInvalidTransition, "%s: %s -> %s", key, step.Status, StatusError)
	}
	step.Status = StatusError
	if cause != nil {
		step.LastError = cause.Error()
	}
	s.backing.Set(stepKeyPrefix+key, step)
	return nil
}

// ForceReset unconditionally returns the step to NotStarted. Reserved for
// forceCancel, whose correctness must not depend on the current status.
func (s *Store) ForceReset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backing.Set(stepKeyPrefix+key, InstallationStep{Key: key, Status: StatusNotStarted})
}

// MarkCompleted adds a step key to the completed-steps set.
func (s *Store) MarkCompleted(stepKey string) {
	s.backing.Set(completedKeyPrefix+stepKey, true)
}

// ClearCompleted removes a step key from the completed-steps set.
func (s *Store) ClearCompleted(stepKey string) {
	s.backing.Delete(completedKeyPrefix + stepKey)
}

// IsCompleted reports membership in the completed-steps set.
func (s *Store) IsCompleted(stepKey string) bool {
	return s.backing.Has(completedKeyPrefix + stepKey)
}

// CompletedSteps returns the sorted completed-steps set.
func (s *Store) CompletedSteps() []string {
	var steps []string
	s.backing.Range(func(key string, _ interface{}) bool {
		if len(key) > len(completedKeyPrefix) && key[:len(completedKeyPrefix)] == completedKeyPrefix {
			steps = append(steps, key[len(completedKeyPrefix):])
		}
		return true
	})
	sort.Strings(steps)
	return steps
}

// Steps returns all known step records sorted by key.
func (s *Store) Steps() []InstallationStep {
	var steps []InstallationStep
	s.backing.Range(func(key string, value interface{}) bool {
		if len(key) > len(stepKeyPrefix) && key[:len(stepKeyPrefix)] == stepKeyPrefix {
			steps = append(steps, value.(InstallationStep))
		}
		return true
	})
	sort.Slice(steps, func(i, j int) bool { return steps[i].Key < steps[j].Key })
	return steps
}

package engine

import (
	"fmt"
	"strings"
)

// DependencyNotSatisfiedError rejects a transition whose predecessor is not Complete.
// It names the blocking predecessor so callers can surface an actionable message.
type DependencyNotSatisfiedError struct {
	ActivityID      string
	PredecessorID   string
	PredecessorName string
}

func (e DependencyNotSatisfiedError) Error() string {
	return fmt.Sprintf("cannot progress: predecessor %q must be Complete first", e.PredecessorName)
}

// DependencyCycleError rejects an activity whose depends_on edge would close a cycle.
type DependencyCycleError struct {
	Path []string
}

func (e DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// InvalidTransitionError rejects a status change that skips or reverses the
// NotStarted -> Active -> Complete progression.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid activity status transition %s -> %s", e.From, e.To)
}

package api

import "github.com/kode4food/stride/internal/util"

// StatusTransitions maps statuses to their set of valid next statuses
type StatusTransitions map[Status]util.Set[Status]

// Transitions is the lifecycle graph for workflow instances. Completed is
// terminal; errored instances may resume
var Transitions = StatusTransitions{
	StatusDraft:      util.SetOf(StatusInProgress),
	StatusInProgress: util.SetOf(StatusCompleted, StatusError),
	StatusError:      util.SetOf(StatusInProgress),
	StatusCompleted:  util.Set[Status]{},
}

// CanTransition returns whether transition from one status to another is
// valid. Same-status writes are always permitted
func (st StatusTransitions) CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := st[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the status has no valid transitions
func (st StatusTransitions) IsTerminal(s Status) bool {
	allowed, ok := st[s]
	return ok && allowed.IsEmpty()
}

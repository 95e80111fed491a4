package api

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

type (
	// Status represents the lifecycle state of a workflow instance
	Status string

	// StepNumber identifies a step by its 1-based position in the catalog
	StepNumber int

	// SubmissionID is the stable external identifier of a submission
	SubmissionID string

	// WorkflowInstance contains the complete state of one multi-step
	// submission. Instances are treated as immutable; mutation goes through
	// the copy-on-write Set* methods
	WorkflowInstance struct {
		SubmissionID   SubmissionID            `json:"submission_id"`
		CurrentStep    StepNumber              `json:"current_step"`
		CompletedSteps StepSet                 `json:"completed_steps"`
		StepData       map[StepNumber]StepData `json:"step_data,omitempty"`
		Status         Status                  `json:"status"`
		LastUpdated    time.Time               `json:"last_updated,omitzero"`
	}

	// InitialData carries the optional seed values applied by an initialize
	// operation. Zero-valued fields are left untouched
	InitialData struct {
		CurrentStep StepNumber              `json:"current_step,omitempty"`
		Status      Status                  `json:"status,omitempty"`
		StepData    map[StepNumber]StepData `json:"step_data,omitempty"`
	}
)

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var (
	ErrStepOutOfRange    = errors.New("step number out of range")
	ErrCompletedMismatch = errors.New(
		"completed status requires every step completed",
	)
	ErrDraftNotPristine = errors.New(
		"draft status requires no progress",
	)
)

// NewDraft returns the default instance observed for a submission before it
// has been initialized. Reads of unknown submissions yield this value rather
// than an error
func NewDraft(id SubmissionID) *WorkflowInstance {
	return &WorkflowInstance{
		SubmissionID:   id,
		CurrentStep:    1,
		CompletedSteps: StepSet{},
		StepData:       map[StepNumber]StepData{},
		Status:         StatusDraft,
	}
}

// IsDraft reports whether the instance is still the pre-initialization
// default
func (w *WorkflowInstance) IsDraft() bool {
	return w.Status == StatusDraft
}

// SetStatus returns a new WorkflowInstance with the updated status
func (w *WorkflowInstance) SetStatus(s Status) *WorkflowInstance {
	res := *w
	res.Status = s
	return &res
}

// SetCurrentStep returns a new WorkflowInstance positioned at the step
func (w *WorkflowInstance) SetCurrentStep(n StepNumber) *WorkflowInstance {
	res := *w
	res.CurrentStep = n
	return &res
}

// SetStepData returns a new WorkflowInstance with the payload for a step
// replaced. Payloads for other steps are unaffected
func (w *WorkflowInstance) SetStepData(
	n StepNumber, data StepData,
) *WorkflowInstance {
	res := *w
	res.StepData = maps.Clone(w.StepData)
	if res.StepData == nil {
		res.StepData = map[StepNumber]StepData{}
	}
	res.StepData[n] = data
	return &res
}

// AddCompletedStep returns a new WorkflowInstance with the step marked
// complete. Completion is a set union, so repeating it is a no-op
func (w *WorkflowInstance) AddCompletedStep(n StepNumber) *WorkflowInstance {
	res := *w
	res.CompletedSteps = w.CompletedSteps.Clone()
	res.CompletedSteps.Add(n)
	return &res
}

// CompleteAll returns a new WorkflowInstance with every step in 1..total
// marked complete and the status set to completed. Completing the workflow
// fast-forwards past steps that were never individually completed
func (w *WorkflowInstance) CompleteAll(total int) *WorkflowInstance {
	res := *w
	res.CompletedSteps = make(StepSet, total)
	for n := StepNumber(1); n <= StepNumber(total); n++ {
		res.CompletedSteps.Add(n)
	}
	res.Status = StatusCompleted
	return &res
}

// SetLastUpdated returns a new WorkflowInstance with the update time set
func (w *WorkflowInstance) SetLastUpdated(t time.Time) *WorkflowInstance {
	res := *w
	res.LastUpdated = t
	return &res
}

// MergeInitial returns a new WorkflowInstance with the initial data applied
// as a shallow merge. Completed steps are never reset; step payloads are
// merged per step rather than replaced wholesale
func (w *WorkflowInstance) MergeInitial(init *InitialData) *WorkflowInstance {
	res := *w
	if init == nil {
		return &res
	}
	if init.CurrentStep != 0 {
		res.CurrentStep = init.CurrentStep
	}
	if init.Status != "" {
		res.Status = init.Status
	}
	if len(init.StepData) > 0 {
		res.StepData = maps.Clone(w.StepData)
		if res.StepData == nil {
			res.StepData = map[StepNumber]StepData{}
		}
		for n, data := range init.StepData {
			res.StepData[n] = data
		}
	}
	return &res
}

// Validate checks the structural invariants of the instance against a
// catalog of the given size
func (w *WorkflowInstance) Validate(total int) error {
	if w.CurrentStep < 1 || w.CurrentStep > StepNumber(total) {
		return fmt.Errorf("%w: current step %d of %d",
			ErrStepOutOfRange, w.CurrentStep, total)
	}
	// Completed steps may lack a payload: step completion accepts an
	// optional payload, and a workflow completion fast-forwards past steps
	// that never produced one
	for n := range w.CompletedSteps {
		if n < 1 || n > StepNumber(total) {
			return fmt.Errorf("%w: completed step %d of %d",
				ErrStepOutOfRange, n, total)
		}
	}
	switch w.Status {
	case StatusCompleted:
		if w.CompletedSteps.Len() != total {
			return fmt.Errorf("%w: %d of %d",
				ErrCompletedMismatch, w.CompletedSteps.Len(), total)
		}
	case StatusDraft:
		if !w.CompletedSteps.IsEmpty() || w.CurrentStep != 1 {
			return ErrDraftNotPristine
		}
	}
	return nil
}

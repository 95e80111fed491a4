package controller

import (
	"context"
	"fmt"

	"github.com/kode4food/stride/pkg/api"
)

// Initialize creates the instance if the submission is still a draft, or
// shallow-merges the initial data over an existing one without resetting
// progress. Idempotent: repeating it merges defaults rather than discarding
// data
func (c *Controller) Initialize(
	ctx context.Context, id api.SubmissionID, init *api.InitialData,
) error {
	transform := func(w *api.WorkflowInstance) *api.WorkflowInstance {
		if w.IsDraft() {
			w = w.SetStatus(api.StatusInProgress)
		}
		return w.MergeInitial(init)
	}
	return c.apply(ctx, OpInitialize, id, transform,
		func(ctx context.Context) (*api.WorkflowInstance, error) {
			return c.remote.Initialize(ctx, id, init)
		},
	)
}

// UpdateStepData replaces the payload for a step. Current step, completed
// steps, and status are unaffected
func (c *Controller) UpdateStepData(
	ctx context.Context, id api.SubmissionID, step api.StepNumber,
	data api.StepData,
) error {
	if err := c.checkStep(OpUpdateStepData, id, step); err != nil {
		return err
	}
	transform := func(w *api.WorkflowInstance) *api.WorkflowInstance {
		return w.SetStepData(step, data)
	}
	return c.apply(ctx, OpUpdateStepData, id, transform,
		func(ctx context.Context) (*api.WorkflowInstance, error) {
			return nil, c.remote.UpdateStep(ctx, id, step, data)
		},
	)
}

// NavigateToStep moves the current step. The transform is unconditional;
// gating is a caller-side policy checked through CanNavigateToStep
func (c *Controller) NavigateToStep(
	ctx context.Context, id api.SubmissionID, step api.StepNumber,
) error {
	if err := c.checkStep(OpNavigateToStep, id, step); err != nil {
		return err
	}
	transform := func(w *api.WorkflowInstance) *api.WorkflowInstance {
		return w.SetCurrentStep(step)
	}
	return c.apply(ctx, OpNavigateToStep, id, transform,
		func(ctx context.Context) (*api.WorkflowInstance, error) {
			return nil, c.remote.Navigate(ctx, id, step)
		},
	)
}

// CompleteStep stores the optional payload, marks the step complete, and
// advances the current step, pinning at the last catalog step. Repeating a
// completion is idempotent
func (c *Controller) CompleteStep(
	ctx context.Context, id api.SubmissionID, step api.StepNumber,
	data api.StepData,
) error {
	if err := c.checkStep(OpCompleteStep, id, step); err != nil {
		return err
	}
	next := c.catalog.NextStep(step)
	transform := func(w *api.WorkflowInstance) *api.WorkflowInstance {
		if data != nil {
			w = w.SetStepData(step, data)
		}
		return w.AddCompletedStep(step).SetCurrentStep(next)
	}
	return c.apply(ctx, OpCompleteStep, id, transform,
		func(ctx context.Context) (*api.WorkflowInstance, error) {
			return nil, c.remote.CompleteStep(ctx, id, step, next, data)
		},
	)
}

// CompleteWorkflow fast-forwards the instance: every catalog step is marked
// done even if never individually completed, and the status becomes
// completed
func (c *Controller) CompleteWorkflow(
	ctx context.Context, id api.SubmissionID, final api.StepData,
) error {
	transform := func(w *api.WorkflowInstance) *api.WorkflowInstance {
		return w.CompleteAll(c.catalog.Total())
	}
	return c.apply(ctx, OpCompleteWorkflow, id, transform,
		func(ctx context.Context) (*api.WorkflowInstance, error) {
			return nil, c.remote.Complete(ctx, id, final)
		},
	)
}

// checkStep rejects step numbers outside the catalog before any state is
// touched. This upholds the structural range invariant; it is not the
// navigation gating policy
func (c *Controller) checkStep(
	op string, id api.SubmissionID, step api.StepNumber,
) error {
	if c.catalog.Contains(step) {
		return nil
	}
	return &OpError{
		Op:           op,
		SubmissionID: id,
		Err: fmt.Errorf("%w: %d of %d",
			api.ErrStepOutOfRange, step, c.catalog.Total()),
	}
}

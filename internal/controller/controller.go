package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/stride/internal/client"
	"github.com/kode4food/stride/internal/store"
	"github.com/kode4food/stride/pkg/api"
	"github.com/kode4food/stride/pkg/log"
)

type (
	// Controller translates workflow intents into an immediate optimistic
	// local mutation plus a remote call, then reconciles. Every operation
	// follows the same protocol: snapshot the current instance, apply the
	// optimistic transform through the store's merge, invoke the remote
	// persistence service, then either refresh from the authoritative
	// response or roll back to the snapshot. Reconciliation is guarded by
	// the store version produced by the optimistic write, so a response
	// arriving after a newer operation has already mutated the instance is
	// discarded rather than applied
	Controller struct {
		store   *store.Store
		remote  client.Persistence
		catalog *api.Catalog
	}

	// OpError is the typed failure result surfaced to callers. The local
	// rollback has already happened by the time one is returned
	OpError struct {
		Op           string
		SubmissionID api.SubmissionID
		Err          error
	}

	// remoteCall invokes the persistence service for one operation. A
	// non-nil instance result is authoritative and replaces a refresh fetch
	remoteCall func(context.Context) (*api.WorkflowInstance, error)
)

const (
	OpInitialize       = "initialize"
	OpUpdateStepData   = "update_step_data"
	OpNavigateToStep   = "navigate_to_step"
	OpCompleteStep     = "complete_step"
	OpCompleteWorkflow = "complete_workflow"
	OpRefresh          = "refresh"
)

// New creates a controller over the given store, remote collaborator, and
// static step catalog
func New(
	st *store.Store, remote client.Persistence, catalog *api.Catalog,
) *Controller {
	return &Controller{
		store:   st,
		remote:  remote,
		catalog: catalog,
	}
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.SubmissionID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Instance returns the locally observed instance for a submission. Unknown
// submissions read as the draft default
func (c *Controller) Instance(id api.SubmissionID) *api.WorkflowInstance {
	w, _ := c.store.Get(id)
	return w
}

// StepStates derives the display status of every catalog step for the
// locally observed instance
func (c *Controller) StepStates(id api.SubmissionID) []api.StepState {
	return c.catalog.StepStates(c.Instance(id))
}

// CanNavigateToStep reports whether the gating policy permits jumping to the
// step. Advisory only: NavigateToStep does not enforce it
func (c *Controller) CanNavigateToStep(
	id api.SubmissionID, n api.StepNumber,
) bool {
	return c.catalog.CanNavigateTo(c.Instance(id), n)
}

// ResetWorkflow discards the local cached view only. Server-side state is
// untouched; the next Refresh re-fetches it
func (c *Controller) ResetWorkflow(id api.SubmissionID) {
	c.store.Reset(id)
}

// Refresh replaces the local view with the authoritative instance. A
// submission the service has never seen leaves the draft default in place
func (c *Controller) Refresh(ctx context.Context, id api.SubmissionID) error {
	auth, err := c.remote.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil
		}
		return &OpError{Op: OpRefresh, SubmissionID: id, Err: err}
	}
	c.store.Put(id, auth)
	return nil
}

// apply runs the optimistic protocol for one operation. The snapshot and
// optimistic write happen atomically inside the store's merge; the remote
// call follows. Failure rolls the instance back to the snapshot before the
// error is surfaced, and both rollback and refresh are discarded when a
// newer operation has already superseded this one's write
func (c *Controller) apply(
	ctx context.Context, op string, id api.SubmissionID,
	transform store.MergeFunc, call remoteCall,
) error {
	before, _, version := c.store.Merge(id, transform)

	auth, err := call(ctx)
	if err != nil {
		if _, ok := c.store.PutIf(id, before, version); !ok {
			slog.Debug("Discarding stale rollback",
				log.Op(op),
				log.SubmissionID(id))
		}
		return &OpError{Op: op, SubmissionID: id, Err: err}
	}

	if auth != nil {
		c.reconcile(op, id, auth, version)
		return nil
	}
	c.refresh(ctx, op, id, version)
	return nil
}

func (c *Controller) refresh(
	ctx context.Context, op string, id api.SubmissionID, version int64,
) {
	auth, err := c.remote.Fetch(ctx, id)
	if err != nil {
		// The optimistic state stands; the next operation or an explicit
		// Refresh will converge it
		slog.Warn("Refresh after operation failed",
			log.Op(op),
			log.SubmissionID(id),
			log.Error(err))
		return
	}
	c.reconcile(op, id, auth, version)
}

func (c *Controller) reconcile(
	op string, id api.SubmissionID, auth *api.WorkflowInstance, version int64,
) {
	if _, ok := c.store.PutIf(id, auth, version); !ok {
		slog.Debug("Discarding stale reconciliation",
			log.Op(op),
			log.SubmissionID(id))
	}
}

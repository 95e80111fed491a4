package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/stride/internal/persist"
	"github.com/kode4food/stride/pkg/api"
	"github.com/kode4food/stride/pkg/log"
)

var (
	ErrInvalidStepNumber  = errors.New("invalid step number")
	ErrInvalidPayload     = errors.New("step payload is not valid JSON")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNextStepMismatch   = errors.New("next step does not follow completion")
	ErrInvalidRequestBody = errors.New("invalid request body")
)

func (s *Server) getSubmission(c *gin.Context) {
	id := submissionID(c)
	w, err := s.repo.Load(c.Request.Context(), id)
	if err != nil {
		s.repoError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) initializeSubmission(c *gin.Context) {
	id := submissionID(c)

	var req api.InitializeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err))
			return
		}
	}

	w, err := s.repo.Update(c.Request.Context(), id,
		func(cur *api.WorkflowInstance) (*api.WorkflowInstance, error) {
			if cur == nil {
				cur = api.NewDraft(id)
			}
			if cur.IsDraft() {
				cur = cur.SetStatus(api.StatusInProgress)
			}
			next := cur.MergeInitial(req.InitialData)
			next = next.SetLastUpdated(time.Now())
			if err := next.Validate(s.catalog.Total()); err != nil {
				return nil, err
			}
			return next, nil
		},
	)
	if err != nil {
		s.repoError(c, err)
		return
	}

	s.publish(id, w)
	c.JSON(http.StatusOK, w)
}

func (s *Server) updateStep(c *gin.Context) {
	id := submissionID(c)
	step, ok := s.stepNumber(c)
	if !ok {
		return
	}

	var req api.UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err))
		return
	}
	if !req.Data.IsValid() {
		badRequest(c, ErrInvalidPayload)
		return
	}

	w, err := s.repo.Update(c.Request.Context(), id,
		func(cur *api.WorkflowInstance) (*api.WorkflowInstance, error) {
			if cur == nil {
				return nil, fmt.Errorf("%w: %s", persist.ErrNotFound, id)
			}
			next := cur.SetStepData(step, req.Data)
			return next.SetLastUpdated(time.Now()), nil
		},
	)
	if err != nil {
		s.repoError(c, err)
		return
	}

	s.publish(id, w)
	s.ack(c, w)
}

func (s *Server) navigateSubmission(c *gin.Context) {
	id := submissionID(c)

	var req api.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err))
		return
	}
	if !s.catalog.Contains(req.StepNumber) {
		badRequest(c, fmt.Errorf("%w: %d", ErrInvalidStepNumber,
			req.StepNumber))
		return
	}

	w, err := s.repo.Update(c.Request.Context(), id,
		func(cur *api.WorkflowInstance) (*api.WorkflowInstance, error) {
			if cur == nil {
				return nil, fmt.Errorf("%w: %s", persist.ErrNotFound, id)
			}
			next := cur.SetCurrentStep(req.StepNumber)
			return next.SetLastUpdated(time.Now()), nil
		},
	)
	if err != nil {
		s.repoError(c, err)
		return
	}

	s.publish(id, w)
	s.ack(c, w)
}

func (s *Server) completeStep(c *gin.Context) {
	id := submissionID(c)
	step, ok := s.stepNumber(c)
	if !ok {
		return
	}

	var req api.CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err))
		return
	}
	if req.NextStep != s.catalog.NextStep(step) {
		badRequest(c, fmt.Errorf("%w: step %d, next %d",
			ErrNextStepMismatch, step, req.NextStep))
		return
	}
	if req.Data != nil && !req.Data.IsValid() {
		badRequest(c, ErrInvalidPayload)
		return
	}

	w, err := s.repo.Update(c.Request.Context(), id,
		func(cur *api.WorkflowInstance) (*api.WorkflowInstance, error) {
			if cur == nil {
				return nil, fmt.Errorf("%w: %s", persist.ErrNotFound, id)
			}
			next := cur
			if req.Data != nil {
				next = next.SetStepData(step, req.Data)
			}
			next = next.AddCompletedStep(step)
			next = next.SetCurrentStep(req.NextStep)
			return next.SetLastUpdated(time.Now()), nil
		},
	)
	if err != nil {
		s.repoError(c, err)
		return
	}

	s.publish(id, w)
	s.ack(c, w)
}

func (s *Server) completeSubmission(c *gin.Context) {
	id := submissionID(c)

	var req api.CompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err))
			return
		}
	}

	w, err := s.repo.Update(c.Request.Context(), id,
		func(cur *api.WorkflowInstance) (*api.WorkflowInstance, error) {
			if cur == nil {
				return nil, fmt.Errorf("%w: %s", persist.ErrNotFound, id)
			}
			if !api.Transitions.CanTransition(
				cur.Status, api.StatusCompleted,
			) {
				return nil, fmt.Errorf("%w: %s to %s",
					ErrInvalidTransition, cur.Status, api.StatusCompleted)
			}
			next := cur.CompleteAll(s.catalog.Total())
			if len(req.FinalData) > 0 {
				next = next.SetStepData(s.catalog.LastStep(), req.FinalData)
			}
			return next.SetLastUpdated(time.Now()), nil
		},
	)
	if err != nil {
		s.repoError(c, err)
		return
	}

	s.archiveSnapshot(c, w)
	s.publish(id, w)
	s.ack(c, w)
}

// archiveSnapshot writes the final snapshot of a completed submission.
// Archival is best effort; a failure is logged but never fails the request
func (s *Server) archiveSnapshot(c *gin.Context, w *api.WorkflowInstance) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Put(c.Request.Context(), w); err != nil {
		slog.Warn("Failed to archive completed submission",
			log.SubmissionID(w.SubmissionID),
			log.Error(err))
	}
}

func (s *Server) ack(c *gin.Context, w *api.WorkflowInstance) {
	c.JSON(http.StatusOK, api.Ack{
		SubmissionID: w.SubmissionID,
		Status:       w.Status,
	})
}

func (s *Server) stepNumber(c *gin.Context) (api.StepNumber, bool) {
	n, err := strconv.Atoi(c.Param("stepNumber"))
	if err != nil || !s.catalog.Contains(api.StepNumber(n)) {
		badRequest(c, fmt.Errorf("%w: %q",
			ErrInvalidStepNumber, c.Param("stepNumber")))
		return 0, false
	}
	return api.StepNumber(n), true
}

func (s *Server) repoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, persist.ErrNotFound):
		errorResponse(c, http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		errorResponse(c, http.StatusConflict, err)
	case errors.Is(err, api.ErrStepOutOfRange),
		errors.Is(err, api.ErrCompletedMismatch),
		errors.Is(err, api.ErrDraftNotPristine):
		badRequest(c, err)
	default:
		errorResponse(c, http.StatusInternalServerError, err)
	}
}

func submissionID(c *gin.Context) api.SubmissionID {
	return api.SubmissionID(c.Param("submissionID"))
}

func badRequest(c *gin.Context, err error) {
	errorResponse(c, http.StatusBadRequest, err)
}

func errorResponse(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

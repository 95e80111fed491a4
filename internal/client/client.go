package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kode4food/stride/pkg/api"
)

type (
	// Persistence is the remote workflow persistence collaborator. Any
	// transport failure, non-success status, or malformed response is
	// reported uniformly as an error; callers treat them all as operation
	// failure
	Persistence interface {
		Initialize(
			context.Context, api.SubmissionID, *api.InitialData,
		) (*api.WorkflowInstance, error)
		UpdateStep(
			context.Context, api.SubmissionID, api.StepNumber, api.StepData,
		) error
		Navigate(context.Context, api.SubmissionID, api.StepNumber) error
		CompleteStep(
			ctx context.Context, id api.SubmissionID,
			step, next api.StepNumber, data api.StepData,
		) error
		Complete(context.Context, api.SubmissionID, api.StepData) error
		Fetch(
			context.Context, api.SubmissionID,
		) (*api.WorkflowInstance, error)
	}

	// HTTPClient talks to the persistence service over JSON/HTTP
	HTTPClient struct {
		httpClient *http.Client
		baseURL    string
	}
)

var (
	ErrHTTPError         = errors.New("persistence returned HTTP error")
	ErrMalformedResponse = errors.New("malformed persistence response")
	ErrNotFound          = errors.New("submission not found")
)

var _ Persistence = (*HTTPClient)(nil)

const userAgent = "Stride-Engine/1.0"

// NewHTTPClient creates a persistence client rooted at baseURL
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// Initialize creates or merges the server-side instance and returns the
// authoritative result
func (c *HTTPClient) Initialize(
	ctx context.Context, id api.SubmissionID, init *api.InitialData,
) (*api.WorkflowInstance, error) {
	var res api.WorkflowInstance
	err := c.do(ctx, http.MethodPost, c.submissionPath(id, "initialize"),
		api.InitializeRequest{InitialData: init}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateStep replaces the payload for a single step
func (c *HTTPClient) UpdateStep(
	ctx context.Context, id api.SubmissionID, step api.StepNumber,
	data api.StepData,
) error {
	return c.do(ctx, http.MethodPut, c.stepPath(id, step),
		api.UpdateStepRequest{Data: data}, nil)
}

// Navigate moves the server-side current step
func (c *HTTPClient) Navigate(
	ctx context.Context, id api.SubmissionID, step api.StepNumber,
) error {
	return c.do(ctx, http.MethodPut, c.submissionPath(id, "navigate"),
		api.NavigateRequest{StepNumber: step}, nil)
}

// CompleteStep marks a step complete. The caller supplies the next step it
// computed for the optimistic transform
func (c *HTTPClient) CompleteStep(
	ctx context.Context, id api.SubmissionID, step, next api.StepNumber,
	data api.StepData,
) error {
	return c.do(ctx, http.MethodPut, c.stepPath(id, step)+"/complete",
		api.CompleteStepRequest{NextStep: next, Data: data}, nil)
}

// Complete finishes the whole workflow
func (c *HTTPClient) Complete(
	ctx context.Context, id api.SubmissionID, final api.StepData,
) error {
	return c.do(ctx, http.MethodPost, c.submissionPath(id, "complete"),
		api.CompleteRequest{FinalData: final}, nil)
}

// Fetch retrieves the authoritative instance for reconciliation and first
// reads
func (c *HTTPClient) Fetch(
	ctx context.Context, id api.SubmissionID,
) (*api.WorkflowInstance, error) {
	var res api.WorkflowInstance
	err := c.do(ctx, http.MethodGet, c.submissionPath(id, ""), nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) submissionPath(id api.SubmissionID, op string) string {
	path := c.baseURL + "/submission/" + url.PathEscape(string(id))
	if op == "" {
		return path
	}
	return path + "/" + op
}

func (c *HTTPClient) stepPath(id api.SubmissionID, n api.StepNumber) string {
	return fmt.Sprintf("%s/step/%d", c.submissionPath(id, ""), n)
}

func (c *HTTPClient) do(
	ctx context.Context, method, path string, body, out any,
) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			slog.Error("Failed to marshal persistence request",
				slog.String("path", path),
				slog.Any("error", err))
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, path, reqBody)
	if err != nil {
		slog.Error("Failed to create persistence request",
			slog.String("path", path),
			slog.Any("error", err))
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("Persistence request failed",
			slog.String("path", path),
			slog.Duration("duration", dur),
			slog.Any("error", err))
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read persistence response",
			slog.String("path", path),
			slog.Any("error", err))
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if resp.StatusCode < http.StatusOK ||
		resp.StatusCode >= http.StatusMultipleChoices {
		slog.Error("Persistence HTTP error",
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		slog.Error("Failed to unmarshal persistence response",
			slog.String("path", path),
			slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

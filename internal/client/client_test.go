package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/stride/internal/client"
	"github.com/kode4food/stride/pkg/api"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func makeServer(
	t *testing.T, status int, respond any,
) (*client.HTTPClient, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			rec.method = r.Method
			rec.path = r.URL.Path
			rec.header = r.Header.Clone()
			body, _ := io.ReadAll(r.Body)
			rec.body = body

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if respond != nil {
				_ = json.NewEncoder(w).Encode(respond)
			}
		},
	))
	t.Cleanup(srv.Close)
	return client.NewHTTPClient(srv.URL, 5*time.Second), rec
}

func TestInitialize(t *testing.T) {
	auth := api.NewDraft("SUB-001").SetStatus(api.StatusInProgress)
	c, rec := makeServer(t, http.StatusOK, auth)

	res, err := c.Initialize(context.Background(), "SUB-001",
		&api.InitialData{CurrentStep: 1})
	require.NoError(t, err)
	assert.Equal(t, api.SubmissionID("SUB-001"), res.SubmissionID)
	assert.Equal(t, api.StatusInProgress, res.Status)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/submission/SUB-001/initialize", rec.path)
}

func TestUpdateStep(t *testing.T) {
	c, rec := makeServer(t, http.StatusOK, nil)

	err := c.UpdateStep(context.Background(), "SUB-001", 3,
		api.StepData(`{"sprinklered":true}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/submission/SUB-001/step/3", rec.path)

	var req api.UpdateStepRequest
	require.NoError(t, json.Unmarshal(rec.body, &req))
	assert.True(t, req.Data.Get("sprinklered").Bool())
}

func TestNavigate(t *testing.T) {
	c, rec := makeServer(t, http.StatusOK, nil)

	err := c.Navigate(context.Background(), "SUB-001", 4)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/submission/SUB-001/navigate", rec.path)

	var req api.NavigateRequest
	require.NoError(t, json.Unmarshal(rec.body, &req))
	assert.Equal(t, api.StepNumber(4), req.StepNumber)
}

func TestCompleteStep(t *testing.T) {
	c, rec := makeServer(t, http.StatusOK, nil)

	err := c.CompleteStep(context.Background(), "SUB-001", 2, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/submission/SUB-001/step/2/complete", rec.path)

	var req api.CompleteStepRequest
	require.NoError(t, json.Unmarshal(rec.body, &req))
	assert.Equal(t, api.StepNumber(3), req.NextStep)
}

func TestComplete(t *testing.T) {
	c, rec := makeServer(t, http.StatusOK, nil)

	err := c.Complete(context.Background(), "SUB-001",
		api.StepData(`{"signature":"ok"}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/submission/SUB-001/complete", rec.path)
}

func TestFetch(t *testing.T) {
	auth := api.NewDraft("SUB-001").
		SetStatus(api.StatusInProgress).
		AddCompletedStep(1).
		SetCurrentStep(2)
	c, rec := makeServer(t, http.StatusOK, auth)

	res, err := c.Fetch(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, api.StepNumber(2), res.CurrentStep)
	assert.True(t, res.CompletedSteps.Contains(1))

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/submission/SUB-001", rec.path)
}

func TestRequestHeaders(t *testing.T) {
	c, rec := makeServer(t, http.StatusOK, nil)

	require.NoError(t,
		c.Navigate(context.Background(), "SUB-001", 2))

	assert.Equal(t, "application/json", rec.header.Get("Content-Type"))
	assert.Equal(t, "application/json", rec.header.Get("Accept"))
	assert.Equal(t, "Stride-Engine/1.0", rec.header.Get("User-Agent"))
	assert.NotEmpty(t, rec.header.Get("X-Request-ID"))
}

func TestHTTPError(t *testing.T) {
	c, _ := makeServer(t, http.StatusInternalServerError, nil)

	err := c.Navigate(context.Background(), "SUB-001", 2)
	assert.ErrorIs(t, err, client.ErrHTTPError)
}

func TestNotFound(t *testing.T) {
	c, _ := makeServer(t, http.StatusNotFound, nil)

	_, err := c.Fetch(context.Background(), "SUB-404")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
	))
	t.Cleanup(srv.Close)
	c := client.NewHTTPClient(srv.URL, 5*time.Second)

	_, err := c.Fetch(context.Background(), "SUB-001")
	assert.ErrorIs(t, err, client.ErrMalformedResponse)
}

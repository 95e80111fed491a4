package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/stride/internal/archive"
	"github.com/kode4food/stride/internal/config"
	"github.com/kode4food/stride/internal/persist"
	"github.com/kode4food/stride/internal/server"
	"github.com/kode4food/stride/pkg/api"
)

type testServerEnv struct {
	Server   *server.Server
	Repo     *persist.Repository
	Archiver *archive.Archiver
}

func testServer(t *testing.T) *testServerEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	repo := persist.NewRepository(config.RedisConfig{
		Addr:   mr.Addr(),
		Prefix: "stride",
	})
	archiver, err := archive.New(
		context.Background(), "mem://", "submissions",
	)
	require.NoError(t, err)

	env := &testServerEnv{
		Server: server.NewServer(
			repo, api.CommercialPropertyCatalog(), archiver,
		),
		Repo:     repo,
		Archiver: archiver,
	}
	t.Cleanup(func() {
		env.Server.CloseWebSockets()
		_ = archiver.Close()
		_ = repo.Close()
	})
	return env
}

func (env *testServerEnv) request(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.Server.SetupRoutes().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var res T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "GET", "/catalog", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	catalog := decode[api.Catalog](t, w)
	assert.Equal(t, "commercial-property", catalog.Process)
	assert.Len(t, catalog.Steps, 8)
}

func TestInitializeSubmission(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.WorkflowInstance](t, w)
	assert.Equal(t, api.SubmissionID("SUB-001"), res.SubmissionID)
	assert.Equal(t, api.StatusInProgress, res.Status)
	assert.Equal(t, api.StepNumber(1), res.CurrentStep)
}

func TestInitializeWithData(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize",
		api.InitializeRequest{
			InitialData: &api.InitialData{
				StepData: map[api.StepNumber]api.StepData{
					1: api.StepData(`{"broker":"Acme"}`),
				},
			},
		},
	)
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.WorkflowInstance](t, w)
	assert.Equal(t, "Acme", res.StepData[1].Get("broker").String())
}

func TestInitializeIdempotent(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/submission/SUB-001/step/1/complete",
		api.CompleteStepRequest{NextStep: 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[api.WorkflowInstance](t, w)
	assert.Equal(t, api.StepNumber(2), res.CurrentStep)
	assert.True(t, res.CompletedSteps.Contains(1))
}

func TestGetSubmission(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "GET", "/submission/SUB-001", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.WorkflowInstance](t, w)
	assert.Equal(t, api.StatusInProgress, res.Status)
}

func TestGetSubmissionNotFound(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "GET", "/submission/SUB-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	res := decode[api.ErrorResponse](t, w)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestUpdateStep(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/submission/SUB-001/step/3",
		api.UpdateStepRequest{
			Data: api.StepData(`{"sprinklered":true}`),
		},
	)
	assert.Equal(t, http.StatusOK, w.Code)

	ack := decode[api.Ack](t, w)
	assert.Equal(t, api.SubmissionID("SUB-001"), ack.SubmissionID)
	assert.Equal(t, api.StatusInProgress, ack.Status)

	stored, err := env.Repo.Load(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.True(t, stored.StepData[3].Get("sprinklered").Bool())
}

func TestUpdateStepNotFound(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "PUT", "/submission/SUB-404/step/1",
		api.UpdateStepRequest{Data: api.StepData(`{}`)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateStepInvalidStepNumber(t *testing.T) {
	env := testServer(t)

	for _, step := range []string{"0", "9", "abc"} {
		w := env.request(t, "PUT", "/submission/SUB-001/step/"+step,
			api.UpdateStepRequest{Data: api.StepData(`{}`)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestUpdateStepInvalidPayload(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest("PUT", "/submission/SUB-001/step/1",
		strings.NewReader(`{"data": "not an object`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.Server.SetupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNavigateSubmission(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/submission/SUB-001/navigate",
		api.NavigateRequest{StepNumber: 4})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := env.Repo.Load(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, api.StepNumber(4), stored.CurrentStep)
}

func TestNavigateInvalidStep(t *testing.T) {
	env := testServer(t)

	for _, step := range []api.StepNumber{0, 9} {
		w := env.request(t, "PUT", "/submission/SUB-001/navigate",
			api.NavigateRequest{StepNumber: step})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestCompleteStep(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/submission/SUB-001/step/1/complete",
		api.CompleteStepRequest{
			NextStep: 2,
			Data:     api.StepData(`{"broker":"Acme"}`),
		},
	)
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := env.Repo.Load(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.True(t, stored.CompletedSteps.Contains(1))
	assert.Equal(t, api.StepNumber(2), stored.CurrentStep)
	assert.Equal(t, "Acme", stored.StepData[1].Get("broker").String())
}

func TestCompleteStepNextMismatch(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/submission/SUB-001/step/1/complete",
		api.CompleteStepRequest{NextStep: 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteLastStepPins(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/submission/SUB-001/step/8/complete",
		api.CompleteStepRequest{NextStep: 8})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := env.Repo.Load(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, api.StepNumber(8), stored.CurrentStep)
}

func TestCompleteSubmission(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "POST", "/submission/SUB-001/complete",
		api.CompleteRequest{
			FinalData: api.StepData(`{"signature":"ok"}`),
		},
	)
	assert.Equal(t, http.StatusOK, w.Code)

	ack := decode[api.Ack](t, w)
	assert.Equal(t, api.StatusCompleted, ack.Status)

	stored, err := env.Repo.Load(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, api.StatusCompleted, stored.Status)
	assert.Equal(t, 8, stored.CompletedSteps.Len())
	assert.Equal(t, "ok", stored.StepData[8].Get("signature").String())

	archived, err := env.Archiver.Get(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, api.StatusCompleted, archived.Status)
}

func TestCompleteSubmissionNotFound(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-404/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteDraftConflict(t *testing.T) {
	env := testServer(t)

	require.NoError(t, env.Repo.Save(context.Background(),
		api.NewDraft("SUB-001")))

	w := env.request(t, "POST", "/submission/SUB-001/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCompleteIdempotent(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "POST", "/submission/SUB-001/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "POST", "/submission/SUB-001/complete", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := testServer(t)

	w := env.request(t, "OPTIONS", "/submission/SUB-001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*",
		w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketNotifications(t *testing.T) {
	env := testServer(t)

	srv := httptest.NewServer(env.Server.SetupRoutes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws?submission_id=SUB-001"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	w := env.request(t, "POST", "/submission/SUB-001/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var change server.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, api.SubmissionID("SUB-001"), change.SubmissionID)
	assert.Equal(t, api.StatusInProgress, change.Instance.Status)
}

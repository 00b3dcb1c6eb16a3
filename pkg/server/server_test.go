package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/flow"
	"github.com/fyrsmithlabs/projectd/internal/logging"
)

func newTestServer(t *testing.T) (*Server, *flow.Coordinator, *events.MemoryLog) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "projectd-test"
	cfg.Server.Port = 0

	log := events.NewMemoryLog()
	coordinator := flow.NewCoordinator(log, logging.NewTestLogger().Logger)
	return NewServer(cfg, log, coordinator), coordinator, log
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "projectd-test", resp.Service)
}

func TestGetFlowNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/flows/absent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAndGetFlow(t *testing.T) {
	s, coordinator, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/flows", StartRequest{
		Request:     "create a new app",
		ProjectName: "demo",
		Framework:   "next",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var st flow.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, flow.StatusAwaitingDecision, st.Status)

	rec = doJSON(t, s, http.MethodGet, "/flows/"+coordinator.FlowID(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, flow.StatusAwaitingDecision, st.Status)
}

func TestActionProceed(t *testing.T) {
	s, coordinator, _ := newTestServer(t)
	_, err := coordinator.Start(context.Background(), flow.Context{Framework: "next"}, "create")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/flows/"+coordinator.FlowID()+"/action", ActionRequest{Action: "proceed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var st flow.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, flow.StatusCompleted, st.Status)
	assert.Equal(t, flow.CompletionReady, st.CompletionStatus)
}

func TestActionGuardViolationMapsToConflict(t *testing.T) {
	s, coordinator, _ := newTestServer(t)
	_, err := coordinator.Start(context.Background(), flow.Context{}, "create")
	require.NoError(t, err)
	_, err = coordinator.HandleUserAction(context.Background(), flow.ActionCancel)
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/flows/"+coordinator.FlowID()+"/action", ActionRequest{Action: "proceed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActionUnknownFlow(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/flows/nope/action", ActionRequest{Action: "proceed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStyleChangeAndSelect(t *testing.T) {
	s, coordinator, _ := newTestServer(t)
	_, err := coordinator.Start(context.Background(), flow.Context{}, "create")
	require.NoError(t, err)
	id := coordinator.FlowID()

	rec := doJSON(t, s, http.MethodPost, "/flows/"+id+"/style", StyleRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	var st flow.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.StylePickerActive)
	assert.Equal(t, flow.StatusAwaitingDecision, st.Status)

	rec = doJSON(t, s, http.MethodPost, "/flows/"+id+"/style", StyleRequest{Style: "warm"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.StylePickerActive)
	assert.Equal(t, "warm", st.SelectedStyle)
}

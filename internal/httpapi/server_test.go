package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu_sniper/internal/config"
	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/metrics"
	"gpu_sniper/internal/model"
)

type fixedState model.EngineState

func (f fixedState) State() model.EngineState { return model.EngineState(f) }

type fakeEvents struct {
	gotRunID string
	gotLimit int
	err      error
}

func (f *fakeEvents) ListEvents(_ context.Context, runID string, limit int) ([]model.Event, error) {
	f.gotRunID, f.gotLimit = runID, limit
	if f.err != nil {
		return nil, f.err
	}
	return []model.Event{{ID: "e1", RunID: "r1", Kind: model.EventRunStarted, At: time.UnixMilli(1000)}}, nil
}

func newTestServer(t *testing.T, events EventLister) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).CartAttempt(true)
	s := New(Options{
		Cfg:      config.ServerConfig{Cors: config.CorsConfig{AllowOrigins: []string{"http://ui.example"}}},
		Bus:      logbus.New(10),
		Engine:   fixedState{Running: true, RunID: "r1", APIStatus: model.APIStatusOnline, PurchaseEnabled: true, Workers: []model.WorkerState{{ProductID: "p1", Phase: model.PhaseChecking, Attempt: 4}}},
		Events:   events,
		Gatherer: reg,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthAndState(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeEvents{})

	var health map[string]bool
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &health))
	assert.True(t, health["ok"])

	var state struct {
		Data model.EngineState `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/state", &state))
	assert.Equal(t, "r1", state.Data.RunID)
	require.Len(t, state.Data.Workers, 1)
	assert.Equal(t, 4, state.Data.Workers[0].Attempt)

	resp, err := http.Post(srv.URL+"/api/v1/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEvents(t *testing.T) {
	t.Parallel()
	events := &fakeEvents{}
	srv := newTestServer(t, events)

	var body struct {
		Data []model.Event `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/events?limit=5000&runId=r1", &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, model.EventRunStarted, body.Data[0].Kind)
	assert.Equal(t, "r1", events.gotRunID)
	assert.Equal(t, maxEventLimit, events.gotLimit)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/events?limit=zero", &errBody))
	assert.NotEmpty(t, errBody["error"])
}

func TestEventsJournalError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeEvents{err: errors.New("disk gone")})

	var errBody map[string]string
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, srv.URL+"/api/v1/events", &errBody))
	assert.Equal(t, "disk gone", errBody["error"])
}

func TestCorsPreflight(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeEvents{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://ui.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://ui.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://other.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestStatusAPIRefusesWrites(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeEvents{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://ui.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, OPTIONS", resp.Header.Get("Allow"))
	assert.Equal(t, "GET", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", resp.Header.Get("Vary"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &fakeEvents{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `gpu_sniper_cart_attempts_total{result="success"} 1`)
}

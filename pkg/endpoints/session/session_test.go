//nolint:funlen,noctx // ok for tests
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/lap"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository/memory"
	"github.com/mpapenbr/trackline/pkg/service"
)

func ring(r float64, n int) geom.Ring {
	ret := make(geom.Ring, n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ret[i] = geom.Pt(r*math.Cos(a), r*math.Sin(a))
	}
	return ret
}

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	repos := memory.NewRepositories()
	tracks := service.NewTrackService(repos)
	require.NoError(t, tracks.Store(context.Background(), &model.Track{
		ID:         "oval",
		Boundaries: []geom.Ring{ring(500, 64), ring(200, 64)},
	}))
	mux := http.NewServeMux()
	NewHandler(service.NewSessionService(tracks, repos.BestLap())).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLapConfig(t *testing.T) {
	var req StartRequest
	require.NoError(t, json.Unmarshal([]byte(`{"trackId":"a","playerId":"b"}`), &req))
	assert.Equal(t, lap.DefaultConfig(), req.LapConfig())

	require.NoError(t, json.Unmarshal(
		[]byte(`{"minLapMs":0,"requireAllCheckpoints":false,"allCrossings":true}`), &req))
	cfg := req.LapConfig()
	assert.Equal(t, int64(0), cfg.MinLapMs)
	assert.False(t, cfg.RequireAllCheckpoints)
	assert.True(t, cfg.AllCrossings)
}

func TestSessionLifecycle(t *testing.T) {
	srv := setup(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions",
		map[string]any{"trackId": "oval", "playerId": "p1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info service.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "oval", info.TrackID)
	assert.Greater(t, info.State.NumCheckpoints, 100)
	require.NotNil(t, info.NextCheckpoint)

	samples := SamplesRequest{Samples: []service.Sample{
		{TimeMs: 0, X: 350, Y: 0},
		{TimeMs: 100, X: 349, Y: 20},
		{TimeMs: 50, X: 348, Y: 25},
	}}
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+info.ID+"/samples", samples)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var upd service.SessionUpdate
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&upd))
	assert.Len(t, upd.Results, 1)
	assert.Equal(t, 1, upd.Skipped)
	assert.Empty(t, upd.Laps)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions", nil)
	var all []service.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/v1/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartErrors(t *testing.T) {
	srv := setup(t)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing player", map[string]any{"trackId": "oval"}, http.StatusBadRequest},
		{"negative min lap", map[string]any{"trackId": "oval", "playerId": "p", "minLapMs": -1}, http.StatusBadRequest},
		{"unknown track", map[string]any{"trackId": "nope", "playerId": "p"}, http.StatusNotFound},
		{"invalid json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/unknown/samples",
		SamplesRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

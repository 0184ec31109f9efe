//nolint:funlen,noctx // ok for tests
package track

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/events"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository/api"
	"github.com/mpapenbr/trackline/pkg/repository/memory"
	"github.com/mpapenbr/trackline/pkg/service"
)

const token = "secret"

func ring(r float64, n int) geom.Ring {
	ret := make(geom.Ring, n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ret[i] = geom.Pt(r*math.Cos(a), r*math.Sin(a))
	}
	return ret
}

func trackDoc(t *testing.T, id, name string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"id":     id,
		"name":   name,
		"schema": "v1",
		"bounds": []geom.Ring{ring(500, 64), ring(200, 64)},
	})
	require.NoError(t, err)
	return string(data)
}

type env struct {
	srv   *httptest.Server
	repos api.Repositories
	laps  *events.Local
}

func setup(t *testing.T) *env {
	t.Helper()
	repos := memory.NewRepositories()
	tracks := service.NewTrackService(repos)
	sessions := service.NewSessionService(tracks, repos.BestLap())
	laps := events.NewLocal()
	t.Cleanup(laps.Close)
	mux := http.NewServeMux()
	NewHandler(tracks, sessions,
		WithAdminToken(token),
		WithLapSubscriber(laps)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &env{srv: srv, repos: repos, laps: laps}
}

func (e *env) do(t *testing.T, method, path, body string, admin bool) *http.Response {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if admin {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var ret T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ret))
	return ret
}

func TestTrackLifecycle(t *testing.T) {
	e := setup(t)

	resp := e.do(t, http.MethodPost, "/v1/tracks", trackDoc(t, "oval", "Oval"), false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/tracks", trackDoc(t, "oval", "Oval"), true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Track](t, resp)
	assert.Equal(t, "oval", created.ID)
	assert.Len(t, created.Boundaries, 2)

	resp = e.do(t, http.MethodGet, "/v1/tracks", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Track](t, resp), 1)

	resp = e.do(t, http.MethodPut, "/v1/tracks/oval", trackDoc(t, "ignored", "Renamed"), true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/v1/tracks/oval", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Renamed", decode[model.Track](t, resp).Name)

	resp = e.do(t, http.MethodGet, "/v1/tracks/oval/checkpoints", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cps := decode[[]checkpoint.Checkpoint](t, resp)
	assert.Greater(t, len(cps), 100)
	assert.True(t, cps[0].IsStart)

	resp = e.do(t, http.MethodDelete, "/v1/tracks/oval", "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/v1/tracks/oval", "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do(t, http.MethodDelete, "/v1/tracks/oval", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidDocuments(t *testing.T) {
	e := setup(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"wrong schema", `{"id":"a","schema":"v2","bounds":[[[0,0],[1,0],[1,1]]]}`},
		{"single ring", `{"id":"a","bounds":[[[0,0],[1,0],[1,1]]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, "/v1/tracks", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCompute(t *testing.T) {
	e := setup(t)
	doc := `{"layout": ` + trackDoc(t, "x", "x") + `}`
	resp := e.do(t, http.MethodPost, "/v1/checkpoints?path=$.layout.bounds", doc, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, len(decode[[]checkpoint.Checkpoint](t, resp)), 100)

	resp = e.do(t, http.MethodPost, "/v1/checkpoints", `{"bounds":[[[0,0],[1,0],[1,1]]]}`, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]checkpoint.Checkpoint](t, resp))

	resp = e.do(t, http.MethodPost, "/v1/checkpoints",
		`{"bounds":[[[0,0],[1,0],[1,1]]],"options":{"n":100000,"window":100000}}`, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBestLaps(t *testing.T) {
	e := setup(t)
	resp := e.do(t, http.MethodGet, "/v1/tracks/oval/bestlaps", "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/tracks", trackDoc(t, "oval", "Oval"), true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ctx := context.Background()
	require.NoError(t, e.repos.BestLap().Store(ctx, &model.BestLap{
		TrackID: "oval", PlayerID: "b", LapMs: 75250,
		Path: []geom.Point{{X: 1, Y: 1}},
	}))
	require.NoError(t, e.repos.BestLap().Store(ctx, &model.BestLap{
		TrackID: "oval", PlayerID: "a", LapMs: 61001,
	}))

	resp = e.do(t, http.MethodGet, "/v1/tracks/oval/bestlaps", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	board := decode[[]bestLapResponse](t, resp)
	require.Len(t, board, 2)
	assert.Equal(t, bestLapResponse{
		Rank: 1, PlayerID: "a", LapMs: 61001, LapTime: "1:01.001",
		RecordedAt: board[0].RecordedAt,
	}, board[0])
	assert.Equal(t, "1:15.250", board[1].LapTime)
	assert.Nil(t, board[1].Path)

	resp = e.do(t, http.MethodGet, "/v1/tracks/oval/bestlaps?path=true", "", false)
	board = decode[[]bestLapResponse](t, resp)
	assert.Equal(t, []geom.Point{{X: 1, Y: 1}}, board[1].Path)
}

func TestLapStream(t *testing.T) {
	e := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.srv.URL+"/v1/tracks/oval/laps", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, e.laps.PublishLap(ctx, &events.LapEvent{TrackID: "other", LapMs: 1}))
	require.NoError(t, e.laps.PublishLap(ctx, &events.LapEvent{TrackID: "oval", LapMs: 2}))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: lap\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))
	var got events.LapEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &got))
	assert.Equal(t, "oval", got.TrackID)
	assert.Equal(t, int64(2), got.LapMs)
}

//nolint:funlen // ok for tests
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/endpoints/session"
	"github.com/mpapenbr/trackline/pkg/endpoints/track"
	"github.com/mpapenbr/trackline/pkg/geom"
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

// writeFixtures writes a ring shaped track and 2.5 laps of samples on a
// circle of radius 350. Each lap takes 72s.
func writeFixtures(t *testing.T) (docFile, samplesFile string) {
	t.Helper()
	dir := t.TempDir()
	bounds := []geom.Ring{ring(500, 64), ring(200, 64)}
	data, err := json.Marshal(map[string]any{"id": "annulus", "bounds": bounds})
	require.NoError(t, err)
	docFile = filepath.Join(dir, "track.json")
	require.NoError(t, os.WriteFile(docFile, data, 0o600))

	cps := checkpoint.Generate(bounds)
	require.Greater(t, len(cps), 2)
	start := math.Atan2(cps[0].Midpoint().Y, cps[0].Midpoint().X)
	next := math.Atan2(cps[1].Midpoint().Y, cps[1].Midpoint().X)
	dir1 := 1.0
	if math.Remainder(next-start, 2*math.Pi) < 0 {
		dir1 = -1.0
	}
	const perLap = 720
	step := 2 * math.Pi / perLap
	a0 := start - dir1*3*step + step/3
	buf := bytes.Buffer{}
	buf.WriteString("t_ms,x,y\n")
	for k := range int(2.5 * perLap) {
		a := a0 + dir1*float64(k)*step
		fmt.Fprintf(&buf, "%d,%f,%f\n", k*100, 350*math.Cos(a), 350*math.Sin(a))
	}
	samplesFile = filepath.Join(dir, "samples.csv")
	require.NoError(t, os.WriteFile(samplesFile, buf.Bytes(), 0o600))
	return docFile, samplesFile
}

func defaultArgs(docFile, samplesFile string) *replayArgs {
	return &replayArgs{
		file:       docFile,
		samples:    samplesFile,
		playerID:   "p1",
		minLap:     10 * time.Second,
		requireAll: true,
		store:      "memory",
		batch:      50,
	}
}

func TestReplayLocal(t *testing.T) {
	docFile, samplesFile := writeFixtures(t)
	out := bytes.Buffer{}
	err := defaultArgs(docFile, samplesFile).run(context.Background(), &out, log.Default())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "track annulus, player p1, 1800 samples", lines[0])
	assert.Equal(t, "lap   1  1:12.000  (72.000s)  best 1:12.000 *", lines[1])
	assert.Equal(t, "lap   2  1:12.000  (72.000s)  best 1:12.000", lines[2])
	assert.Equal(t, "2 laps, best 1:12.000", lines[3])
}

func TestReplayMinLap(t *testing.T) {
	docFile, samplesFile := writeFixtures(t)
	args := defaultArgs(docFile, samplesFile)
	args.minLap = 2 * time.Minute
	assert.Equal(t, int64(120000), args.lapConfig().MinLapMs)
	out := bytes.Buffer{}
	require.NoError(t, args.run(context.Background(), &out, log.Default()))
	assert.Contains(t, out.String(), "0 laps, best —")
}

func TestReplayErrors(t *testing.T) {
	docFile, samplesFile := writeFixtures(t)
	tests := []struct {
		name   string
		modify func(a *replayArgs)
	}{
		{"no track", func(a *replayArgs) { a.file = "" }},
		{"unknown track id", func(a *replayArgs) { a.file = ""; a.trackID = "missing" }},
		{"missing samples", func(a *replayArgs) { a.samples = samplesFile + ".missing" }},
		{"unknown store", func(a *replayArgs) { a.store = "tape" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := defaultArgs(docFile, samplesFile)
			tt.modify(args)
			assert.Error(t, args.run(context.Background(), &bytes.Buffer{}, log.Default()))
		})
	}
}

func TestReplayRemote(t *testing.T) {
	repos := memory.NewRepositories()
	tracks := service.NewTrackService(repos)
	sessions := service.NewSessionService(tracks, repos.BestLap())
	mux := http.NewServeMux()
	track.NewHandler(tracks, sessions, track.WithAdminToken("secret")).Register(mux)
	session.NewHandler(sessions).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docFile, samplesFile := writeFixtures(t)
	args := defaultArgs(docFile, samplesFile)
	args.addr = srv.URL

	// uploading the track needs the admin token
	assert.Error(t, args.run(context.Background(), &bytes.Buffer{}, log.Default()))

	args.token = "secret"
	out := bytes.Buffer{}
	require.NoError(t, args.run(context.Background(), &out, log.Default()))
	assert.Contains(t, out.String(), "2 laps, best 1:12.000")

	laps, err := repos.BestLap().LoadByTrack(context.Background(), "annulus")
	require.NoError(t, err)
	require.Len(t, laps, 1)
	assert.Equal(t, int64(72000), laps[0].LapMs)
	assert.Empty(t, sessions.Sessions())
}

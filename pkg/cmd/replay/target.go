package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/trackline/pkg/endpoints/session"
	"github.com/mpapenbr/trackline/pkg/lap"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/service"
)

type (
	// target receives the replayed samples.
	target interface {
		storeTrack(ctx context.Context, track *model.Track) error
		start(ctx context.Context, trackID, playerID string, cfg lap.Config) (string, error)
		update(ctx context.Context, id string, samples []service.Sample) (
			*service.SessionUpdate, error)
		stop(ctx context.Context, id string) error
	}
	localTarget struct {
		tracks   *service.TrackService
		sessions *service.SessionService
	}
	remoteTarget struct {
		client *http.Client
		base   *url.URL
		token  string
	}
)

func (t *localTarget) storeTrack(ctx context.Context, track *model.Track) error {
	return t.tracks.Store(ctx, track)
}

//nolint:whitespace // can't make both editor and linter happy
func (t *localTarget) start(
	ctx context.Context, trackID, playerID string, cfg lap.Config,
) (string, error) {
	info, err := t.sessions.Start(ctx, trackID, playerID, cfg)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (t *localTarget) update(
	ctx context.Context, id string, samples []service.Sample,
) (*service.SessionUpdate, error) {
	return t.sessions.Update(ctx, id, samples)
}

func (t *localTarget) stop(ctx context.Context, id string) error {
	return t.sessions.Stop(id)
}

func newRemoteTarget(addr, token string) (*remoteTarget, error) {
	base, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" {
		if base, err = url.Parse("http://" + addr); err != nil {
			return nil, err
		}
	}
	return &remoteTarget{client: http.DefaultClient, base: base, token: token}, nil
}

func (t *remoteTarget) storeTrack(ctx context.Context, track *model.Track) error {
	doc := map[string]any{
		"id":      track.ID,
		"name":    track.Name,
		"bounds":  track.Boundaries,
		"options": track.Options,
	}
	return t.do(ctx, http.MethodPut, "/v1/tracks/"+url.PathEscape(track.ID), doc, nil)
}

//nolint:whitespace // can't make both editor and linter happy
func (t *remoteTarget) start(
	ctx context.Context, trackID, playerID string, cfg lap.Config,
) (string, error) {
	req := session.StartRequest{
		TrackID:               trackID,
		PlayerID:              playerID,
		MinLapMs:              null.From(cfg.MinLapMs),
		RequireAllCheckpoints: null.From(cfg.RequireAllCheckpoints),
		AllCrossings:          cfg.AllCrossings,
	}
	info := service.SessionInfo{}
	if err := t.do(ctx, http.MethodPost, "/v1/sessions", req, &info); err != nil {
		return "", err
	}
	return info.ID, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (t *remoteTarget) update(
	ctx context.Context, id string, samples []service.Sample,
) (*service.SessionUpdate, error) {
	ret := &service.SessionUpdate{}
	err := t.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/samples",
		session.SamplesRequest{Samples: samples}, ret)
	return ret, err
}

func (t *remoteTarget) stop(ctx context.Context, id string) error {
	return t.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}

//nolint:whitespace // can't make both editor and linter happy
func (t *remoteTarget) do(
	ctx context.Context, method, path string, body, result any,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base.JoinPath(path).String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// Package track provides the http endpoints for tracks and their checkpoints.
package track

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"

	"github.com/mpapenbr/trackline/log"
	eputils "github.com/mpapenbr/trackline/pkg/endpoints/utils"
	"github.com/mpapenbr/trackline/pkg/events"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/lap"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/service"
	"github.com/mpapenbr/trackline/pkg/trackdoc"
)

type (
	LapSubscriber interface {
		Subscribe() <-chan *events.LapEvent
		Unsubscribe(<-chan *events.LapEvent)
	}
	Option  func(*Handler)
	Handler struct {
		tracks     *service.TrackService
		sessions   *service.SessionService
		laps       LapSubscriber
		adminToken string
		l          *log.Logger
	}
	bestLapResponse struct {
		Rank       int          `json:"rank"`
		PlayerID   string       `json:"playerId"`
		LapMs      int64        `json:"lapMs"`
		LapTime    string       `json:"lapTime"`
		RecordedAt time.Time    `json:"recordedAt"`
		Path       []geom.Point `json:"path,omitempty"`
	}
)

func WithAdminToken(token string) Option {
	return func(h *Handler) {
		h.adminToken = token
	}
}

// WithLapSubscriber enables the event stream of completed laps.
func WithLapSubscriber(s LapSubscriber) Option {
	return func(h *Handler) {
		h.laps = s
	}
}

func NewHandler(
	tracks *service.TrackService,
	sessions *service.SessionService,
	opts ...Option,
) *Handler {
	ret := &Handler{
		tracks:   tracks,
		sessions: sessions,
		l:        log.Default().Named("http.track"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (h *Handler) Register(mux *http.ServeMux) {
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return eputils.AdminOnly(h.adminToken, fn)
	}
	mux.HandleFunc("GET /v1/tracks", h.list)
	mux.HandleFunc("POST /v1/tracks", admin(h.create))
	mux.HandleFunc("GET /v1/tracks/{id}", h.get)
	mux.HandleFunc("PUT /v1/tracks/{id}", admin(h.update))
	mux.HandleFunc("DELETE /v1/tracks/{id}", admin(h.delete))
	mux.HandleFunc("GET /v1/tracks/{id}/checkpoints", h.checkpoints)
	mux.HandleFunc("GET /v1/tracks/{id}/bestlaps", h.bestLaps)
	mux.HandleFunc("POST /v1/checkpoints", h.compute)
	if h.laps != nil {
		mux.HandleFunc("GET /v1/tracks/{id}/laps", h.lapStream)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.Tracks(r.Context())
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, http.StatusOK, tracks)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	track, err := h.tracks.Track(r.Context(), r.PathValue("id"))
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, http.StatusOK, track)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.store(w, r, http.StatusCreated)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.store(w, r, http.StatusOK, trackdoc.WithID(r.PathValue("id")))
}

// store accepts a track document. The query parameter "path" selects the
// boundaries by JSONPath.
func (h *Handler) store(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	opts ...trackdoc.Option,
) {
	data, err := eputils.ReadBody(w, r)
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	if p := r.URL.Query().Get("path"); p != "" {
		opts = append(opts, trackdoc.WithBoundsPath(p))
	}
	doc, err := trackdoc.Parse(data, opts...)
	if err != nil {
		eputils.WriteError(w, r, fmt.Errorf("%w: %w", eputils.ErrBadRequest, err))
		return
	}
	track := doc.Track()
	if err := h.tracks.Store(r.Context(), track); err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, status, track)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracks.Delete(r.Context(), r.PathValue("id")); err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkpoints(w http.ResponseWriter, r *http.Request) {
	cps, err := h.tracks.Checkpoints(r.Context(), r.PathValue("id"))
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, http.StatusOK, cps)
}

// compute returns the checkpoints of the posted track document without
// storing it.
func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	data, err := eputils.ReadBody(w, r)
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	opts := []trackdoc.Option{trackdoc.WithID("adhoc")}
	if p := r.URL.Query().Get("path"); p != "" {
		opts = append(opts, trackdoc.WithBoundsPath(p))
	}
	doc, err := trackdoc.Parse(data, opts...)
	if err != nil {
		eputils.WriteError(w, r, fmt.Errorf("%w: %w", eputils.ErrBadRequest, err))
		return
	}
	eputils.WriteJSON(w, http.StatusOK, h.tracks.Compute(r.Context(), doc.Boundaries, doc.Options))
}

// bestLaps returns the leaderboard. Paths are included with ?path=true.
func (h *Handler) bestLaps(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")
	if _, err := h.tracks.Track(r.Context(), trackID); err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	laps, err := h.sessions.Leaderboard(r.Context(), trackID)
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	withPath := r.URL.Query().Get("path") == "true"
	eputils.WriteJSON(w, http.StatusOK,
		lo.Map(laps, func(l *model.BestLap, i int) bestLapResponse {
			ret := bestLapResponse{
				Rank:       i + 1,
				PlayerID:   l.PlayerID,
				LapMs:      l.LapMs,
				LapTime:    lap.FormatLapTime(null.From(l.LapMs)),
				RecordedAt: l.RecordedAt,
			}
			if withPath {
				ret.Path = l.Path
			}
			return ret
		}))
}

// lapStream sends completed laps of the track as server sent events.
func (h *Handler) lapStream(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		eputils.WriteError(w, r, fmt.Errorf("streaming not supported"))
		return
	}
	ch := h.laps.Subscribe()
	defer h.laps.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	h.l.Debug("lap stream started", log.String("track", trackID))
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.TrackID != trackID {
				continue
			}
			if err := writeEvent(w, e); err != nil {
				h.l.Debug("lap stream ended", log.ErrorField(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e *events.LapEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: lap\ndata: %s\n\n", data)
	return err
}

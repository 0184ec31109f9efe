// Package session provides the http endpoints for live timing sessions.
package session

import (
	"fmt"
	"net/http"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/trackline/log"
	eputils "github.com/mpapenbr/trackline/pkg/endpoints/utils"
	"github.com/mpapenbr/trackline/pkg/lap"
	"github.com/mpapenbr/trackline/pkg/service"
)

type (
	Handler struct {
		sessions *service.SessionService
		l        *log.Logger
	}
	// StartRequest creates a session. Omitted lap rules use the defaults.
	StartRequest struct {
		TrackID               string          `json:"trackId"`
		PlayerID              string          `json:"playerId"`
		MinLapMs              null.Val[int64] `json:"minLapMs"`
		RequireAllCheckpoints null.Val[bool]  `json:"requireAllCheckpoints"`
		AllCrossings          bool            `json:"allCrossings"`
	}
	SamplesRequest struct {
		Samples []service.Sample `json:"samples"`
	}
)

func NewHandler(sessions *service.SessionService) *Handler {
	return &Handler{
		sessions: sessions,
		l:        log.Default().Named("http.session"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/sessions", h.list)
	mux.HandleFunc("POST /v1/sessions", h.start)
	mux.HandleFunc("GET /v1/sessions/{id}", h.get)
	mux.HandleFunc("POST /v1/sessions/{id}/samples", h.samples)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.stop)
}

// LapConfig returns the lap rules of the request.
func (req *StartRequest) LapConfig() lap.Config {
	cfg := lap.DefaultConfig()
	if v, ok := req.MinLapMs.Get(); ok {
		cfg.MinLapMs = v
	}
	if v, ok := req.RequireAllCheckpoints.Get(); ok {
		cfg.RequireAllCheckpoints = v
	}
	cfg.AllCrossings = req.AllCrossings
	return cfg
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	eputils.WriteJSON(w, http.StatusOK, h.sessions.Sessions())
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := eputils.ReadJSON(w, r, &req); err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	if req.TrackID == "" || req.PlayerID == "" {
		eputils.WriteError(w, r,
			fmt.Errorf("%w: trackId and playerId are required", eputils.ErrBadRequest))
		return
	}
	if v, ok := req.MinLapMs.Get(); ok && v < 0 {
		eputils.WriteError(w, r,
			fmt.Errorf("%w: minLapMs must not be negative", eputils.ErrBadRequest))
		return
	}
	info, err := h.sessions.Start(r.Context(), req.TrackID, req.PlayerID, req.LapConfig())
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, http.StatusCreated, info)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	info, err := h.sessions.State(r.PathValue("id"))
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) samples(w http.ResponseWriter, r *http.Request) {
	var req SamplesRequest
	if err := eputils.ReadJSON(w, r, &req); err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	upd, err := h.sessions.Update(r.Context(), r.PathValue("id"), req.Samples)
	if err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	eputils.WriteJSON(w, http.StatusOK, upd)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Stop(r.PathValue("id")); err != nil {
		eputils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

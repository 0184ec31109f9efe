package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/events"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/lap"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository/api"
)

var ErrSessionNotFound = errors.New("session not found")

type (
	// Sample is a position of a player at a point in time.
	Sample struct {
		TimeMs int64   `json:"t"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	SessionInfo struct {
		ID             string                 `json:"id"`
		TrackID        string                 `json:"trackId"`
		PlayerID       string                 `json:"playerId"`
		Laps           int                    `json:"laps"`
		StartedAt      time.Time              `json:"startedAt"`
		State          lap.State              `json:"state"`
		Progress       float64                `json:"progress"`
		NextCheckpoint *checkpoint.Checkpoint `json:"nextCheckpoint,omitempty"`
	}
	// SessionUpdate is the outcome of processing a batch of samples.
	SessionUpdate struct {
		Session *SessionInfo       `json:"session"`
		Results []lap.UpdateResult `json:"results"`
		Laps    []*events.LapEvent `json:"laps"`
		Skipped int                `json:"skipped"`
	}
	SessionOption  func(*SessionService)
	SessionService struct {
		tracks    *TrackService
		bestLaps  api.BestLapRepository
		publisher events.Publisher
		tracer    trace.Tracer
		mu        sync.RWMutex
		sessions  map[string]*session
		lapsDone  metric.Int64Counter
		active    metric.Int64UpDownCounter
		now       func() time.Time
		l         *log.Logger
	}
	session struct {
		mu        sync.Mutex
		id        string
		trackID   string
		playerID  string
		cfg       lap.Config
		counter   *lap.Counter
		last      null.Val[Sample]
		path      []geom.Point
		laps      int
		startedAt time.Time
	}
)

func (s Sample) Point() geom.Point {
	return geom.Pt(s.X, s.Y)
}

func WithPublisher(p events.Publisher) SessionOption {
	return func(s *SessionService) {
		s.publisher = p
	}
}

func WithSessionTracer(tracer trace.Tracer) SessionOption {
	return func(s *SessionService) {
		s.tracer = tracer
	}
}

func withClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		s.now = now
	}
}

// NewSessionService creates the service and registers it for changes of
// tracks in tracks.
func NewSessionService(
	tracks *TrackService,
	bestLaps api.BestLapRepository,
	opts ...SessionOption,
) *SessionService {
	ret := &SessionService{
		tracks:    tracks,
		bestLaps:  bestLaps,
		publisher: events.Noop{},
		sessions:  map[string]*session{},
		now:       time.Now,
		l:         log.Default().Named("service.session"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = tracks.tracer
	}
	ret.lapsDone, _ = meter.Int64Counter("trackline.laps.completed",
		metric.WithDescription("number of completed laps"),
		metric.WithUnit("{lap}"))
	ret.active, _ = meter.Int64UpDownCounter("trackline.sessions.active",
		metric.WithDescription("number of active sessions"),
		metric.WithUnit("{session}"))
	tracks.OnTrackChanged(func(ctx context.Context, trackID string) {
		if err := ret.TrackChanged(ctx, trackID); err != nil {
			ret.l.Warn("could not update sessions",
				log.String("track", trackID), log.ErrorField(err))
		}
	})
	return ret
}

// Start creates a session for playerID on a stored track.
func (s *SessionService) Start(
	ctx context.Context,
	trackID, playerID string,
	cfg lap.Config,
) (*SessionInfo, error) {
	cps, err := s.tracks.Checkpoints(ctx, trackID)
	if err != nil {
		return nil, err
	}
	sess := &session{
		id:        uuid.NewString(),
		trackID:   trackID,
		playerID:  playerID,
		cfg:       cfg,
		last:      null.FromPtr[Sample](nil),
		startedAt: s.now(),
	}
	sess.counter = s.newCounter(ctx, sess, cps)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.active.Add(ctx, 1)
	s.l.Info("session started",
		log.String("session", sess.id),
		log.String("track", trackID),
		log.String("player", playerID),
		log.Int("checkpoints", len(cps)))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info(), nil
}

// Update feeds samples into the lap counter of the session. Samples older
// than the previous one are skipped.
//
//nolint:funlen // by design
func (s *SessionService) Update(
	ctx context.Context,
	id string,
	samples []Sample,
) (*SessionUpdate, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("session", id),
			attribute.Int("samples", len(samples))))
	defer span.End()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	ret := &SessionUpdate{
		Results: []lap.UpdateResult{},
		Laps:    []*events.LapEvent{},
	}
	for _, cur := range samples {
		prev, ok := sess.last.Get()
		if !ok {
			sess.last = null.From(cur)
			sess.path = append(sess.path, cur.Point())
			continue
		}
		if cur.TimeMs < prev.TimeMs {
			ret.Skipped++
			continue
		}
		res := sess.counter.Update(prev.Point(), cur.Point(), cur.TimeMs)
		sess.last = null.From(cur)
		ret.Results = append(ret.Results, res)
		if res.LapCompleted {
			// the lap ends with the sample crossing the finish line
			sess.path = append(sess.path, cur.Point())
			ret.Laps = append(ret.Laps, s.lapCompleted(ctx, sess, res))
		}
		if res.CrossedStart {
			sess.path = sess.path[:0]
		}
		sess.path = append(sess.path, cur.Point())
	}
	ret.Session = sess.info()
	return ret, nil
}

func (s *SessionService) lapCompleted(
	ctx context.Context,
	sess *session,
	res lap.UpdateResult,
) *events.LapEvent {
	sess.laps++
	s.lapsDone.Add(ctx, 1, metric.WithAttributes(attribute.String("track", sess.trackID)))
	e := &events.LapEvent{
		SessionID:     sess.id,
		TrackID:       sess.trackID,
		PlayerID:      sess.playerID,
		Lap:           sess.laps,
		LapMs:         res.LastLapMs.GetOrZero(),
		BestLapMs:     res.BestLapMs,
		PrevBestLapMs: res.PrevBestLapMs,
		Improved:      res.Improved(),
		Time:          s.now(),
	}
	s.l.Debug("lap completed",
		log.String("session", sess.id),
		log.Int("lap", e.Lap),
		log.String("time", lap.FormatLapTime(res.LastLapMs)),
		log.Bool("improved", e.Improved))

	if e.Improved {
		best := &model.BestLap{
			TrackID:    sess.trackID,
			PlayerID:   sess.playerID,
			LapMs:      e.LapMs,
			Path:       model.DownsamplePath(sess.path, model.MaxPathPoints),
			RecordedAt: e.Time,
		}
		err := s.bestLaps.Store(ctx, best)
		switch {
		case errors.Is(err, api.ErrNotImproved):
			s.adoptStoredBest(ctx, sess, e)
		case err != nil:
			s.l.Error("could not store best lap",
				log.String("session", sess.id), log.ErrorField(err))
		}
	}
	if err := s.publisher.PublishLap(ctx, e); err != nil {
		s.l.Warn("could not publish lap", log.ErrorField(err))
	}
	return e
}

// adoptStoredBest is used when another session stored a faster lap of the
// same player meanwhile. The counter and the event follow the stored lap.
func (s *SessionService) adoptStoredBest(
	ctx context.Context,
	sess *session,
	e *events.LapEvent,
) {
	stored, err := s.bestLaps.Load(ctx, sess.trackID, sess.playerID)
	if err != nil {
		s.l.Warn("could not load stored best lap",
			log.String("session", sess.id), log.ErrorField(err))
		return
	}
	s.l.Debug("stored best lap is faster",
		log.String("session", sess.id),
		log.String("stored", lap.FormatLapTime(null.From(stored.LapMs))))
	sess.counter.SetBestLap(null.From(stored.LapMs))
	e.BestLapMs = null.From(stored.LapMs)
	e.Improved = false
}

func (s *SessionService) State(id string) (*SessionInfo, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info(), nil
}

// Sessions returns all sessions ordered by start time.
func (s *SessionService) Sessions() []*SessionInfo {
	s.mu.RLock()
	all := lo.Values(s.sessions)
	s.mu.RUnlock()
	ret := lo.Map(all, func(sess *session, _ int) *SessionInfo {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.info()
	})
	slices.SortFunc(ret, func(a, b *SessionInfo) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return ret
}

func (s *SessionService) Stop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.active.Add(context.Background(), -1)
	s.l.Info("session stopped", log.String("session", id))
	return nil
}

// TrackChanged resets all sessions on the track to the current checkpoints.
// Sessions are stopped if the track no longer exists.
func (s *SessionService) TrackChanged(ctx context.Context, trackID string) error {
	s.mu.RLock()
	affected := lo.Filter(lo.Values(s.sessions), func(sess *session, _ int) bool {
		return sess.trackID == trackID
	})
	s.mu.RUnlock()
	if len(affected) == 0 {
		return nil
	}
	cps, err := s.tracks.Checkpoints(ctx, trackID)
	if errors.Is(err, api.ErrNotFound) {
		for _, sess := range affected {
			_ = s.Stop(sess.id)
		}
		return nil
	}
	if err != nil {
		return err
	}
	for _, sess := range affected {
		sess.mu.Lock()
		sess.counter = s.newCounter(ctx, sess, cps)
		sess.last = null.FromPtr[Sample](nil)
		sess.path = nil
		sess.mu.Unlock()
	}
	s.l.Info("sessions reset after track change",
		log.String("track", trackID), log.Int("sessions", len(affected)))
	return nil
}

// Leaderboard returns the best laps of all players on the track.
func (s *SessionService) Leaderboard(ctx context.Context, trackID string) (
	[]*model.BestLap, error,
) {
	return s.bestLaps.LoadByTrack(ctx, trackID)
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, ErrSessionNotFound
}

// newCounter creates a counter seeded with the persisted best lap.
func (s *SessionService) newCounter(
	ctx context.Context,
	sess *session,
	cps []checkpoint.Checkpoint,
) *lap.Counter {
	c := lap.NewCounter(cps,
		lap.WithConfig(sess.cfg),
		lap.WithLogger(s.l.Named("lap").With(log.String("session", sess.id))))
	best, err := s.bestLaps.Load(ctx, sess.trackID, sess.playerID)
	switch {
	case err == nil:
		c.SetBestLap(null.From(best.LapMs))
	case errors.Is(err, api.ErrNotFound):
	default:
		s.l.Warn("could not load best lap", log.ErrorField(err))
	}
	return c
}

// info must be called with sess.mu held.
func (sess *session) info() *SessionInfo {
	st := sess.counter.State()
	ret := &SessionInfo{
		ID:        sess.id,
		TrackID:   sess.trackID,
		PlayerID:  sess.playerID,
		Laps:      sess.laps,
		StartedAt: sess.startedAt,
		State:     st,
		Progress:  st.Progress(),
	}
	if cp, ok := sess.counter.NextCheckpoint(); ok {
		ret.NextCheckpoint = &cp
	}
	return ret
}

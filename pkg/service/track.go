package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository/api"
	"github.com/mpapenbr/trackline/pkg/utils/cache"
	"github.com/mpapenbr/trackline/pkg/utils/cache/loadercache"
)

var meter = otel.Meter("trackline.service")

var ErrInvalidTrack = errors.New("invalid track")

type (
	TrackChangeListener func(ctx context.Context, trackID string)
	TrackOption         func(*TrackService)
	TrackService        struct {
		repos       api.Repositories
		cacheTTL    time.Duration
		cache       cache.Cache[string, []checkpoint.Checkpoint]
		tracer      trace.Tracer
		genDuration metric.Float64Histogram
		mu          sync.Mutex
		listeners   []TrackChangeListener
		l           *log.Logger
	}
)

func WithTracer(tracer trace.Tracer) TrackOption {
	return func(s *TrackService) {
		s.tracer = tracer
	}
}

// WithCacheTTL sets how long generated checkpoints are kept. 0 keeps them
// until the track is changed.
func WithCacheTTL(ttl time.Duration) TrackOption {
	return func(s *TrackService) {
		s.cacheTTL = ttl
	}
}

func NewTrackService(repos api.Repositories, opts ...TrackOption) *TrackService {
	ret := &TrackService{
		repos:    repos,
		cacheTTL: 30 * time.Minute,
		l:        log.Default().Named("service.track"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("trackline")
	}
	ret.genDuration, _ = meter.Float64Histogram("trackline.checkpoints.generate",
		metric.WithDescription("duration of checkpoint generation"),
		metric.WithUnit("s"))
	ret.cache = loadercache.New(
		loadercache.WithLoader[string, []checkpoint.Checkpoint](ret.loadCheckpoints),
		loadercache.WithExpiration[string, []checkpoint.Checkpoint](ret.cacheTTL),
		loadercache.WithLogger[string, []checkpoint.Checkpoint](ret.l.Named("cache")),
	)
	return ret
}

// OnTrackChanged registers fn to be called after a track was stored or deleted.
func (s *TrackService) OnTrackChanged(fn TrackChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *TrackService) Tracks(ctx context.Context) ([]*model.Track, error) {
	return s.repos.Track().LoadAll(ctx)
}

func (s *TrackService) Track(ctx context.Context, id string) (*model.Track, error) {
	return s.repos.Track().LoadByID(ctx, id)
}

// Store creates or replaces the track. Sessions on the track are notified.
func (s *TrackService) Store(ctx context.Context, track *model.Track) error {
	if track.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTrack)
	}
	if len(track.Boundaries) < 2 {
		return fmt.Errorf("%w: need outer and inner boundary, got %d rings",
			ErrInvalidTrack, len(track.Boundaries))
	}
	if err := track.Options.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrack, err)
	}
	if track.Name == "" {
		track.Name = track.ID
	}
	if err := s.repos.Tx().RunInTx(ctx, func(ctx context.Context) error {
		return s.repos.Track().Upsert(ctx, track)
	}); err != nil {
		return err
	}
	s.l.Info("track stored", log.String("track", track.ID))
	s.changed(ctx, track.ID)
	return nil
}

// Delete removes the track together with its best laps.
func (s *TrackService) Delete(ctx context.Context, id string) error {
	if err := s.repos.Tx().RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repos.BestLap().DeleteByTrack(ctx, id); err != nil {
			return err
		}
		n, err := s.repos.Track().DeleteByID(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return api.ErrNotFound
		}
		return nil
	}); err != nil {
		return err
	}
	s.l.Info("track deleted", log.String("track", id))
	s.changed(ctx, id)
	return nil
}

// Checkpoints returns the checkpoints of a stored track.
func (s *TrackService) Checkpoints(ctx context.Context, trackID string) (
	[]checkpoint.Checkpoint, error,
) {
	ctx, span := s.tracer.Start(ctx, "Checkpoints",
		trace.WithAttributes(attribute.String("track", trackID)))
	defer span.End()
	cps, err := s.cache.Get(ctx, trackID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return *cps, nil
}

// Compute generates checkpoints for boundaries which are not stored.
func (s *TrackService) Compute(
	ctx context.Context,
	boundaries []geom.Ring,
	cfg checkpoint.Config,
) []checkpoint.Checkpoint {
	ctx, span := s.tracer.Start(ctx, "Compute")
	defer span.End()
	return s.generate(ctx, boundaries, checkpoint.WithConfig(cfg))
}

func (s *TrackService) loadCheckpoints(ctx context.Context, trackID string) (
	*[]checkpoint.Checkpoint, error,
) {
	track, err := s.repos.Track().LoadByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	cps := s.generate(ctx, track.Boundaries, track.GeneratorOptions()...)
	if len(cps) == 0 {
		s.l.Warn("no checkpoints for track", log.String("track", trackID))
	}
	return &cps, nil
}

func (s *TrackService) generate(
	ctx context.Context,
	boundaries []geom.Ring,
	opts ...checkpoint.Option,
) []checkpoint.Checkpoint {
	start := time.Now()
	opts = append(opts, checkpoint.WithLogger(s.l.Named("checkpoint")))
	cps := checkpoint.Generate(boundaries, opts...)
	s.genDuration.Record(ctx, time.Since(start).Seconds())
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("checkpoints", len(cps)))
	return cps
}

func (s *TrackService) changed(ctx context.Context, trackID string) {
	s.cache.Invalidate(ctx, trackID)
	s.mu.Lock()
	listeners := append([]TrackChangeListener{}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, trackID)
	}
}

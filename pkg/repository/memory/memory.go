// Package memory provides repositories keeping their data in process memory.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository/api"
)

type (
	repositories struct {
		track   *TrackRepository
		bestLap *BestLapRepository
	}
	TrackRepository struct {
		mu     sync.RWMutex
		tracks map[string]model.Track
	}
	BestLapRepository struct {
		mu   sync.RWMutex
		laps map[lapKey]model.BestLap
	}
	lapKey struct {
		trackID, playerID string
	}
	noTx struct{}
)

var (
	_ api.Repositories      = (*repositories)(nil)
	_ api.TrackRepository   = (*TrackRepository)(nil)
	_ api.BestLapRepository = (*BestLapRepository)(nil)
)

func NewRepositories() api.Repositories {
	return &repositories{
		track:   NewTrackRepository(),
		bestLap: NewBestLapRepository(),
	}
}

func (r *repositories) Track() api.TrackRepository     { return r.track }
func (r *repositories) BestLap() api.BestLapRepository { return r.bestLap }
func (r *repositories) Tx() api.TransactionManager     { return noTx{} }
func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func NewTrackRepository() *TrackRepository {
	return &TrackRepository{tracks: map[string]model.Track{}}
}

func (r *TrackRepository) Upsert(ctx context.Context, track *model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.tracks[track.ID]; ok {
		track.CreatedAt = existing.CreatedAt
	} else {
		track.CreatedAt = now
	}
	track.UpdatedAt = now
	r.tracks[track.ID] = cloneTrack(track)
	return nil
}

func (r *TrackRepository) LoadByID(ctx context.Context, id string) (*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tracks[id]; ok {
		return lo.ToPtr(cloneTrack(&t)), nil
	}
	return nil, api.ErrNotFound
}

func (r *TrackRepository) LoadAll(ctx context.Context) ([]*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := lo.Keys(r.tracks)
	slices.Sort(ids)
	return lo.Map(ids, func(id string, _ int) *model.Track {
		t := r.tracks[id]
		return lo.ToPtr(cloneTrack(&t))
	}), nil
}

func (r *TrackRepository) DeleteByID(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracks[id]; !ok {
		return 0, nil
	}
	delete(r.tracks, id)
	return 1, nil
}

func NewBestLapRepository() *BestLapRepository {
	return &BestLapRepository{laps: map[lapKey]model.BestLap{}}
}

func (r *BestLapRepository) Load(ctx context.Context, trackID, playerID string) (
	*model.BestLap, error,
) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.laps[lapKey{trackID, playerID}]; ok {
		return lo.ToPtr(cloneLap(&l)), nil
	}
	return nil, api.ErrNotFound
}

func (r *BestLapRepository) Store(ctx context.Context, lap *model.BestLap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := lapKey{lap.TrackID, lap.PlayerID}
	if cur, ok := r.laps[key]; ok && cur.LapMs <= lap.LapMs {
		return api.ErrNotImproved
	}
	if lap.RecordedAt.IsZero() {
		lap.RecordedAt = time.Now()
	}
	r.laps[key] = cloneLap(lap)
	return nil
}

func (r *BestLapRepository) LoadByTrack(ctx context.Context, trackID string) (
	[]*model.BestLap, error,
) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := lo.FilterMap(lo.Values(r.laps), func(l model.BestLap, _ int) (*model.BestLap, bool) {
		return lo.ToPtr(cloneLap(&l)), l.TrackID == trackID
	})
	model.SortBestLaps(ret)
	return ret, nil
}

func (r *BestLapRepository) DeleteByTrack(ctx context.Context, trackID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for k := range r.laps {
		if k.trackID == trackID {
			delete(r.laps, k)
			count++
		}
	}
	return count, nil
}

func cloneTrack(t *model.Track) model.Track {
	ret := *t
	ret.Boundaries = lo.Map(t.Boundaries, func(r geom.Ring, _ int) geom.Ring {
		return slices.Clone(r)
	})
	return ret
}

func cloneLap(l *model.BestLap) model.BestLap {
	ret := *l
	ret.Path = slices.Clone(l.Path)
	return ret
}

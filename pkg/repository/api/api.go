package api

import (
	"context"
	"errors"

	"github.com/mpapenbr/trackline/pkg/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNotImproved is returned by BestLapRepository.Store if the stored lap
	// is at least as fast as the new one.
	ErrNotImproved = errors.New("lap is not faster than stored best lap")
)

type Repositories interface {
	Track() TrackRepository
	BestLap() BestLapRepository
	Tx() TransactionManager
}

type TrackRepository interface {
	// Upsert stores the track. CreatedAt is kept for existing tracks.
	Upsert(ctx context.Context, track *model.Track) error
	LoadByID(ctx context.Context, id string) (*model.Track, error)
	LoadAll(ctx context.Context) ([]*model.Track, error)
	DeleteByID(ctx context.Context, id string) (int, error)
}

type BestLapRepository interface {
	Load(ctx context.Context, trackID, playerID string) (*model.BestLap, error)
	// Store replaces the best lap of the player on the track if the new lap
	// is faster. Otherwise ErrNotImproved is returned.
	Store(ctx context.Context, lap *model.BestLap) error
	// LoadByTrack returns the best laps of all players ordered by lap time.
	LoadByTrack(ctx context.Context, trackID string) ([]*model.BestLap, error)
	DeleteByTrack(ctx context.Context, trackID string) (int, error)
}

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/mpapenbr/trackline/pkg/geom"
)

// MaxPathPoints is the upper limit of points stored with a best lap.
const MaxPathPoints = 256

// BestLap is the fastest lap of a player on a track.
type BestLap struct {
	TrackID    string       `json:"trackId"`
	PlayerID   string       `json:"playerId"`
	LapMs      int64        `json:"lapMs"`
	Path       []geom.Point `json:"path,omitempty"`
	RecordedAt time.Time    `json:"recordedAt"`
}

// DownsamplePath reduces path to at most maxPoints points keeping the first
// and the last point. Points are picked at evenly spaced indexes.
func DownsamplePath(path []geom.Point, maxPoints int) []geom.Point {
	if maxPoints <= 0 || len(path) <= maxPoints {
		ret := make([]geom.Point, len(path))
		copy(ret, path)
		return ret
	}
	if maxPoints == 1 {
		return []geom.Point{path[0]}
	}
	ret := make([]geom.Point, maxPoints)
	last := len(path) - 1
	for i := range maxPoints {
		ret[i] = path[i*last/(maxPoints-1)]
	}
	return ret
}

// SortBestLaps orders laps by lap time, ties by player id.
func SortBestLaps(laps []*BestLap) {
	slices.SortFunc(laps, func(a, b *BestLap) int {
		if c := cmp.Compare(a.LapMs, b.LapMs); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
}

package lap

import (
	"slices"

	"github.com/aarondl/opt/null"
)

type Direction int8

const (
	Backward Direction = -1
	Unknown  Direction = 0
	Forward  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// State is a snapshot of the counter. Modifying it does not affect the counter.
type State struct {
	CurrentLapStartMs null.Val[int64] `json:"currentLapStartMs"`
	LastLapMs         null.Val[int64] `json:"lastLapMs"`
	BestLapMs         null.Val[int64] `json:"bestLapMs"`
	Armed             bool            `json:"armed"`
	Direction         Direction       `json:"direction"`
	StartIndex        int             `json:"startIndex"`
	ExpectedIndex     int             `json:"expectedIndex"`
	Activated         []int           `json:"activated"`
	LastStartCrossMs  int64           `json:"lastStartCrossMs"`
	NumCheckpoints    int             `json:"numCheckpoints"`
}

// Progress is the share of non-start checkpoints activated in the current lap.
func (s State) Progress() float64 {
	nonStart := s.NumCheckpoints - 1
	if nonStart <= 0 {
		return 0
	}
	return float64(len(s.Activated)) / float64(nonStart)
}

// CurrentLapMs is the elapsed time of the running lap, null if no lap was started.
func (s State) CurrentLapMs(nowMs int64) null.Val[int64] {
	if start, ok := s.CurrentLapStartMs.Get(); ok {
		return null.From(nowMs - start)
	}
	return null.FromPtr[int64](nil)
}

func (s State) IsActivated(id int) bool {
	_, found := slices.BinarySearch(s.Activated, id)
	return found
}

// UpdateResult describes what happened during one Counter.Update call.
type UpdateResult struct {
	CrossedStart  bool            `json:"crossedStart"`
	CrossedID     null.Val[int]   `json:"crossedId"`
	LapCompleted  bool            `json:"lapCompleted"`
	LastLapMs     null.Val[int64] `json:"lastLapMs"`
	BestLapMs     null.Val[int64] `json:"bestLapMs"`
	PrevBestLapMs null.Val[int64] `json:"prevBestLapMs"`
	Activated     []int           `json:"activated"`
	Direction     Direction       `json:"direction"`
}

// Improved reports whether this update completed a lap faster than the
// previous best lap (or the first lap at all).
func (r UpdateResult) Improved() bool {
	if !r.LapCompleted {
		return false
	}
	prev, ok := r.PrevBestLapMs.Get()
	if !ok {
		return true
	}
	return r.LastLapMs.GetOrZero() < prev
}

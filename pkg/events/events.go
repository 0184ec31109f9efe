// Package events distributes completed laps to interested parties.
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aarondl/opt/null"
)

const SubjectPrefix = "trackline.laps"

type (
	// LapEvent is emitted for every completed lap of a session.
	LapEvent struct {
		SessionID     string          `json:"sessionId"`
		TrackID       string          `json:"trackId"`
		PlayerID      string          `json:"playerId"`
		Lap           int             `json:"lap"`
		LapMs         int64           `json:"lapMs"`
		BestLapMs     null.Val[int64] `json:"bestLapMs"`
		PrevBestLapMs null.Val[int64] `json:"prevBestLapMs"`
		Improved      bool            `json:"improved"`
		Time          time.Time       `json:"time"`
	}
	Publisher interface {
		PublishLap(ctx context.Context, e *LapEvent) error
	}
	// Noop discards all events.
	Noop struct{}
	// Multi forwards events to all contained publishers.
	Multi []Publisher
)

func (Noop) PublishLap(ctx context.Context, e *LapEvent) error { return nil }

func (m Multi) PublishLap(ctx context.Context, e *LapEvent) error {
	var err error
	for _, p := range m {
		err = errors.Join(err, p.PublishLap(ctx, e))
	}
	return err
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// Subject returns the subject lap events of a track are published on.
// Characters with special meaning in subjects are replaced by '_'.
func Subject(trackID string) string {
	return SubjectPrefix + "." + subjectReplacer.Replace(trackID)
}

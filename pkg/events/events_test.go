package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []*LapEvent
	err    error
}

func (r *recorder) PublishLap(ctx context.Context, e *LapEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func TestSubject(t *testing.T) {
	tests := []struct {
		trackID string
		want    string
	}{
		{"oval", "trackline.laps.oval"},
		{"my.track", "trackline.laps.my_track"},
		{"a b*>", "trackline.laps.a_b__"},
	}
	for _, tt := range tests {
		t.Run(tt.trackID, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.trackID))
		})
	}
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("down")}
	m := Multi{ok, Noop{}, failing}
	e := &LapEvent{TrackID: "oval", LapMs: 12345}
	err := m.PublishLap(context.Background(), e)
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, []*LapEvent{e}, ok.events)
	assert.Equal(t, []*LapEvent{e}, failing.events)
}

func TestLocal(t *testing.T) {
	l := NewLocal()
	defer l.Close()
	sub := l.Subscribe()
	e := &LapEvent{
		TrackID:   "oval",
		LapMs:     12345,
		BestLapMs: null.From[int64](12345),
		Improved:  true,
	}
	require.NoError(t, l.PublishLap(context.Background(), e))
	select {
	case got := <-sub:
		assert.Equal(t, e, got)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	l.Unsubscribe(sub)
}

func TestLocalCancelledContext(t *testing.T) {
	l := NewLocal()
	defer l.Close()
	// fill the queue without a running consumer for the source
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var err error
	for range 100 {
		if err = l.PublishLap(ctx, &LapEvent{}); err != nil {
			break
		}
	}
	// either queued or cancelled, never blocking
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

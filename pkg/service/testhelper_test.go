package service

import (
	"context"
	"math"
	"sync"

	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/events"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.LapEvent
}

func (p *recordingPublisher) PublishLap(ctx context.Context, e *events.LapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func ring(r float64, n int) geom.Ring {
	ret := make(geom.Ring, n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ret[i] = geom.Pt(r*math.Cos(a), r*math.Sin(a))
	}
	return ret
}

// annulusTrack is a ring shaped track between radius 200 and 500.
func annulusTrack(id string) *model.Track {
	return &model.Track{
		ID:         id,
		Name:       "Annulus " + id,
		Boundaries: []geom.Ring{ring(500, 64), ring(200, 64)},
	}
}

func angleOf(p geom.Point) float64 {
	return math.Atan2(p.Y, p.X)
}

// driveSamples returns samples on a circle of radius 350 starting slightly
// before the start checkpoint, moving in the order of the checkpoint ids.
// One lap takes perLap samples, 100ms apart.
func driveSamples(cps []checkpoint.Checkpoint, laps float64, perLap int, t0 int64) []Sample {
	start := angleOf(cps[0].Midpoint())
	next := angleOf(cps[1].Midpoint())
	diff := math.Remainder(next-start, 2*math.Pi)
	dir := 1.0
	if diff < 0 {
		dir = -1.0
	}
	step := 2 * math.Pi / float64(perLap)
	a0 := start - dir*3*step + step/3 // avoid hitting a checkpoint exactly
	count := int(laps * float64(perLap))
	ret := make([]Sample, count)
	for k := range count {
		a := a0 + dir*float64(k)*step
		ret[k] = Sample{
			TimeMs: t0 + int64(k)*100,
			X:      350 * math.Cos(a),
			Y:      350 * math.Sin(a),
		}
	}
	return ret
}

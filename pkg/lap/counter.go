// Package lap implements lap detection and timing on top of an ordered list of
// checkpoints. A lap counts only if the checkpoints were crossed in a
// consistent direction between two start line crossings.
package lap

import (
	"math"
	"sort"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/geom"
)

// padding applied to the checkpoint bounding boxes before the exact test
const boundsPadding = 10

type (
	// Counter must not be used from multiple goroutines concurrently.
	Counter struct {
		cfg         Config
		l           *log.Logger
		checkpoints []checkpoint.Checkpoint
		bounds      []geom.Rect
		state       state
	}
	state struct {
		currentLapStartMs null.Val[int64]
		lastLapMs         null.Val[int64]
		bestLapMs         null.Val[int64]
		armed             bool
		direction         Direction
		startIndex        int
		expectedIndex     int
		activated         idSet
		lastStartCrossMs  int64
	}
	crossing struct {
		idx int
		t   float64
	}
)

func NewCounter(checkpoints []checkpoint.Checkpoint, opts ...Option) *Counter {
	cfg := NewConfig(opts...)
	if cfg.l == nil {
		cfg.l = log.Default().Named("lap")
	}
	cps := make([]checkpoint.Checkpoint, len(checkpoints))
	copy(cps, checkpoints)
	bounds := make([]geom.Rect, len(cps))
	for i := range cps {
		bounds[i] = geom.BoundsOf(cps[i].A, cps[i].B).Pad(boundsPadding)
	}
	c := &Counter{
		cfg:         cfg,
		l:           cfg.l,
		checkpoints: cps,
		bounds:      bounds,
	}
	c.state = state{
		startIndex: checkpoint.StartIndex(cps),
		activated:  newIDSet(len(cps)),
		bestLapMs:  null.FromPtr[int64](nil),
	}
	c.resetTransient()
	return c
}

func (c *Counter) Config() Config {
	return c.cfg
}

func (c *Counter) Checkpoints() []checkpoint.Checkpoint {
	return c.checkpoints
}

// RequiredCheckpoints is the number of activated non-start checkpoints needed
// to complete a lap.
func (c *Counter) RequiredCheckpoints() int {
	nonStart := max(0, len(c.checkpoints)-1)
	if c.cfg.RequireAllCheckpoints {
		return nonStart
	}
	return int(math.Ceil(float64(nonStart) * partialCheckpointShare))
}

// Update processes the movement from prev to cur at time nowMs.
func (c *Counter) Update(prev, cur geom.Point, nowMs int64) UpdateResult {
	res := UpdateResult{
		CrossedID:     null.FromPtr[int](nil),
		LastLapMs:     c.state.lastLapMs,
		BestLapMs:     c.state.bestLapMs,
		PrevBestLapMs: c.state.bestLapMs,
		Activated:     c.state.activated.IDs(),
		Direction:     c.state.direction,
	}
	hits := c.crossings(prev, cur)
	if len(hits) == 0 {
		return res
	}
	if !c.cfg.AllCrossings {
		hits = hits[:1]
	}
	for _, h := range hits {
		c.processCrossing(&c.checkpoints[h.idx], nowMs, &res)
	}
	res.LastLapMs = c.state.lastLapMs
	res.BestLapMs = c.state.bestLapMs
	res.Activated = c.state.activated.IDs()
	res.Direction = c.state.direction
	return res
}

// crossings returns the checkpoints intersected by prev-cur. The order is the
// checkpoint order unless all crossings are processed, in which case the hits
// are ordered by their position along the movement.
func (c *Counter) crossings(prev, cur geom.Point) []crossing {
	move := geom.BoundsOf(prev, cur)
	var ret []crossing
	for i := range c.checkpoints {
		if !move.Overlaps(c.bounds[i]) {
			continue
		}
		cp := &c.checkpoints[i]
		t, ok := geom.SegmentIntersection(prev, cur, cp.A, cp.B)
		if !ok {
			continue
		}
		ret = append(ret, crossing{idx: i, t: t})
		if !c.cfg.AllCrossings {
			return ret
		}
	}
	sort.SliceStable(ret, func(a, b int) bool { return ret[a].t < ret[b].t })
	return ret
}

func (c *Counter) processCrossing(cp *checkpoint.Checkpoint, nowMs int64, res *UpdateResult) {
	res.CrossedID = null.From(cp.ID)
	if cp.IsStart {
		res.CrossedStart = true
		if c.completesLap(nowMs) {
			c.completeLap(nowMs)
			res.LapCompleted = true
		}
		c.state.currentLapStartMs = null.From(nowMs)
		c.state.lastStartCrossMs = nowMs
		c.state.armed = true
		return
	}

	n := len(c.checkpoints)
	if cp.ID < 0 || cp.ID >= n {
		c.l.Debug("ignoring checkpoint with id out of range", log.Int("id", cp.ID))
		return
	}
	switch {
	case c.state.direction == Unknown:
		start := c.state.startIndex
		forward := (cp.ID - start + n) % n
		backward := (start - cp.ID + n) % n
		if forward <= backward {
			c.state.direction = Forward
		} else {
			c.state.direction = Backward
		}
		c.state.activated.Add(cp.ID)
		c.state.expectedIndex = c.advance(cp.ID)
		c.l.Debug("direction detected",
			log.Int("id", cp.ID),
			log.Stringer("direction", c.state.direction),
			log.Int("expected", c.state.expectedIndex))
	case cp.ID == c.state.expectedIndex:
		c.state.activated.Add(cp.ID)
		c.state.expectedIndex = c.advance(cp.ID)
	default:
		// wrong order or already activated
	}
}

// advance returns the next expected index after id in the current direction,
// skipping the start checkpoint.
func (c *Counter) advance(id int) int {
	n := len(c.checkpoints)
	d := int(c.state.direction)
	next := (id + d + n) % n
	if next == c.state.startIndex {
		next = (next + d + n) % n
	}
	return next
}

func (c *Counter) completesLap(nowMs int64) bool {
	return c.state.armed &&
		nowMs-c.state.lastStartCrossMs >= c.cfg.MinLapMs &&
		c.state.activated.Len() >= c.RequiredCheckpoints()
}

func (c *Counter) completeLap(nowMs int64) {
	lapMs := nowMs - c.state.currentLapStartMs.GetOrZero()
	c.state.lastLapMs = null.From(lapMs)
	if best, ok := c.state.bestLapMs.Get(); !ok || lapMs < best {
		c.state.bestLapMs = null.From(lapMs)
	}
	c.state.activated.Clear()
	c.state.direction = Unknown
	c.l.Debug("lap completed",
		log.Int64("lapMs", lapMs),
		log.Int64("bestMs", c.state.bestLapMs.GetOrZero()))
}

// State returns a snapshot of the current state.
func (c *Counter) State() State {
	return State{
		CurrentLapStartMs: c.state.currentLapStartMs,
		LastLapMs:         c.state.lastLapMs,
		BestLapMs:         c.state.bestLapMs,
		Armed:             c.state.armed,
		Direction:         c.state.direction,
		StartIndex:        c.state.startIndex,
		ExpectedIndex:     c.state.expectedIndex,
		Activated:         c.state.activated.IDs(),
		LastStartCrossMs:  c.state.lastStartCrossMs,
		NumCheckpoints:    len(c.checkpoints),
	}
}

// NextCheckpoint returns the checkpoint expected next. Before the direction is
// known this is the start line. ok is false if there are no checkpoints.
func (c *Counter) NextCheckpoint() (cp checkpoint.Checkpoint, ok bool) {
	if len(c.checkpoints) == 0 {
		return checkpoint.Checkpoint{}, false
	}
	idx := c.state.expectedIndex
	if idx < 0 || idx >= len(c.checkpoints) {
		idx = c.state.startIndex
	}
	return c.checkpoints[idx], true
}

// SetBestLap injects a best lap time, usually read from persistence.
func (c *Counter) SetBestLap(ms null.Val[int64]) {
	c.state.bestLapMs = ms
}

// ResetOnTrackChange clears all lap progress including the best lap.
// Callers re-inject the best lap of the new track with SetBestLap.
func (c *Counter) ResetOnTrackChange() {
	c.resetTransient()
	c.state.bestLapMs = null.FromPtr[int64](nil)
}

func (c *Counter) resetTransient() {
	c.state.currentLapStartMs = null.FromPtr[int64](nil)
	c.state.lastLapMs = null.FromPtr[int64](nil)
	c.state.armed = false
	c.state.direction = Unknown
	c.state.expectedIndex = -1
	c.state.activated.Clear()
	c.state.lastStartCrossMs = 0
}

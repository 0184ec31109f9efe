// Package checkpoint derives an ordered list of transversal checkpoint segments
// from the outer and inner boundary of a closed track.
package checkpoint

import (
	"math"

	"github.com/mpapenbr/trackline/pkg/geom"
)

// Checkpoint is a segment from a point near the inner boundary (A) to a point
// near the outer boundary (B). IDs are contiguous starting at 0, the checkpoint
// with id 0 is the start/finish line.
type Checkpoint struct {
	ID      int        `json:"id"`
	A       geom.Point `json:"a"`
	B       geom.Point `json:"b"`
	IsStart bool       `json:"isStart"`
}

func (c Checkpoint) Midpoint() geom.Point {
	return c.A.Lerp(c.B, 0.5)
}

// Tangent is the angle (radians) of the direction A->B.
func (c Checkpoint) Tangent() float64 {
	d := c.B.Sub(c.A)
	return math.Atan2(d.Y, d.X)
}

func (c Checkpoint) Length() float64 {
	return c.A.Dist(c.B)
}

// StartIndex returns the index of the start checkpoint, 0 if none is flagged.
func StartIndex(cps []Checkpoint) int {
	for i := range cps {
		if cps[i].IsStart {
			return i
		}
	}
	return 0
}

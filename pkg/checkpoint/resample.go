package checkpoint

import (
	"errors"

	"github.com/mpapenbr/trackline/pkg/geom"
)

var ErrDegenerateRing = errors.New("ring has zero length")

// Resample redistributes the closed ring to n points evenly spaced by arc length.
// The first output point is the first ring point.
func Resample(ring geom.Ring, n int) ([]geom.Point, error) {
	if len(ring) < 2 || n <= 0 {
		return nil, ErrDegenerateRing
	}
	closed := ring.Closed()
	cum := cumulativeLength(closed)
	total := cum[len(cum)-1]
	if total <= 0 {
		return nil, ErrDegenerateRing
	}

	ret := make([]geom.Point, n)
	seg := 0
	for i := range n {
		target := float64(i) / float64(n) * total
		// targets are increasing, continue the scan where the last one stopped
		for seg < len(cum)-2 && cum[seg+1] < target {
			seg++
		}
		start, end := cum[seg], cum[seg+1]
		progress := 0.0
		if end > start {
			progress = (target - start) / (end - start)
		}
		ret[i] = closed[seg].Lerp(closed[seg+1], progress)
	}
	return ret, nil
}

func cumulativeLength(pts []geom.Point) []float64 {
	ret := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		ret[i] = ret[i-1] + pts[i-1].Dist(pts[i])
	}
	return ret
}

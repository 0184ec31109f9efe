package checkpoint

import (
	"math"

	"github.com/mpapenbr/trackline/pkg/geom"
)

// circle returns a regular polygon with n vertices. The first vertex is at
// angle start (radians).
func circle(r float64, n int, ccw bool, start float64) geom.Ring {
	ret := make(geom.Ring, n)
	dir := 1.0
	if !ccw {
		dir = -1.0
	}
	for i := range n {
		a := start + dir*2*math.Pi*float64(i)/float64(n)
		ret[i] = geom.Pt(r*math.Cos(a), r*math.Sin(a))
	}
	return ret
}

func square(size float64) geom.Ring {
	return geom.Ring{{0, 0}, {size, 0}, {size, size}, {0, size}}
}

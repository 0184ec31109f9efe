package geom

import "math"

// ParallelEps is the cross product magnitude below which two segments are
// treated as parallel and never intersect.
const ParallelEps = 1e-10

type Rect struct {
	Min, Max Point
}

func BoundsOf(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r
}

func (r Rect) Pad(d float64) Rect {
	return Rect{
		Min: Point{r.Min.X - d, r.Min.Y - d},
		Max: Point{r.Max.X + d, r.Max.Y + d},
	}
}

func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

// SegmentIntersection reports whether p1-p2 and q1-q2 intersect. t is the
// position of the intersection on p1-p2 in [0,1].
// Segments with |cross| < ParallelEps never intersect, including collinear overlaps.
func SegmentIntersection(p1, p2, q1, q2 Point) (t float64, ok bool) {
	r := p2.Sub(p1)
	s := q2.Sub(q1)
	denom := r.Cross(s)
	if math.Abs(denom) < ParallelEps {
		return 0, false
	}
	qp := q1.Sub(p1)
	t = qp.Cross(s) / denom
	u := qp.Cross(r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

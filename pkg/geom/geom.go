// Package geom holds the planar primitives used by checkpoint generation and
// lap detection.
package geom

import "math"

type (
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	// Ring is a closed loop. The edge from the last to the first point is implicit.
	Ring []Point
)

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(o Point) Point     { return Point{p.X + o.X, p.Y + o.Y} }
func (p Point) Sub(o Point) Point     { return Point{p.X - o.X, p.Y - o.Y} }
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }
func (p Point) Dot(o Point) float64   { return p.X*o.X + p.Y*o.Y }
func (p Point) Cross(o Point) float64 { return p.X*o.Y - p.Y*o.X }
func (p Point) Len() float64          { return math.Hypot(p.X, p.Y) }
func (p Point) Dist(o Point) float64  { return p.Sub(o).Len() }
func (p Point) Dist2(o Point) float64 { d := p.Sub(o); return d.Dot(d) }
func (p Point) Equal(o Point) bool    { return p.X == o.X && p.Y == o.Y }
func (p Point) Lerp(o Point, t float64) Point {
	return Point{p.X + (o.X-p.X)*t, p.Y + (o.Y-p.Y)*t}
}

// SignedArea computes the shoelace area. Counter-clockwise rings are positive
// in a y-up coordinate system.
func (r Ring) SignedArea() float64 {
	if len(r) < 3 {
		return 0
	}
	sum := 0.0
	for i := range r {
		a := r[i]
		b := r[(i+1)%len(r)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Closed returns the ring with the first point appended when the ring is not
// explicitly closed yet.
func (r Ring) Closed() Ring {
	if len(r) == 0 || r[0].Equal(r[len(r)-1]) {
		return r
	}
	ret := make(Ring, len(r), len(r)+1)
	copy(ret, r)
	return append(ret, r[0])
}

// Perimeter is the length of the ring including the closing edge.
func (r Ring) Perimeter() float64 {
	if len(r) < 2 {
		return 0
	}
	total := 0.0
	for i := range r {
		total += r[i].Dist(r[(i+1)%len(r)])
	}
	return total
}

// Contains reports whether p lies inside the ring (even-odd ray casting).
// Points exactly on an edge may be reported either way.
func (r Ring) Contains(p Point) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// MinEdgeDist2 is the smallest squared distance between p and any edge of the ring.
func (r Ring) MinEdgeDist2(p Point) float64 {
	best := math.Inf(1)
	n := len(r)
	for i := range r {
		d := PointSegmentDist2(p, r[i], r[(i+1)%n])
		if d < best {
			best = d
		}
	}
	return best
}

// PointSegmentDist2 returns the squared distance between p and the segment a-b.
func PointSegmentDist2(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Dist2(a)
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist2(a.Lerp(b, t))
}

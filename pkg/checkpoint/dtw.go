package checkpoint

import (
	"math"

	"github.com/mpapenbr/trackline/pkg/geom"
)

// Pair links an inner sample to its corresponding outer sample.
type Pair struct {
	Inner int `json:"inner"`
	Outer int `json:"outer"`
}

// band stores the DTW cost matrix for rows 0..n restricted to |i-j| <= w.
// Cells outside the band are +Inf, except (0,0) which is 0.
type band struct {
	n, w  int
	width int
	cells []float64
}

func newBand(n, w int) *band {
	b := &band{n: n, w: w, width: 2*w + 1}
	b.cells = make([]float64, (n+1)*b.width)
	for i := range b.cells {
		b.cells[i] = math.Inf(1)
	}
	return b
}

func (b *band) index(i, j int) (int, bool) {
	if i < 0 || j < 0 || i > b.n || j > b.n {
		return 0, false
	}
	k := j - (i - b.w)
	if k < 0 || k >= b.width {
		return 0, false
	}
	return i*b.width + k, true
}

func (b *band) get(i, j int) float64 {
	if idx, ok := b.index(i, j); ok {
		return b.cells[idx]
	}
	return math.Inf(1)
}

func (b *band) set(i, j int, v float64) {
	if idx, ok := b.index(i, j); ok {
		b.cells[idx] = v
	}
}

// ComputeDTWPath computes a monotonic correspondence between inner and the
// outer ring rotated by offset, using a Sakoe-Chiba band of half-width window.
// Outer indexes of the result are taken modulo n.
func ComputeDTWPath(inner, outer []geom.Point, offset, window, n int) []Pair {
	if n <= 0 {
		return nil
	}
	if window < 0 {
		window = 0
	}
	if window > n {
		window = n
	}
	outerAt := func(j int) geom.Point {
		return outer[(j+offset)%n]
	}

	cost := newBand(n, window)
	cost.set(0, 0, 0)
	for i := 1; i <= n; i++ {
		lo := max(1, i-window)
		hi := min(n, i+window)
		p := inner[i-1]
		for j := lo; j <= hi; j++ {
			dist := p.Dist2(outerAt(j - 1))
			cost.set(i, j, dist+min(
				cost.get(i-1, j-1),
				cost.get(i-1, j),
				cost.get(i, j-1),
			))
		}
	}

	path := make([]Pair, 0, n+window)
	i, j := n, n
	for i > 0 && j > 0 {
		path = append(path, Pair{Inner: i - 1, Outer: (j - 1 + offset) % n})
		match := cost.get(i-1, j-1)
		insert := cost.get(i-1, j)
		del := cost.get(i, j-1)
		switch {
		case match <= insert && match <= del:
			i--
			j--
		case insert <= del:
			i--
		default:
			j--
		}
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

package checkpoint

import (
	"sort"

	"github.com/mpapenbr/trackline/pkg/geom"
)

// ClassifyRings returns the outer (largest area) and inner (second largest)
// ring. ok is false if fewer than two rings are given.
// Rings with equal area keep their input order.
func ClassifyRings(rings []geom.Ring) (outer, inner geom.Ring, ok bool) {
	if len(rings) < 2 {
		return nil, nil, false
	}
	idx := make([]int, len(rings))
	areas := make([]float64, len(rings))
	for i := range rings {
		idx[i] = i
		areas[i] = rings[i].Area()
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return areas[idx[a]] > areas[idx[b]]
	})
	return rings[idx[0]], rings[idx[1]], true
}

// sameWinding returns inner reversed if its orientation differs from outer.
func sameWinding(outer, inner geom.Ring) geom.Ring {
	if (outer.SignedArea() < 0) == (inner.SignedArea() < 0) {
		return inner
	}
	ret := make(geom.Ring, len(inner))
	for i := range inner {
		ret[len(inner)-1-i] = inner[i]
	}
	return ret
}

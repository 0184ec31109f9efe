package checkpoint

import "github.com/mpapenbr/trackline/pkg/geom"

// SegmentInsideTrack checks samples strictly interior points of a-b. Each must
// lie inside outer, outside inner and farther than edgeEps from every inner edge.
func SegmentInsideTrack(inner, outer geom.Ring, a, b geom.Point, samples int, edgeEps float64) bool {
	eps2 := edgeEps * edgeEps
	for k := 1; k <= samples; k++ {
		p := a.Lerp(b, float64(k)/float64(samples+1))
		if !outer.Contains(p) {
			return false
		}
		if inner.Contains(p) {
			return false
		}
		if inner.MinEdgeDist2(p) <= eps2 {
			return false
		}
	}
	return true
}

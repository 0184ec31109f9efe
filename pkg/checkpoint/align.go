package checkpoint

import (
	"math"

	"github.com/mpapenbr/trackline/pkg/geom"
)

const (
	coarseStep = 8
	fineStride = 4
)

// FindBestAlignment returns the rotational offset in [0,n) which minimizes the
// squared distance between inner[i] and outer[(i+offset) mod n].
// A coarse scan over every 8th offset is refined by a scan of the 8 neighbors
// on each side.
func FindBestAlignment(inner, outer []geom.Point, n int) int {
	if n <= 0 {
		return 0
	}
	best := 0
	bestCost := math.Inf(1)
	for offset := 0; offset < n; offset += coarseStep {
		if c := alignmentCost(inner, outer, n, offset, coarseStep); c < bestCost {
			best, bestCost = offset, c
		}
	}

	// costs of different strides are not comparable
	coarse := best
	bestCost = alignmentCost(inner, outer, n, coarse, fineStride)
	for d := -coarseStep; d <= coarseStep; d++ {
		offset := ((coarse+d)%n + n) % n
		if c := alignmentCost(inner, outer, n, offset, fineStride); c < bestCost {
			best, bestCost = offset, c
		}
	}
	return best
}

func alignmentCost(inner, outer []geom.Point, n, offset, stride int) float64 {
	total := 0.0
	for i := 0; i < n; i += stride {
		total += inner[i].Dist2(outer[(i+offset)%n])
	}
	return total
}

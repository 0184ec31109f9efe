package checkpoint

import (
	"sort"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/geom"
)

type Generator struct {
	cfg *Config
}

func NewGenerator(opts ...Option) *Generator {
	return &Generator{cfg: newConfig(opts...)}
}

// Generate is a shortcut for NewGenerator(opts...).Generate(boundaries).
func Generate(boundaries []geom.Ring, opts ...Option) []Checkpoint {
	return NewGenerator(opts...).Generate(boundaries)
}

func (g *Generator) Config() Config {
	return *g.cfg
}

// Generate computes the checkpoints for the given boundaries. The result is
// empty if the boundaries do not describe a track (less than two rings or a
// ring without length). Identical input yields identical output.
func (g *Generator) Generate(boundaries []geom.Ring) []Checkpoint {
	cfg := g.cfg
	outer, inner, ok := ClassifyRings(boundaries)
	if !ok {
		cfg.l.Debug("not enough rings for checkpoints", log.Int("rings", len(boundaries)))
		return []Checkpoint{}
	}
	innerRes, err := Resample(sameWinding(outer, inner), cfg.N)
	if err != nil {
		cfg.l.Warn("inner ring cannot be resampled", log.ErrorField(err))
		return []Checkpoint{}
	}
	outerRes, err := Resample(outer, cfg.N)
	if err != nil {
		cfg.l.Warn("outer ring cannot be resampled", log.ErrorField(err))
		return []Checkpoint{}
	}

	offset := FindBestAlignment(innerRes, outerRes, cfg.N)
	path := ComputeDTWPath(innerRes, outerRes, offset, cfg.Window, cfg.N)
	if len(path) == 0 {
		return []Checkpoint{}
	}

	ret := []Checkpoint{}
	rejected := 0
	for target := 0; target < cfg.N; target += cfg.Stride {
		k := sort.Search(len(path), func(i int) bool { return path[i].Inner >= target })
		if k == len(path) {
			k = len(path) - 1
		}
		a := innerRes[path[k].Inner]
		b := outerRes[path[k].Outer]
		if !SegmentInsideTrack(inner, outer, a, b, cfg.ValidationSamples, cfg.EdgeEps) {
			rejected++
			continue
		}
		ret = append(ret, Checkpoint{ID: len(ret), A: a, B: b, IsStart: len(ret) == 0})
	}
	cfg.l.Debug("checkpoints computed",
		log.Int("n", cfg.N),
		log.Int("offset", offset),
		log.Int("checkpoints", len(ret)),
		log.Int("rejected", rejected))
	return ret
}

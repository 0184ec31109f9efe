//nolint:funlen,lll // ok for tests
package checkpoint

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/pkg/geom"
)

func TestResample(t *testing.T) {
	got, err := Resample(square(100), 8)
	require.NoError(t, err)
	want := []geom.Point{{0, 0}, {50, 0}, {100, 0}, {100, 50}, {100, 100}, {50, 100}, {0, 100}, {0, 50}}
	require.Len(t, got, 8)
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, 1e-9, "x of %d", i)
		assert.InDelta(t, want[i].Y, got[i].Y, 1e-9, "y of %d", i)
	}
}

func TestResampleUniformSpacing(t *testing.T) {
	// vertices with very different density along the sides
	ring := geom.Ring{{0, 0}, {10, 0}, {12, 0}, {13, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 99}, {0, 98}}
	got, err := Resample(ring, 40)
	require.NoError(t, err)
	require.Len(t, got, 40)
	for i := range got {
		next := got[(i+1)%len(got)]
		assert.InDelta(t, 10.0, got[i].Dist(next), 1e-9, "spacing at %d", i)
	}
}

func TestResampleExplicitlyClosed(t *testing.T) {
	open, err := Resample(square(100), 16)
	require.NoError(t, err)
	closedRing := append(square(100), geom.Pt(0, 0))
	closed, err := Resample(closedRing, 16)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(open, closed))
}

func TestResampleDegenerate(t *testing.T) {
	tests := []struct {
		name string
		ring geom.Ring
	}{
		{name: "empty", ring: geom.Ring{}},
		{name: "single point", ring: geom.Ring{{1, 1}}},
		{name: "zero length", ring: geom.Ring{{1, 1}, {1, 1}, {1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resample(tt.ring, 16)
			assert.ErrorIs(t, err, ErrDegenerateRing)
		})
	}
}

func TestClassifyRings(t *testing.T) {
	big := circle(500, 32, true, 0)
	bigCW := circle(500, 32, false, 0)
	small := circle(200, 12, true, 0)
	smallCW := circle(200, 12, false, 0)
	tiny := circle(10, 6, true, 0)
	tests := []struct {
		name      string
		rings     []geom.Ring
		wantOuter geom.Ring
		wantInner geom.Ring
		wantOk    bool
	}{
		{name: "ordered", rings: []geom.Ring{big, small}, wantOuter: big, wantInner: small, wantOk: true},
		{name: "reversed", rings: []geom.Ring{small, big}, wantOuter: big, wantInner: small, wantOk: true},
		{name: "outer clockwise", rings: []geom.Ring{small, bigCW}, wantOuter: bigCW, wantInner: small, wantOk: true},
		{name: "inner clockwise", rings: []geom.Ring{smallCW, big}, wantOuter: big, wantInner: smallCW, wantOk: true},
		{name: "three rings", rings: []geom.Ring{tiny, small, big}, wantOuter: big, wantInner: small, wantOk: true},
		{name: "one ring", rings: []geom.Ring{big}},
		{name: "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outer, inner, ok := ClassifyRings(tt.rings)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantOuter, outer)
			assert.Equal(t, tt.wantInner, inner)
		})
	}
}

func TestFindBestAlignment(t *testing.T) {
	const n = 64
	inner := circle(200, n, true, 0)
	tests := []struct {
		name   string
		offset int
	}{
		{name: "none", offset: 0},
		{name: "coarse step", offset: 16},
		{name: "needs refinement", offset: 13},
		{name: "wraps", offset: 61},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// outer[(i+offset) mod n] is at the angle of inner[i]
			outer := circle(500, n, true, -2*math.Pi*float64(tt.offset)/n)
			assert.Equal(t, tt.offset, FindBestAlignment(inner, outer, n))
		})
	}
}

func TestComputeDTWPathIdentity(t *testing.T) {
	const n = 32
	inner := circle(200, n, true, 0)
	outer := circle(500, n, true, 0)
	path := ComputeDTWPath(inner, outer, 0, n/8, n)
	require.Len(t, path, n)
	for i, p := range path {
		assert.Equal(t, Pair{Inner: i, Outer: i}, p)
	}
}

func TestComputeDTWPathProperties(t *testing.T) {
	const n = 128
	inner, err := Resample(circle(200, 17, true, 0.3), n)
	require.NoError(t, err)
	outer, err := Resample(circle(500, 50, true, 0), n)
	require.NoError(t, err)
	offset := FindBestAlignment(inner, outer, n)
	path := ComputeDTWPath(inner, outer, offset, n/8, n)

	require.NotEmpty(t, path)
	assert.Equal(t, 0, path[0].Inner)
	assert.Equal(t, n-1, path[len(path)-1].Inner)
	seen := make([]bool, n)
	for i, p := range path {
		seen[p.Inner] = true
		assert.GreaterOrEqual(t, p.Outer, 0)
		assert.Less(t, p.Outer, n)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Inner, path[i-1].Inner)
		}
	}
	for i := range seen {
		assert.True(t, seen[i], "inner index %d not covered", i)
	}
}

func TestSegmentInsideTrack(t *testing.T) {
	outer := circle(500, 64, true, 0)
	inner := circle(200, 64, true, 0)
	tests := []struct {
		name string
		a, b geom.Point
		want bool
	}{
		{name: "radial", a: geom.Pt(200, 0), b: geom.Pt(500, 0), want: true},
		{name: "crosses inner", a: geom.Pt(-300, 0), b: geom.Pt(300, 0), want: false},
		{name: "leaves outer", a: geom.Pt(400, 0), b: geom.Pt(700, 0), want: false},
		{name: "inside inner", a: geom.Pt(-50, 0), b: geom.Pt(50, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentInsideTrack(inner, outer, tt.a, tt.b, 7, DefaultEdgeEps))
		})
	}
}

func TestSegmentInsideTrackEdgeEps(t *testing.T) {
	outer := square(100)
	inner := geom.Ring{{40, 40}, {60, 40}, {60, 60}, {40, 60}}
	// the midpoint sample (50,40) sits exactly on the inner edge
	a := geom.Pt(30, 40)
	b := geom.Pt(70, 40)
	assert.False(t, SegmentInsideTrack(inner, outer, a, b, 1, DefaultEdgeEps))
	// same segment moved slightly away from the edge
	a.Y, b.Y = 39, 39
	assert.True(t, SegmentInsideTrack(inner, outer, a, b, 1, DefaultEdgeEps))
}

func TestGenerateAnnulus(t *testing.T) {
	tests := []struct {
		name  string
		outer geom.Ring
		inner geom.Ring
	}{
		{name: "same winding", outer: circle(500, 64, true, 0), inner: circle(200, 37, true, 0)},
		{name: "opposite winding", outer: circle(500, 64, true, 0), inner: circle(200, 37, false, 1)},
		{name: "inner first", outer: circle(500, 90, false, 0.5), inner: circle(200, 20, false, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cps := Generate([]geom.Ring{tt.inner, tt.outer})
			assert.Greater(t, len(cps), 150)
			for i, cp := range cps {
				assert.Equal(t, i, cp.ID)
				assert.Equal(t, i == 0, cp.IsStart)
				for k := 1; k <= DefaultValidationSamples; k++ {
					r := cp.A.Lerp(cp.B, float64(k)/float64(DefaultValidationSamples+1)).Len()
					assert.Greater(t, r, 200.0)
					assert.Less(t, r, 500.0)
				}
			}
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	rings := []geom.Ring{circle(480, 77, true, 0.1), circle(230, 31, true, 2)}
	first := Generate(rings, WithN(256), WithStride(5))
	second := Generate(rings, WithN(256), WithStride(5))
	assert.NotEmpty(t, first)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestGenerateNoTrack(t *testing.T) {
	tests := []struct {
		name  string
		rings []geom.Ring
	}{
		{name: "nil"},
		{name: "one ring", rings: []geom.Ring{circle(500, 64, true, 0)}},
		{name: "zero length ring", rings: []geom.Ring{circle(500, 64, true, 0), {{3, 3}, {3, 3}, {3, 3}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cps := Generate(tt.rings)
			assert.NotNil(t, cps)
			assert.Empty(t, cps)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewGenerator().Config()
	assert.Equal(t, 512, cfg.N)
	assert.Equal(t, 3, cfg.Stride)
	assert.Equal(t, 7, cfg.ValidationSamples)
	assert.Equal(t, 64, cfg.Window)

	cfg = NewGenerator(WithConfig(Config{N: 128}), WithStride(2)).Config()
	assert.Equal(t, 128, cfg.N)
	assert.Equal(t, 16, cfg.Window)
	assert.Equal(t, 2, cfg.Stride)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"limits", Config{N: MaxN, Window: MaxN / 2, ValidationSamples: MaxValidationSamples}, false},
		{"n too large", Config{N: 100000}, true},
		{"negative n", Config{N: -1}, true},
		{"window too large", Config{N: 256, Window: 129}, true},
		{"window on default n", Config{Window: DefaultN/2 + 1}, true},
		{"huge window", Config{N: 100000, Window: 100000}, true},
		{"stride too large", Config{N: 64, Stride: 65}, true},
		{"too many samples", Config{ValidationSamples: 65}, true},
		{"negative eps", Config{EdgeEps: -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfigOutOfRange)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckpointMidpointTangent(t *testing.T) {
	cp := Checkpoint{A: geom.Pt(0, 0), B: geom.Pt(0, 10)}
	assert.Equal(t, geom.Pt(0, 5), cp.Midpoint())
	assert.InDelta(t, math.Pi/2, cp.Tangent(), 1e-12)
	assert.InDelta(t, 10.0, cp.Length(), 1e-12)
}

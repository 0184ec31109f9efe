package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/trackline/pkg/geom"
)

func TestDownsamplePath(t *testing.T) {
	path := make([]geom.Point, 1000)
	for i := range path {
		path[i] = geom.Pt(float64(i), 0)
	}
	tests := []struct {
		name    string
		max     int
		wantLen int
	}{
		{name: "reduced", max: 256, wantLen: 256},
		{name: "short enough", max: 2000, wantLen: 1000},
		{name: "no limit", max: 0, wantLen: 1000},
		{name: "two", max: 2, wantLen: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DownsamplePath(path, tt.max)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, path[0], got[0])
			assert.Equal(t, path[len(path)-1], got[len(got)-1])
		})
	}
}

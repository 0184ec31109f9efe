package lap

import (
	"testing"

	"github.com/aarondl/opt/null"
	"github.com/stretchr/testify/assert"
)

func TestFormatLapTime(t *testing.T) {
	tests := []struct {
		name string
		ms   null.Val[int64]
		want string
	}{
		{name: "null", ms: null.FromPtr[int64](nil), want: "—"},
		{name: "zero", ms: null.From(int64(0)), want: "0:00.000"},
		{name: "seconds", ms: null.From(int64(5007)), want: "0:05.007"},
		{name: "minute", ms: null.From(int64(61234)), want: "1:01.234"},
		{name: "long", ms: null.From(int64(600000)), want: "10:00.000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLapTime(tt.ms))
		})
	}
}

func TestIDSet(t *testing.T) {
	s := newIDSet(70)
	assert.True(t, s.Add(3))
	assert.False(t, s.Add(3))
	assert.True(t, s.Add(69))
	assert.False(t, s.Add(70))
	assert.False(t, s.Add(-1))
	assert.True(t, s.Has(69))
	assert.False(t, s.Has(4))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{3, 69}, s.IDs())
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.IDs())
}

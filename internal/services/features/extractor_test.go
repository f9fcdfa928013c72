package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogReturns(t *testing.T) {
	assert.Nil(t, LogReturns([]float64{100}))

	r := LogReturns([]float64{100, 110, 0, 99})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
}

func TestStdDevIsPopulation(t *testing.T) {
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3}))
}

func TestRollingVolatility(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2*math.Sqrt(20), RollingVolatility(xs, 20), 1e-12)
}

func TestTrueRange(t *testing.T) {
	tests := []struct {
		name            string
		high, low, prev float64
		want            float64
	}{
		{"inside range", 10, 8, 9, 2},
		{"gap up", 15, 14, 10, 5},
		{"gap down", 8, 7, 12, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrueRange(tt.high, tt.low, tt.prev))
		})
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.Push(v)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []float64{3, 4, 5}, r.Values())

	last, ok := r.Last(0)
	require.True(t, ok)
	assert.Equal(t, 5.0, last)
	prev, ok := r.Last(1)
	require.True(t, ok)
	assert.Equal(t, 4.0, prev)
	_, ok = r.Last(3)
	assert.False(t, ok)
}

package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	out := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(out[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(out[1]), 1e-6)
	assert.InDelta(t, float64(1), magnitude(out), 1e-6)
}

func TestNormalize_ZeroVector(t *testing.T) {
	out := Normalize([]float32{0, 0, 0})
	assert.InDelta(t, float64(1), magnitude(out), 1e-6)
}

func magnitude(v []float32) float64 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	return math.Sqrt(sumSq)
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 1, ClampInt(0, 1, 10))
	assert.Equal(t, 10, ClampInt(20, 1, 10))
	assert.Equal(t, 5, ClampInt(5, 1, 10))
}

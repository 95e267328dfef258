package stopdetect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_Symmetry(t *testing.T) {
	a := []float64{20.60814, -103.49088}
	b := []float64{19.432608, -99.133209}

	dAB := haversine(a[0], a[1], b[0], b[1])
	dBA := haversine(b[0], b[1], a[0], a[1])
	assert.InDelta(t, dAB, dBA, 1.0)
}

func TestHaversine_TriangleInequality(t *testing.T) {
	a := []float64{20.60814, -103.49088}
	b := []float64{20.61, -103.49}
	c := []float64{19.432608, -99.133209}

	dAB := haversine(a[0], a[1], b[0], b[1])
	dBC := haversine(b[0], b[1], c[0], c[1])
	dAC := haversine(a[0], a[1], c[0], c[1])

	assert.LessOrEqual(t, dAC, dAB+dBC+1.0)
}

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	d := haversine(20.6, -103.4, 20.6, -103.4)
	assert.True(t, math.Abs(d) < 1e-6)
}

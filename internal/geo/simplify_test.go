package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestSimplifyLine_StraightLineKeepsEndpoints(t *testing.T) {
	for _, n := range []int{3, 10, 1000} {
		pts := make([]orb.Point, n)
		for i := range pts {
			pts[i] = orb.Point{float64(i) * 0.001, float64(i) * 0.002}
		}

		out := SimplifyLine(pts, DefaultTolerance)

		assert.Equal(t, []orb.Point{pts[0], pts[n-1]}, out, "n=%d", n)
	}
}

func TestSimplifyLine_RemovesPointWithinTolerance(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.005, DefaultTolerance / 2}, {0.01, 0}}

	out := SimplifyLine(pts, DefaultTolerance)

	assert.Equal(t, []orb.Point{{0, 0}, {0.01, 0}}, out)
}

func TestSimplifyLine_KeepsCorner(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.01, 0}, {0.01, 0.01}}

	out := SimplifyLine(pts, DefaultTolerance)

	assert.Equal(t, pts, out)
}

func TestSimplifyLine_ShortInputs(t *testing.T) {
	assert.Empty(t, SimplifyLine(nil, DefaultTolerance))
	assert.Equal(t, []orb.Point{{1, 1}}, SimplifyLine([]orb.Point{{1, 1}}, DefaultTolerance))
}

func TestSimplifyLine_NearStraightStroke(t *testing.T) {
	pts := make([]orb.Point, 500)
	for i := range pts {
		x := float64(i) / 499 * 0.01
		pts[i] = orb.Point{x, 1e-6 * math.Sin(float64(i))}
	}

	out := SimplifyLine(pts, DefaultTolerance)

	assert.LessOrEqual(t, len(out), 5)
	assert.Equal(t, pts[0], out[0])
	assert.Equal(t, pts[len(pts)-1], out[len(out)-1])
}

func TestSimplifyLine_LeavesInputIntact(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.005, DefaultTolerance / 2}, {0.01, 0}, {0.01, 0.01}}
	orig := append([]orb.Point(nil), pts...)

	out := SimplifyLine(pts, DefaultTolerance)

	assert.Equal(t, []orb.Point{{0, 0}, {0.01, 0}, {0.01, 0.01}}, out)
	assert.Equal(t, orig, pts)
}

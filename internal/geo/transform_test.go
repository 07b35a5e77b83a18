package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPointNear(t *testing.T, want, got orb.Point) {
	t.Helper()
	assert.InDelta(t, want[0], got[0], 1e-9)
	assert.InDelta(t, want[1], got[1], 1e-9)
}

func TestCentroid(t *testing.T) {
	assertPointNear(t, orb.Point{3, 4}, Centroid(orb.Point{3, 4}))
	assertPointNear(t, orb.Point{1, 1}, Centroid(orb.LineString{{0, 0}, {2, 2}}))

	square := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	assertPointNear(t, orb.Point{1, 1}, Centroid(square))
}

func TestTranslate_DoesNotModifyInput(t *testing.T) {
	in := orb.LineString{{0, 0}, {1, 1}}
	out := Translate(in, 10, -5).(orb.LineString)

	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}}, in)
	assert.Equal(t, orb.LineString{{10, -5}, {11, -4}}, out)
}

func TestTranslate_Nested(t *testing.T) {
	in := orb.Collection{
		orb.Point{0, 0},
		orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
	}
	out := Translate(in, 1, 1).(orb.Collection)

	require.Len(t, out, 2)
	assert.Equal(t, orb.Point{1, 1}, out[0])
	assert.Equal(t, orb.Point{2, 2}, out[1].(orb.MultiPolygon)[0][0][2])
}

func TestRotate_AboutCentroid(t *testing.T) {
	in := orb.LineString{{-1, 0}, {1, 0}}
	out := Rotate(in, 90).(orb.LineString)

	assertPointNear(t, orb.Point{0, -1}, out[0])
	assertPointNear(t, orb.Point{0, 1}, out[1])
	assertPointNear(t, Centroid(in), Centroid(out))
}

func TestScale_AboutCentroid(t *testing.T) {
	in := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	out := Scale(in, 2).(orb.Polygon)

	assertPointNear(t, orb.Point{-1, -1}, out[0][0])
	assertPointNear(t, orb.Point{3, 3}, out[0][2])
	assertPointNear(t, Centroid(in), Centroid(out))
	assert.Equal(t, orb.Point{0, 0}, in[0][0], "input must be untouched")
}

func TestArrowHead(t *testing.T) {
	head := ArrowHead(orb.Point{0, 0}, orb.Point{10, 0}, 4)

	require.Len(t, head, 4)
	assert.Equal(t, head[0], head[3], "ring is closed")
	assert.Equal(t, orb.Point{10, 0}, head[0])
	assert.Less(t, head[1][0], 10.0, "barbs sit behind the tip")
	assert.Less(t, head[2][0], 10.0)
	assert.InDelta(t, -head[1][1], head[2][1], 1e-9, "barbs are symmetric")
}

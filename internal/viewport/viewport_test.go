package viewport

import (
	"math"
	"testing"

	"github.com/OCAP2/sitac/pkg/core"
	"github.com/stretchr/testify/assert"
)

var paris = core.LngLat{Lng: 2.35, Lat: 48.85}

func newTestViewport() *Viewport {
	return New(Options{Center: paris, Zoom: 12, Width: 800, Height: 600})
}

func assertLngLatNear(t *testing.T, want, got core.LngLat) {
	t.Helper()
	assert.InDelta(t, want.Lng, got.Lng, 1e-8)
	assert.InDelta(t, want.Lat, got.Lat, 1e-8)
}

func TestProject_CenterIsCanvasMiddle(t *testing.T) {
	v := newTestViewport()

	p := v.Project(paris)

	assert.InDelta(t, 400.0, p.X, 1e-4)
	assert.InDelta(t, 300.0, p.Y, 1e-4)
}

func TestProject_UnprojectRoundTrip(t *testing.T) {
	v := newTestViewport()
	v.SetBearing(30)

	for _, p := range []core.Point{{X: 0, Y: 0}, {X: 123.5, Y: 456.25}, {X: 800, Y: 600}} {
		back := v.Project(v.Unproject(p))
		assert.InDelta(t, p.X, back.X, 1e-4)
		assert.InDelta(t, p.Y, back.Y, 1e-4)
	}
}

func TestProject_NorthIsUpAndEastIsRight(t *testing.T) {
	v := newTestViewport()

	east := v.Project(core.LngLat{Lng: paris.Lng + 0.01, Lat: paris.Lat})
	north := v.Project(core.LngLat{Lng: paris.Lng, Lat: paris.Lat + 0.01})

	assert.Greater(t, east.X, 400.0)
	assert.InDelta(t, 300.0, east.Y, 1e-4)
	assert.Less(t, north.Y, 300.0)
}

func TestProject_ZoomDoublesDistances(t *testing.T) {
	v := newTestViewport()
	ll := core.LngLat{Lng: paris.Lng + 0.01, Lat: paris.Lat}
	before := v.Project(ll).X - 400

	v.SetZoom(13)

	assert.InDelta(t, 2*before, v.Project(ll).X-400, 1e-4)
}

func TestMetersPerPixel(t *testing.T) {
	v := New(Options{Zoom: 0, Width: 512, Height: 512})
	// one 512 px tile covers the equator
	assert.InDelta(t, 2*math.Pi*6378137/512, v.MetersPerPixel(), 1e-4)
}

func TestSetZoom_Clamps(t *testing.T) {
	v := newTestViewport()
	v.SetZoom(40)
	assert.Equal(t, float64(MaxZoom), v.Zoom())
	v.SetZoom(-3)
	assert.Equal(t, float64(MinZoom), v.Zoom())
}

func TestOnViewChange(t *testing.T) {
	v := newTestViewport()
	var got []ChangeKind
	remove := v.OnViewChange(func(k ChangeKind) { got = append(got, k) })

	v.JumpTo(core.LngLat{Lng: 3, Lat: 45}, 10)
	v.JumpTo(core.LngLat{Lng: 3, Lat: 45}, 10)
	v.SetBearing(90)
	v.SetPitch(30)

	remove()
	v.SetZoom(5)

	assert.Equal(t, []ChangeKind{ChangeMove, ChangeZoom, ChangeRotate, ChangePitch}, got)
	assert.Equal(t, 30.0, v.Pitch())
}

func TestPan_RespectsInteractive(t *testing.T) {
	v := newTestViewport()
	target := v.Unproject(core.Point{X: 300, Y: 300})

	assert.True(t, v.Pan(100, 0))
	assertLngLatNear(t, target, v.Center())

	v.SetInteractive(false)
	assert.False(t, v.Pan(100, 0))
	assert.False(t, v.ZoomAround(core.Point{X: 10, Y: 10}, 1))
	assertLngLatNear(t, target, v.Center())
}

func TestZoomAround_KeepsPointFixed(t *testing.T) {
	v := newTestViewport()
	p := core.Point{X: 650, Y: 120}
	pinned := v.Unproject(p)

	assert.True(t, v.ZoomAround(p, 1.5))

	after := v.Project(pinned)
	assert.InDelta(t, p.X, after.X, 1e-4)
	assert.InDelta(t, p.Y, after.Y, 1e-4)
	assert.Equal(t, 13.5, v.Zoom())
}

func TestBounds(t *testing.T) {
	v := newTestViewport()
	b := v.Bounds()

	assert.True(t, b.Contains([2]float64{paris.Lng, paris.Lat}))
	assert.Less(t, b.Min[0], paris.Lng)
	assert.Greater(t, b.Max[1], paris.Lat)
}

// Package viewport is a headless Web Mercator map camera. It provides the
// projection and view-change events the editing surface is pinned to.
package viewport

import (
	"math"
	"sync"

	"github.com/OCAP2/sitac/internal/geo"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
)

const (
	MinZoom         = 0
	MaxZoom         = 22
	DefaultTileSize = 512
)

// ChangeKind identifies what part of the camera changed
type ChangeKind string

const (
	ChangeMove   ChangeKind = "move"
	ChangeZoom   ChangeKind = "zoom"
	ChangeRotate ChangeKind = "rotate"
	ChangePitch  ChangeKind = "pitch"
	ChangeResize ChangeKind = "resize"
)

// Options configures a Viewport
type Options struct {
	Center   core.LngLat
	Zoom     float64
	Width    float64
	Height   float64
	TileSize float64
}

// Viewport is a map camera over a width×height pixel canvas
type Viewport struct {
	mu          sync.RWMutex
	center      core.LngLat
	zoom        float64
	bearing     float64
	pitch       float64
	width       float64
	height      float64
	tileSize    float64
	interactive bool

	lmu       sync.Mutex
	listeners map[int]func(ChangeKind)
	nextID    int
}

// New creates an interactive Viewport.
func New(opts Options) *Viewport {
	if opts.TileSize <= 0 {
		opts.TileSize = DefaultTileSize
	}
	return &Viewport{
		center:      opts.Center,
		zoom:        clampZoom(opts.Zoom),
		width:       opts.Width,
		height:      opts.Height,
		tileSize:    opts.TileSize,
		interactive: true,
		listeners:   make(map[int]func(ChangeKind)),
	}
}

func clampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// worldScale returns world pixels per Mercator meter at zoom z.
func (v *Viewport) worldScale(z float64) float64 {
	return v.tileSize * math.Exp2(z) / (2 * math.Pi * geo.EarthRadius)
}

// world converts a coordinate to world pixels (y down) at zoom z.
func (v *Viewport) world(ll core.LngLat, z float64) core.Point {
	m := geo.Mercator(ll)
	s := v.worldScale(z)
	half := math.Pi * geo.EarthRadius
	return core.Point{X: (m[0] + half) * s, Y: (half - m[1]) * s}
}

func (v *Viewport) fromWorld(p core.Point, z float64) core.LngLat {
	s := v.worldScale(z)
	half := math.Pi * geo.EarthRadius
	return geo.FromMercator(orb.Point{p.X/s - half, half - p.Y/s})
}

// Project converts a geographic coordinate to canvas pixels.
func (v *Viewport) Project(ll core.LngLat) core.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()

	p := v.world(ll, v.zoom)
	c := v.world(v.center, v.zoom)
	dx, dy := p.X-c.X, p.Y-c.Y

	sin, cos := math.Sincos(v.bearing * math.Pi / 180)
	return core.Point{
		X: dx*cos + dy*sin + v.width/2,
		Y: -dx*sin + dy*cos + v.height/2,
	}
}

// Unproject converts canvas pixels to a geographic coordinate.
func (v *Viewport) Unproject(p core.Point) core.LngLat {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.unprojectLocked(p)
}

// Zoom returns the current zoom level.
func (v *Viewport) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

// Center returns the current camera center.
func (v *Viewport) Center() core.LngLat {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center
}

// Bearing returns the map rotation in degrees clockwise from north.
func (v *Viewport) Bearing() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bearing
}

// Pitch returns the map tilt in degrees.
func (v *Viewport) Pitch() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pitch
}

// Size returns the canvas size in pixels.
func (v *Viewport) Size() (w, h float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

// MetersPerPixel returns the ground resolution at the camera center.
func (v *Viewport) MetersPerPixel() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return geo.MetersPerPixel(v.center.Lat, v.zoom, v.tileSize)
}

// Bounds returns the geographic bounding box of the visible canvas.
func (v *Viewport) Bounds() orb.Bound {
	w, h := v.Size()
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, p := range []core.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}} {
		ll := v.Unproject(p)
		b = b.Extend(orb.Point{ll.Lng, ll.Lat})
	}
	return b
}

// JumpTo moves the camera without animation. It always applies, regardless
// of the interactive flag.
func (v *Viewport) JumpTo(center core.LngLat, zoom float64) {
	v.mu.Lock()
	moved := v.center != center
	zoomed := v.zoom != clampZoom(zoom)
	v.center = center
	v.zoom = clampZoom(zoom)
	v.mu.Unlock()

	if moved {
		v.emit(ChangeMove)
	}
	if zoomed {
		v.emit(ChangeZoom)
	}
}

// SetCenter moves the camera center.
func (v *Viewport) SetCenter(center core.LngLat) {
	v.JumpTo(center, v.Zoom())
}

// SetZoom changes the zoom level, clamped to [MinZoom, MaxZoom].
func (v *Viewport) SetZoom(zoom float64) {
	v.JumpTo(v.Center(), zoom)
}

// SetBearing rotates the map.
func (v *Viewport) SetBearing(deg float64) {
	v.mu.Lock()
	v.bearing = core.NormalizeRotation(deg)
	v.mu.Unlock()
	v.emit(ChangeRotate)
}

// SetPitch tilts the map. Pitch is reported to listeners but the projection
// stays top-down.
func (v *Viewport) SetPitch(deg float64) {
	v.mu.Lock()
	v.pitch = math.Max(0, math.Min(85, deg))
	v.mu.Unlock()
	v.emit(ChangePitch)
}

// Resize changes the canvas size.
func (v *Viewport) Resize(w, h float64) {
	v.mu.Lock()
	v.width, v.height = w, h
	v.mu.Unlock()
	v.emit(ChangeResize)
}

// Pan is an operator drag of the map by a pixel offset. It is ignored while
// navigation is disabled.
func (v *Viewport) Pan(dx, dy float64) bool {
	if !v.Interactive() {
		return false
	}
	w, h := v.Size()
	v.SetCenter(v.Unproject(core.Point{X: w/2 - dx, Y: h/2 - dy}))
	return true
}

// ZoomAround is an operator wheel/pinch zoom keeping the geographic point
// under p fixed. It is ignored while navigation is disabled.
func (v *Viewport) ZoomAround(p core.Point, delta float64) bool {
	if !v.Interactive() {
		return false
	}
	pinned := v.Unproject(p)

	v.mu.Lock()
	v.zoom = clampZoom(v.zoom + delta)
	v.mu.Unlock()

	// shift the center so that pinned stays under p
	moved := v.Project(pinned)
	w, h := v.Size()
	v.mu.Lock()
	v.center = v.unprojectLocked(core.Point{X: w/2 + moved.X - p.X, Y: h/2 + moved.Y - p.Y})
	v.mu.Unlock()

	v.emit(ChangeZoom)
	v.emit(ChangeMove)
	return true
}

func (v *Viewport) unprojectLocked(p core.Point) core.LngLat {
	dx, dy := p.X-v.width/2, p.Y-v.height/2
	sin, cos := math.Sincos(v.bearing * math.Pi / 180)
	c := v.world(v.center, v.zoom)
	return v.fromWorld(core.Point{X: c.X + dx*cos - dy*sin, Y: c.Y + dx*sin + dy*cos}, v.zoom)
}

// SetInteractive enables or disables operator navigation gestures.
func (v *Viewport) SetInteractive(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interactive = enabled
}

// Interactive reports whether operator navigation is enabled.
func (v *Viewport) Interactive() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.interactive
}

// OnViewChange registers fn for every camera change and returns a function
// that removes it. Listeners run synchronously on the caller's goroutine.
func (v *Viewport) OnViewChange(fn func(ChangeKind)) func() {
	v.lmu.Lock()
	defer v.lmu.Unlock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	return func() {
		v.lmu.Lock()
		defer v.lmu.Unlock()
		delete(v.listeners, id)
	}
}

func (v *Viewport) emit(kind ChangeKind) {
	v.lmu.Lock()
	fns := make([]func(ChangeKind), 0, len(v.listeners))
	for i := 0; i < v.nextID; i++ {
		if fn, ok := v.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	v.lmu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

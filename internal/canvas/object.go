// Package canvas keeps the live, editable objects of the annotation surface
// pinned to the map and bridges them to the feature store in both directions.
package canvas

import (
	"math"
	"unicode/utf8"

	"github.com/OCAP2/sitac/internal/assets"
	"github.com/OCAP2/sitac/pkg/core"
)

const (
	// defaultIconSize is the footprint of a symbol whose icon is not loaded
	defaultIconSize = 32
	handleRadius    = 6
	rotateOffset    = 20
	minHitSlop      = 4
)

// Object is one live object on the editing surface. Center, ScaleX/Y and
// Angle are the current render state; GeoPosition, BaseZoom and BaseScaleX/Y
// are captured at commit time and only change on re-commit.
type Object struct {
	Feature core.Feature
	Icon    *assets.Icon

	Center core.Point
	ScaleX float64
	ScaleY float64
	Angle  float64

	GeoPosition core.LngLat
	BaseZoom    float64
	BaseScaleX  float64
	BaseScaleY  float64

	// Offset (screen pixels) and Stretch hold an uncommitted move and resize.
	// They survive view changes and are folded away on re-commit.
	Offset  core.Point
	Stretch float64
}

// ID returns the feature id of the object.
func (o *Object) ID() string {
	return o.Feature.ID
}

// newObject builds an object from a committed feature. It is not positioned.
func newObject(f core.Feature, icon *assets.Icon) *Object {
	o := &Object{
		Feature:     f.Clone(),
		Icon:        icon,
		Angle:       f.Style.Rotation,
		GeoPosition: f.Anchor,
		BaseZoom:    f.Style.BaseZoom,
		BaseScaleX:  1,
		BaseScaleY:  1,
		Stretch:     1,
	}
	switch s := f.Shape.(type) {
	case *core.Symbol:
		o.BaseScaleX, o.BaseScaleY = s.ScaleX, s.ScaleY
	case *core.Freehand:
		o.BaseScaleX, o.BaseScaleY = s.ScaleX, s.ScaleY
	}
	o.ScaleX, o.ScaleY = o.BaseScaleX, o.BaseScaleY
	return o
}

// baseSize returns the unscaled footprint in base pixels.
func (o *Object) baseSize() (w, h float64) {
	switch s := o.Feature.Shape.(type) {
	case *core.Symbol:
		if o.Icon != nil {
			iw, ih := o.Icon.Size()
			return float64(iw), float64(ih)
		}
		return defaultIconSize, defaultIconSize
	case *core.Line:
		return s.Length, o.Feature.Style.StrokeWidth
	case *core.Arrow:
		// the head is three stroke widths wide
		return s.Length, 3 * o.Feature.Style.StrokeWidth
	case *core.Rect:
		return s.Width, s.Height
	case *core.Circle:
		return 2 * s.Radius, 2 * s.Radius
	case *core.Text:
		return 0.6 * s.Size * float64(utf8.RuneCountInString(s.Content)), s.Size
	case *core.Polygon:
		return extent(s.Points)
	case *core.Freehand:
		return extent(s.Path)
	}
	return 0, 0
}

// Size returns the current rendered footprint in screen pixels.
func (o *Object) Size() (w, h float64) {
	w, h = o.baseSize()
	return w * o.ScaleX, h * o.ScaleY
}

func extent(pts []core.Point) (w, h float64) {
	if len(pts) == 0 {
		return 0, 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return maxX - minX, maxY - minY
}

// local converts a screen point into the object's unrotated frame, with the
// origin at the object's center.
func (o *Object) local(p core.Point) core.Point {
	d := p.Sub(o.Center)
	sin, cos := math.Sincos(-o.Angle * math.Pi / 180)
	return core.Point{X: d.X*cos - d.Y*sin, Y: d.X*sin + d.Y*cos}
}

// contains reports whether p lies on the object's rotated bounds.
func (o *Object) contains(p core.Point) bool {
	w, h := o.Size()
	slop := math.Max(minHitSlop, o.Feature.Style.StrokeWidth/2)
	l := o.local(p)
	return math.Abs(l.X) <= w/2+slop && math.Abs(l.Y) <= h/2+slop
}

// onResizeHandle reports whether p is on the bottom-right resize control.
func (o *Object) onResizeHandle(p core.Point) bool {
	w, h := o.Size()
	return o.local(p).Dist(core.Point{X: w / 2, Y: h / 2}) <= handleRadius
}

// onRotateHandle reports whether p is on the rotation control above the object.
func (o *Object) onRotateHandle(p core.Point) bool {
	_, h := o.Size()
	return o.local(p).Dist(core.Point{X: 0, Y: -h/2 - rotateOffset}) <= handleRadius
}

// fold re-commits the current render state into the feature. Types with
// explicit dimensions absorb the render scale; symbols and freehand strokes
// keep it as their base scale.
func (o *Object) fold(anchor core.LngLat, zoom float64) {
	sx, sy := o.ScaleX, o.ScaleY

	switch s := o.Feature.Shape.(type) {
	case *core.Symbol:
		s.ScaleX, s.ScaleY = sx, sy
	case *core.Freehand:
		s.ScaleX, s.ScaleY = sx, sy
	case *core.Line:
		s.Length *= sx
		sx, sy = 1, 1
	case *core.Arrow:
		s.Length *= sx
		sx, sy = 1, 1
	case *core.Rect:
		s.Width *= sx
		s.Height *= sy
		sx, sy = 1, 1
	case *core.Circle:
		s.Radius *= sx
		sx, sy = 1, 1
	case *core.Text:
		s.Size *= sy
		sx, sy = 1, 1
	case *core.Polygon:
		for i := range s.Points {
			s.Points[i].X *= sx
			s.Points[i].Y *= sy
		}
		sx, sy = 1, 1
	}

	o.GeoPosition = anchor
	o.BaseZoom = zoom
	o.Offset = core.Point{}
	o.Stretch = 1
	o.BaseScaleX, o.BaseScaleY = sx, sy
	o.ScaleX, o.ScaleY = sx, sy
	o.Angle = core.NormalizeRotation(o.Angle)
	o.Feature.Style.Rotation = o.Angle
}

// feature serializes the object's commit state.
func (o *Object) feature() core.Feature {
	f := o.Feature.Clone()
	f.Anchor = o.GeoPosition
	f.Style.BaseZoom = o.BaseZoom
	switch s := f.Shape.(type) {
	case *core.Symbol:
		s.ScaleX, s.ScaleY = o.BaseScaleX, o.BaseScaleY
	case *core.Freehand:
		s.ScaleX, s.ScaleY = o.BaseScaleX, o.BaseScaleY
	}
	return f
}

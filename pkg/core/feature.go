// pkg/core/feature.go
package core

import (
	"math"

	"github.com/google/uuid"
)

// FeatureType is the type tag of an annotation
type FeatureType string

const (
	TypeSymbol   FeatureType = "symbol"
	TypeLine     FeatureType = "line"
	TypeArrow    FeatureType = "arrow"
	TypePolygon  FeatureType = "polygon"
	TypeRect     FeatureType = "rect"
	TypeCircle   FeatureType = "circle"
	TypeText     FeatureType = "text"
	TypeFreehand FeatureType = "freehand"
)

// FeatureTypes lists every annotation type in a stable order.
var FeatureTypes = []FeatureType{
	TypeSymbol, TypeLine, TypeArrow, TypePolygon,
	TypeRect, TypeCircle, TypeText, TypeFreehand,
}

// Valid reports whether t is a known annotation type.
func (t FeatureType) Valid() bool {
	for _, known := range FeatureTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LineStyle is the stroke pattern of an annotation
type LineStyle string

const (
	LineSolid   LineStyle = "solid"
	LineDashed  LineStyle = "dashed"
	LineDotDash LineStyle = "dot-dash"
)

// Valid reports whether s is a known line style.
func (s LineStyle) Valid() bool {
	return s == LineSolid || s == LineDashed || s == LineDotDash
}

// LngLat is a WGS84 coordinate in degrees
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Finite reports whether both components are finite numbers.
func (ll LngLat) Finite() bool {
	return finite(ll.Lng) && finite(ll.Lat)
}

// Point is a screen-space position in pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both components are finite numbers.
func (p Point) Finite() bool {
	return finite(p.X) && finite(p.Y)
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Style holds the properties shared by every annotation type.
type Style struct {
	Color       string
	LineStyle   LineStyle
	StrokeWidth float64
	Rotation    float64
	BaseZoom    float64
}

// DefaultStyle is the drawing style used before the operator picks one.
var DefaultStyle = Style{
	Color:       "#ff0000",
	LineStyle:   LineSolid,
	StrokeWidth: 3,
}

// NormalizeRotation wraps an angle in degrees into [0, 360).
func NormalizeRotation(deg float64) float64 {
	if !finite(deg) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	return r
}

// Feature is one persisted annotation. Anchor is the geographic position of
// the visual center; Shape carries the type-specific fields.
type Feature struct {
	ID     string
	Anchor LngLat
	Style  Style
	Shape  Shape
}

// NewID mints a fresh feature identifier.
func NewID() string {
	return uuid.NewString()
}

// Type returns the type tag derived from the shape.
func (f Feature) Type() FeatureType {
	if f.Shape == nil {
		return ""
	}
	return f.Shape.Type()
}

// Clone returns a deep copy of f.
func (f Feature) Clone() Feature {
	out := f
	if f.Shape != nil {
		out.Shape = f.Shape.clone()
	}
	return out
}

// FeatureCollection is an ordered set of features; order is z-order.
type FeatureCollection struct {
	Features []Feature
}

// Len returns the number of features.
func (fc FeatureCollection) Len() int {
	return len(fc.Features)
}

// Index returns the position of the feature with the given id, or -1.
func (fc FeatureCollection) Index(id string) int {
	for i := range fc.Features {
		if fc.Features[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the feature with the given id.
func (fc FeatureCollection) Find(id string) (Feature, bool) {
	if i := fc.Index(id); i >= 0 {
		return fc.Features[i], true
	}
	return Feature{}, false
}

// Clone returns a deep copy of fc.
func (fc FeatureCollection) Clone() FeatureCollection {
	out := FeatureCollection{Features: make([]Feature, len(fc.Features))}
	for i, f := range fc.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

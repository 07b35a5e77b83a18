// pkg/core/shape.go
package core

// Shape is the type-specific part of a feature. The concrete types are
// *Symbol, *Line, *Arrow, *Polygon, *Rect, *Circle, *Text and *Freehand;
// consumers switch over all of them.
//
// Dimensions are in base pixels: screen pixels at the feature's BaseZoom.
type Shape interface {
	Type() FeatureType
	clone() Shape
}

// Symbol is a placed icon from the asset catalog
type Symbol struct {
	IconName    string
	URL         string
	Colorizable bool
	ScaleX      float64
	ScaleY      float64
}

// Line is a straight segment centered on the anchor, oriented by Style.Rotation
type Line struct {
	Length float64
}

// Arrow is a Line with a triangular head at its far end
type Arrow struct {
	Length float64
}

// Polygon vertices are offsets from the anchor
type Polygon struct {
	Points []Point
}

// Rect is an axis-aligned (before rotation) rectangle centered on the anchor
type Rect struct {
	Width  float64
	Height float64
}

// Circle is centered on the anchor
type Circle struct {
	Radius float64
}

// Text is a label centered on the anchor
type Text struct {
	Content string
	Size    float64
}

// Freehand path points are offsets from the anchor
type Freehand struct {
	Path   []Point
	ScaleX float64
	ScaleY float64
}

func (*Symbol) Type() FeatureType   { return TypeSymbol }
func (*Line) Type() FeatureType     { return TypeLine }
func (*Arrow) Type() FeatureType    { return TypeArrow }
func (*Polygon) Type() FeatureType  { return TypePolygon }
func (*Rect) Type() FeatureType     { return TypeRect }
func (*Circle) Type() FeatureType   { return TypeCircle }
func (*Text) Type() FeatureType     { return TypeText }
func (*Freehand) Type() FeatureType { return TypeFreehand }

func (s *Symbol) clone() Shape { c := *s; return &c }
func (s *Line) clone() Shape   { c := *s; return &c }
func (s *Arrow) clone() Shape  { c := *s; return &c }
func (s *Rect) clone() Shape   { c := *s; return &c }
func (s *Circle) clone() Shape { c := *s; return &c }
func (s *Text) clone() Shape   { c := *s; return &c }

func (s *Polygon) clone() Shape {
	return &Polygon{Points: append([]Point(nil), s.Points...)}
}

func (s *Freehand) clone() Shape {
	return &Freehand{Path: append([]Point(nil), s.Path...), ScaleX: s.ScaleX, ScaleY: s.ScaleY}
}

// Asset is one entry of the symbol catalog
type Asset struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	URL         string `json:"url"`
	Colorizable bool   `json:"colorizable"`
}

// Package codec converts annotation features to and from GeoJSON. Features are
// exchanged as Point geometries carrying a flat properties bag; decoding is
// lenient per feature so that one corrupted entry never fails a whole document.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrNotFeatureCollection is returned when the top-level object is not a FeatureCollection
	ErrNotFeatureCollection = errors.New("document is not a FeatureCollection")
	// ErrUnsupportedGeometry is returned for features whose geometry is not a Point
	ErrUnsupportedGeometry = errors.New("feature geometry must be a Point")
	// ErrInvalidFeature is returned for features with missing or non-finite fields
	ErrInvalidFeature = errors.New("invalid feature")
)

// properties is the wire form of the flat properties bag.
type properties struct {
	Type        core.FeatureType `json:"type"`
	Color       string           `json:"color,omitempty"`
	LineStyle   core.LineStyle   `json:"lineStyle,omitempty"`
	StrokeWidth float64          `json:"strokeWidth"`
	Rotation    float64          `json:"rotation"`
	BaseZoom    float64          `json:"baseZoom"`

	IconName    string   `json:"iconName,omitempty"`
	URL         string   `json:"url,omitempty"`
	Colorizable *bool    `json:"colorizable,omitempty"`
	TextContent *string  `json:"textContent,omitempty"`
	TextSize    *float64 `json:"textSize,omitempty"`
	Radius      *float64 `json:"radius,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Length      *float64 `json:"length,omitempty"`

	Points [][2]float64 `json:"points,omitempty"`
	Path   [][2]float64 `json:"path,omitempty"`
	ScaleX *float64     `json:"scaleX,omitempty"`
	ScaleY *float64     `json:"scaleY,omitempty"`
}

// Validate checks that a feature can be serialized and rebuilt.
func Validate(f core.Feature) error {
	if f.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidFeature)
	}
	if !f.Anchor.Finite() || f.Anchor.Lat < -90 || f.Anchor.Lat > 90 {
		return fmt.Errorf("%w %s: anchor out of range", ErrInvalidFeature, f.ID)
	}
	nums := []float64{f.Style.StrokeWidth, f.Style.Rotation, f.Style.BaseZoom}

	switch s := f.Shape.(type) {
	case *core.Symbol:
		nums = append(nums, s.ScaleX, s.ScaleY)
	case *core.Line:
		nums = append(nums, s.Length)
	case *core.Arrow:
		nums = append(nums, s.Length)
	case *core.Polygon:
		if len(s.Points) < 3 {
			return fmt.Errorf("%w %s: polygon needs 3 points", ErrInvalidFeature, f.ID)
		}
		for _, p := range s.Points {
			nums = append(nums, p.X, p.Y)
		}
	case *core.Rect:
		nums = append(nums, s.Width, s.Height)
		if s.Width < 0 || s.Height < 0 {
			return fmt.Errorf("%w %s: negative rect dimensions", ErrInvalidFeature, f.ID)
		}
	case *core.Circle:
		nums = append(nums, s.Radius)
		if s.Radius < 0 {
			return fmt.Errorf("%w %s: negative radius", ErrInvalidFeature, f.ID)
		}
	case *core.Text:
		nums = append(nums, s.Size)
	case *core.Freehand:
		if len(s.Path) < 2 {
			return fmt.Errorf("%w %s: freehand needs 2 points", ErrInvalidFeature, f.ID)
		}
		for _, p := range s.Path {
			nums = append(nums, p.X, p.Y)
		}
		nums = append(nums, s.ScaleX, s.ScaleY)
	default:
		return fmt.Errorf("%w %s: unknown shape %T", ErrInvalidFeature, f.ID, f.Shape)
	}

	for _, n := range nums {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("%w %s: non-finite value", ErrInvalidFeature, f.ID)
		}
	}
	return nil
}

// EncodeFeature converts a feature into its GeoJSON representation.
func EncodeFeature(f core.Feature) (*geojson.Feature, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	p := properties{
		Type:        f.Type(),
		Color:       f.Style.Color,
		LineStyle:   f.Style.LineStyle,
		StrokeWidth: f.Style.StrokeWidth,
		Rotation:    f.Style.Rotation,
		BaseZoom:    f.Style.BaseZoom,
	}

	switch s := f.Shape.(type) {
	case *core.Symbol:
		p.IconName = s.IconName
		p.URL = s.URL
		p.Colorizable = ptr(s.Colorizable)
		p.ScaleX = ptr(s.ScaleX)
		p.ScaleY = ptr(s.ScaleY)
	case *core.Line:
		p.Length = ptr(s.Length)
	case *core.Arrow:
		p.Length = ptr(s.Length)
	case *core.Polygon:
		p.Points = toPairs(s.Points)
	case *core.Rect:
		p.Width = ptr(s.Width)
		p.Height = ptr(s.Height)
	case *core.Circle:
		p.Radius = ptr(s.Radius)
	case *core.Text:
		p.TextContent = ptr(s.Content)
		p.TextSize = ptr(s.Size)
	case *core.Freehand:
		p.Path = toPairs(s.Path)
		p.ScaleX = ptr(s.ScaleX)
		p.ScaleY = ptr(s.ScaleY)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal properties of %s: %w", f.ID, err)
	}
	props := geojson.Properties{}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("unmarshal properties of %s: %w", f.ID, err)
	}

	gf := geojson.NewFeature(orb.Point{f.Anchor.Lng, f.Anchor.Lat})
	gf.ID = f.ID
	gf.Properties = props
	return gf, nil
}

// DecodeFeature rebuilds a feature from GeoJSON. Features without an id get a
// freshly minted one.
func DecodeFeature(gf *geojson.Feature) (core.Feature, error) {
	pt, ok := gf.Geometry.(orb.Point)
	if !ok {
		return core.Feature{}, fmt.Errorf("%w: got %T", ErrUnsupportedGeometry, gf.Geometry)
	}

	raw, err := json.Marshal(gf.Properties)
	if err != nil {
		return core.Feature{}, fmt.Errorf("marshal properties: %w", err)
	}
	var p properties
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Feature{}, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}

	f := core.Feature{
		ID:     featureID(gf.ID),
		Anchor: core.LngLat{Lng: pt[0], Lat: pt[1]},
		Style: core.Style{
			Color:       p.Color,
			LineStyle:   p.LineStyle,
			StrokeWidth: p.StrokeWidth,
			Rotation:    core.NormalizeRotation(p.Rotation),
			BaseZoom:    p.BaseZoom,
		},
	}
	if !f.Style.LineStyle.Valid() {
		f.Style.LineStyle = core.LineSolid
	}

	switch p.Type {
	case core.TypeSymbol:
		f.Shape = &core.Symbol{
			IconName:    p.IconName,
			URL:         p.URL,
			Colorizable: deref(p.Colorizable, false),
			ScaleX:      deref(p.ScaleX, 1),
			ScaleY:      deref(p.ScaleY, 1),
		}
	case core.TypeLine:
		f.Shape = &core.Line{Length: deref(p.Length, 0)}
	case core.TypeArrow:
		f.Shape = &core.Arrow{Length: deref(p.Length, 0)}
	case core.TypePolygon:
		f.Shape = &core.Polygon{Points: fromPairs(p.Points)}
	case core.TypeRect:
		f.Shape = &core.Rect{Width: deref(p.Width, 0), Height: deref(p.Height, 0)}
	case core.TypeCircle:
		f.Shape = &core.Circle{Radius: deref(p.Radius, 0)}
	case core.TypeText:
		f.Shape = &core.Text{Content: deref(p.TextContent, ""), Size: deref(p.TextSize, 16)}
	case core.TypeFreehand:
		f.Shape = &core.Freehand{
			Path:   fromPairs(p.Path),
			ScaleX: deref(p.ScaleX, 1),
			ScaleY: deref(p.ScaleY, 1),
		}
	default:
		return core.Feature{}, fmt.Errorf("%w: unknown type %q", ErrInvalidFeature, p.Type)
	}

	if err := Validate(f); err != nil {
		return core.Feature{}, err
	}
	return f, nil
}

func featureID(id interface{}) string {
	switch v := id.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return core.NewID()
}

func ptr[T any](v T) *T { return &v }

func deref[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func toPairs(pts []core.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func fromPairs(pairs [][2]float64) []core.Point {
	out := make([]core.Point, len(pairs))
	for i, p := range pairs {
		out[i] = core.Point{X: p[0], Y: p[1]}
	}
	return out
}

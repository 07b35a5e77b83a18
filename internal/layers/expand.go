package layers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/geo"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CircleSegments is the number of vertices used to approximate a circle.
const CircleSegments = 64

// ErrMalformedGeometry is returned for geometries with non-finite coordinates
// or invalid nesting.
var ErrMalformedGeometry = errors.New("malformed geometry")

// frame maps base-pixel offsets around an anchor onto lng/lat.
type frame struct {
	anchor   core.LngLat
	sin, cos float64
	// degrees per base pixel
	lngPerPx, latPerPx float64
}

func newFrame(f core.Feature, tileSize float64) frame {
	mpp := geo.MetersPerPixel(f.Anchor.Lat, f.Style.BaseZoom, tileSize)
	dLng, dLat := geo.MetersToDegrees(mpp, f.Anchor.Lat)
	sin, cos := math.Sincos(f.Style.Rotation * math.Pi / 180)
	return frame{anchor: f.Anchor, sin: sin, cos: cos, lngPerPx: dLng, latPerPx: dLat}
}

// at rotates a screen-space offset clockwise and converts it. Screen y grows
// south.
func (fr frame) at(p core.Point) orb.Point {
	x := p.X*fr.cos - p.Y*fr.sin
	y := p.X*fr.sin + p.Y*fr.cos
	return orb.Point{fr.anchor.Lng + x*fr.lngPerPx, fr.anchor.Lat - y*fr.latPerPx}
}

func (fr frame) ring(pts []core.Point) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	for _, p := range pts {
		r = append(r, fr.at(p))
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

func (fr frame) line(pts []core.Point) orb.LineString {
	ls := make(orb.LineString, 0, len(pts))
	for _, p := range pts {
		ls = append(ls, fr.at(p))
	}
	return ls
}

// Geometry expands a feature into the geometry drawn on the map.
func Geometry(f core.Feature, tileSize float64) orb.Geometry {
	fr := newFrame(f, tileSize)

	switch s := f.Shape.(type) {
	case *core.Symbol, *core.Text:
		return orb.Point{f.Anchor.Lng, f.Anchor.Lat}
	case *core.Rect:
		w, h := s.Width/2, s.Height/2
		return orb.Polygon{fr.ring([]core.Point{{X: -w, Y: -h}, {X: w, Y: -h}, {X: w, Y: h}, {X: -w, Y: h}})}
	case *core.Circle:
		pts := make([]core.Point, CircleSegments)
		for i := range pts {
			sin, cos := math.Sincos(2 * math.Pi * float64(i) / CircleSegments)
			pts[i] = core.Point{X: s.Radius * cos, Y: s.Radius * sin}
		}
		return orb.Polygon{fr.ring(pts)}
	case *core.Polygon:
		return orb.Polygon{fr.ring(s.Points)}
	case *core.Line:
		return fr.line([]core.Point{{X: -s.Length / 2}, {X: s.Length / 2}})
	case *core.Arrow:
		// the head is built in pixel space so it is not skewed by latitude
		tail, tip := orb.Point{-s.Length / 2, 0}, orb.Point{s.Length / 2, 0}
		head := geo.ArrowHead(tail, tip, 3*f.Style.StrokeWidth)
		barbs := make([]core.Point, 0, 3)
		for _, p := range []orb.Point{head[1], head[0], head[2]} {
			barbs = append(barbs, core.Point{X: p[0], Y: p[1]})
		}
		return orb.MultiLineString{
			fr.line([]core.Point{{X: tail[0]}, {X: tip[0]}}),
			fr.line(barbs),
		}
	case *core.Freehand:
		pts := make([]core.Point, len(s.Path))
		for i, p := range s.Path {
			pts[i] = core.Point{X: p.X * s.ScaleX, Y: p.Y * s.ScaleY}
		}
		return fr.line(pts)
	}
	return nil
}

// Expand converts a feature into its rendered GeoJSON form: the expanded
// geometry plus the flat properties bag.
func Expand(f core.Feature, tileSize float64) (*geojson.Feature, error) {
	gf, err := codec.EncodeFeature(f)
	if err != nil {
		return nil, err
	}
	g := Geometry(f, tileSize)
	if err := checkGeometry(g); err != nil {
		return nil, fmt.Errorf("feature %s: %w", f.ID, err)
	}
	gf.Geometry = g
	return gf, nil
}

// checkGeometry rejects non-finite coordinates and structurally invalid
// nesting (short lines, open or degenerate rings, empty collections).
func checkGeometry(g orb.Geometry) error {
	if g == nil {
		return fmt.Errorf("%w: no geometry", ErrMalformedGeometry)
	}
	if !geo.Finite(g) {
		return fmt.Errorf("%w: non-finite coordinates", ErrMalformedGeometry)
	}

	switch v := g.(type) {
	case orb.Point:
		return nil
	case orb.MultiPoint:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty MultiPoint", ErrMalformedGeometry)
		}
	case orb.LineString:
		if len(v) < 2 {
			return fmt.Errorf("%w: LineString needs 2 positions", ErrMalformedGeometry)
		}
	case orb.MultiLineString:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty MultiLineString", ErrMalformedGeometry)
		}
		for _, ls := range v {
			if err := checkGeometry(ls); err != nil {
				return err
			}
		}
	case orb.Ring:
		if len(v) < 4 || !v.Closed() {
			return fmt.Errorf("%w: ring must be closed with 4 positions", ErrMalformedGeometry)
		}
	case orb.Polygon:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty Polygon", ErrMalformedGeometry)
		}
		for _, r := range v {
			if err := checkGeometry(r); err != nil {
				return err
			}
		}
	case orb.MultiPolygon:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty MultiPolygon", ErrMalformedGeometry)
		}
		for _, p := range v {
			if err := checkGeometry(p); err != nil {
				return err
			}
		}
	case orb.Collection:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty GeometryCollection", ErrMalformedGeometry)
		}
		for _, c := range v {
			if err := checkGeometry(c); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unsupported %s", ErrMalformedGeometry, g.GeoJSONType())
	}
	return nil
}

// Sanitize parses a GeoJSON FeatureCollection leniently. Features that fail
// to parse or carry malformed geometry are dropped and reported; only a
// malformed top-level document is an error.
func Sanitize(data []byte) (*geojson.FeatureCollection, []error, error) {
	var top struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", codec.ErrNotFeatureCollection, err)
	}
	if top.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("%w: type %q", codec.ErrNotFeatureCollection, top.Type)
	}

	out := geojson.NewFeatureCollection()
	var dropped []error
	for i, raw := range top.Features {
		gf, err := geojson.UnmarshalFeature(raw)
		if err == nil {
			err = checkGeometry(gf.Geometry)
		}
		if err != nil {
			dropped = append(dropped, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		out.Append(gf)
	}
	return out, dropped, nil
}

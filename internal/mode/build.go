package mode

import (
	"math"

	"github.com/OCAP2/sitac/internal/geo"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
)

// build normalizes a finished draft into a feature. Screen dimensions become
// base pixels at the current zoom. It reports false for drafts below the
// configured minimum size or whose anchor cannot be unprojected.
func build(d Draft, s State, env Env) (core.Feature, bool) {
	cfg := s.Config
	style := s.Style
	style.BaseZoom = env.Zoom()

	var (
		center core.Point
		shape  core.Shape
	)

	switch d.Kind {
	case core.TypeLine, core.TypeArrow:
		length := d.Start.Dist(d.Current)
		if length < cfg.MinLineLength {
			return core.Feature{}, false
		}
		center = core.Point{X: (d.Start.X + d.Current.X) / 2, Y: (d.Start.Y + d.Current.Y) / 2}
		style.Rotation = core.NormalizeRotation(math.Atan2(d.Current.Y-d.Start.Y, d.Current.X-d.Start.X) * 180 / math.Pi)
		if d.Kind == core.TypeArrow {
			shape = &core.Arrow{Length: length}
		} else {
			shape = &core.Line{Length: length}
		}

	case core.TypeRect:
		if d.Width < cfg.MinShapeSize || d.Height < cfg.MinShapeSize {
			return core.Feature{}, false
		}
		center = core.Point{X: d.Origin.X + d.Width/2, Y: d.Origin.Y + d.Height/2}
		shape = &core.Rect{Width: d.Width, Height: d.Height}

	case core.TypeCircle:
		r := d.Start.Dist(d.Current)
		if r < cfg.MinShapeSize {
			return core.Feature{}, false
		}
		center = d.Start
		shape = &core.Circle{Radius: r}

	case core.TypeFreehand:
		path, ok := simplifyStroke(d.Points, cfg.SimplifyTolerance, env)
		if !ok {
			return core.Feature{}, false
		}
		c, w, h := bounds(path)
		if math.Max(w, h) < cfg.MinShapeSize {
			return core.Feature{}, false
		}
		center = c
		shape = &core.Freehand{Path: offsets(path, c), ScaleX: 1, ScaleY: 1}

	case core.TypePolygon:
		if len(d.Points) < 3 {
			return core.Feature{}, false
		}
		c, _, _ := bounds(d.Points)
		center = c
		shape = &core.Polygon{Points: offsets(d.Points, c)}

	case core.TypeText:
		center = d.Start
		size := cfg.TextSize
		if size <= 0 {
			size = 16
		}
		shape = &core.Text{Content: d.Text, Size: size}

	default:
		return core.Feature{}, false
	}

	anchor := env.Unproject(center)
	if !anchor.Finite() {
		return core.Feature{}, false
	}
	return core.Feature{ID: core.NewID(), Anchor: anchor, Style: style, Shape: shape}, true
}

// simplifyStroke runs Douglas-Peucker on the stroke in geographic degrees and
// projects the retained points back to the screen.
func simplifyStroke(stroke []core.Point, tolerance float64, env Env) ([]core.Point, bool) {
	if len(stroke) < 2 {
		return nil, false
	}
	line := make([]orb.Point, len(stroke))
	for i, p := range stroke {
		ll := env.Unproject(p)
		if !ll.Finite() {
			return nil, false
		}
		line[i] = orb.Point{ll.Lng, ll.Lat}
	}

	kept := geo.SimplifyLine(line, tolerance)
	out := make([]core.Point, len(kept))
	for i, p := range kept {
		out[i] = env.Project(core.LngLat{Lng: p[0], Lat: p[1]})
		if !out[i].Finite() {
			return nil, false
		}
	}
	return out, len(out) >= 2
}

// bounds returns the bounding box center and size of pts.
func bounds(pts []core.Point) (center core.Point, w, h float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return core.Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}, maxX - minX, maxY - minY
}

func offsets(pts []core.Point, origin core.Point) []core.Point {
	out := make([]core.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Sub(origin)
	}
	return out
}

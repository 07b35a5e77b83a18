// Package layers renders the feature collection declaratively: one tagged
// GeoJSON source split across fill, line, icon and text style layers, a
// selection highlight and a non-persisted draft source.
package layers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	geom "github.com/peterstace/simplefeatures/geom"
)

const (
	// DefaultTileSize matches the map's tile size in pixels
	DefaultTileSize = 512
	// LineSlop is the pick tolerance around lines and outlines, in pixels
	LineSlop = 4
	// PointRadius is the pick radius around point features, in pixels
	PointRadius = 16
)

// Options configures a Renderer.
type Options struct {
	TileSize float64
	Logger   *slog.Logger
}

// pickable is the hit-testing form of one rendered feature.
type pickable struct {
	id    string
	typ   core.FeatureType
	point bool
	g     geom.Geometry
}

// Renderer holds the declarative view of the collection. It is safe for
// concurrent use.
type Renderer struct {
	mu       sync.RWMutex
	tileSize float64
	logger   *slog.Logger

	source   *geojson.FeatureCollection
	pickable []pickable
	selected string
	draft    orb.LineString

	// pushes counts full source replacements
	pushes int
}

// New creates an empty Renderer.
func New(opts Options) *Renderer {
	if opts.TileSize <= 0 {
		opts.TileSize = DefaultTileSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Renderer{
		tileSize: opts.TileSize,
		logger:   opts.Logger,
		source:   geojson.NewFeatureCollection(),
	}
}

// SetCollection expands the collection and replaces the source. Features that
// cannot be expanded are dropped and reported.
func (r *Renderer) SetCollection(fc core.FeatureCollection) []error {
	out := geojson.NewFeatureCollection()
	var dropped []error
	for _, f := range fc.Features {
		gf, err := Expand(f, r.tileSize)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		out.Append(gf)
	}
	r.replace(out)
	for _, err := range dropped {
		r.logger.Warn("Dropped feature from map source", "error", err)
	}
	return dropped
}

// SetExternal replaces the source with a foreign GeoJSON document. Point
// features carrying an annotation properties bag are expanded like stored
// features; other geometries are rendered as they are.
func (r *Renderer) SetExternal(data []byte) ([]error, error) {
	in, dropped, err := Sanitize(data)
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	for _, gf := range in.Features {
		if _, ok := gf.Geometry.(orb.Point); ok && core.FeatureType(gf.Properties.MustString("type", "")).Valid() {
			f, err := codec.DecodeFeature(gf)
			if err == nil {
				gf, err = Expand(f, r.tileSize)
			}
			if err != nil {
				dropped = append(dropped, err)
				continue
			}
		}
		out.Append(gf)
	}
	r.replace(out)
	return dropped, nil
}

func (r *Renderer) replace(fc *geojson.FeatureCollection) {
	picks := make([]pickable, 0, len(fc.Features))
	for _, gf := range fc.Features {
		g, err := toGeom(gf.Geometry)
		if err != nil {
			r.logger.Debug("Feature is not pickable", "id", gf.ID, "error", err)
			continue
		}
		id := ""
		if gf.ID != nil {
			id = fmt.Sprint(gf.ID)
		}
		_, point := gf.Geometry.(orb.Point)
		picks = append(picks, pickable{
			id:    id,
			typ:   core.FeatureType(gf.Properties.MustString("type", "")),
			point: point,
			g:     g,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = fc
	r.pickable = picks
	r.pushes++
}

// toGeom converts an orb geometry for predicate evaluation. Polygons that
// fail validation (self-intersecting drawings) fall back to their outline.
func toGeom(g orb.Geometry) (geom.Geometry, error) {
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return geom.Geometry{}, err
	}
	out, err := geom.UnmarshalGeoJSON(data)
	if err == nil {
		return out, nil
	}
	if p, ok := g.(orb.Polygon); ok {
		outline := make(orb.MultiLineString, len(p))
		for i, ring := range p {
			outline[i] = orb.LineString(ring)
		}
		return toGeom(outline)
	}
	return geom.Geometry{}, err
}

// Source returns the current annotation source.
func (r *Renderer) Source() *geojson.FeatureCollection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := geojson.NewFeatureCollection()
	out.Features = append(out.Features, r.source.Features...)
	return out
}

// Pushes returns how many times the annotation source was replaced.
func (r *Renderer) Pushes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pushes
}

// SetSelected changes the highlighted feature. Only the highlight filters
// change; the source is not pushed again.
func (r *Renderer) SetSelected(id string) {
	r.mu.Lock()
	r.selected = id
	r.mu.Unlock()
}

// Selected returns the highlighted feature id.
func (r *Renderer) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// TileSize returns the tile size features are expanded with.
func (r *Renderer) TileSize() float64 { return r.tileSize }

// SetDraft shows an in-progress outline. A single vertex is not drawn.
func (r *Renderer) SetDraft(coords []core.LngLat) {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		if c.Finite() {
			ls = append(ls, orb.Point{c.Lng, c.Lat})
		}
	}
	r.mu.Lock()
	r.draft = ls
	r.mu.Unlock()
}

// ClearDraft empties the draft source.
func (r *Renderer) ClearDraft() {
	r.SetDraft(nil)
}

// Draft returns the draft source.
func (r *Renderer) Draft() *geojson.FeatureCollection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fc := geojson.NewFeatureCollection()
	if len(r.draft) >= 2 {
		fc.Append(geojson.NewFeature(r.draft.Clone()))
	}
	return fc
}

// Layers returns the style layers in draw order.
func (r *Renderer) Layers() []Layer {
	r.mu.RLock()
	selected := r.selected
	r.mu.RUnlock()

	layers := baseLayers()
	layers = append(layers, highlightLayers(selected)...)
	return append(layers, draftLayer())
}

// Style is a map style fragment with the sources and layers.
type Style struct {
	Sources map[string]any `json:"sources"`
	Layers  []Layer        `json:"layers"`
}

// Style returns the current sources and layers.
func (r *Renderer) Style() Style {
	return Style{
		Sources: map[string]any{
			SourceID:      map[string]any{"type": "geojson", "data": r.Source()},
			DraftSourceID: map[string]any{"type": "geojson", "data": r.Draft()},
		},
		Layers: r.Layers(),
	}
}

// MarshalStyle encodes the current style fragment.
func (r *Renderer) MarshalStyle() ([]byte, error) {
	return json.MarshalIndent(r.Style(), "", "  ")
}

// Pick returns the top-most feature at ll. degPerPixel converts the pixel
// tolerances at the current view.
func (r *Renderer) Pick(ll core.LngLat, degPerPixel float64) (string, core.FeatureType, bool) {
	pt, err := toGeom(orb.Point{ll.Lng, ll.Lat})
	if err != nil || !ll.Finite() {
		return "", "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.pickable) - 1; i >= 0; i-- {
		p := r.pickable[i]
		if geom.Intersects(p.g, pt) {
			return p.id, p.typ, true
		}
		tolerance := LineSlop * degPerPixel
		if p.point {
			tolerance = PointRadius * degPerPixel
		}
		if d, ok := geom.Distance(p.g, pt); ok && d <= tolerance {
			return p.id, p.typ, true
		}
	}
	return "", "", false
}
